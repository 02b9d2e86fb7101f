// Package lossfeed implements the file-backed training-loss observation
// consumed by the rate controller (dgt.LossFeed), generalizing the
// original's Open_loss_file/Update_loss_delta: a path of the form
// /tmp/loss<node-id>.csv holding a single leading floating-point number,
// re-read (not re-opened) on every call.
package lossfeed

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// File polls a loss CSV file, rewinding after every read instead of
// reopening it, matching the original's fseek(fp, 0, 0).
type File struct {
	path string
	f    *os.File
}

// Path returns the conventional loss-feed path for a node id.
func Path(nodeID int) string {
	return fmt.Sprintf("/tmp/loss%d.csv", nodeID)
}

// Open opens (creating if necessary) the loss file for read/write use.
// Absence of the file is not an error: it is created empty, and the feed
// reads 0 until a number is written to it, which is the spec's documented
// fallback to non-adaptive k.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	return &File{path: path, f: f}, nil
}

// Read returns the current leading floating-point number in the file, or 0
// if the file is empty or its content doesn't parse.
func (lf *File) Read() float64 {
	if lf.f == nil {
		return 0
	}
	buf := make([]byte, 64)
	n, _ := lf.f.ReadAt(buf, 0)
	line := strings.TrimSpace(string(buf[:n]))
	if line == "" {
		return 0
	}
	// Only the leading number matters, mirroring atof's prefix parse.
	end := 0
	for end < len(line) && (line[end] == '-' || line[end] == '.' || line[end] == '+' || (line[end] >= '0' && line[end] <= '9') || line[end] == 'e' || line[end] == 'E') {
		end++
	}
	v, err := strconv.ParseFloat(line[:end], 64)
	if err != nil {
		return 0
	}
	return v
}

// Close releases the underlying file handle.
func (lf *File) Close() error {
	if lf.f == nil {
		return nil
	}
	return lf.f.Close()
}
