// Package dgtlogs provides a topic-filtered logger shared by the worker,
// the reference server and the transport implementations.
package dgtlogs

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

type Topic int

const (
	Slicer Topic = iota
	Scorer
	RateCtl
	Classifier
	Send
	Tracker
	Reassembler
	Worker
	Transport
	Server
)

var debugStart time.Time
var verbosity int
var enabled map[Topic]bool

func getVerbosity() int {
	v := os.Getenv("DGT_VERBOSE")
	if v == "" {
		return 0
	}
	level, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid DGT_VERBOSE %q: %v", v, err)
	}
	return level
}

func init() {
	verbosity = getVerbosity()
	debugStart = time.Now()
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))

	enabled = map[Topic]bool{
		Slicer:      true,
		Scorer:      true,
		RateCtl:     true,
		Classifier:  true,
		Send:        true,
		Tracker:     true,
		Reassembler: true,
		Worker:      true,
		Transport:   true,
		Server:      true,
	}
}

// TopicLogger tags every line with an elapsed-time prefix and a node id,
// and is silenced unless DGT_VERBOSE > 0.
type TopicLogger struct {
	Me int
}

func (tl TopicLogger) L(topic Topic, format string, a ...interface{}) {
	if verbosity == 0 || !enabled[topic] {
		return
	}
	elapsed := time.Since(debugStart).Milliseconds()
	prefix := fmt.Sprintf("%06d N%d [%d] ", elapsed, tl.Me, topic)
	log.Printf(prefix+format, a...)
}
