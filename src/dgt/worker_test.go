package dgt

import (
	"os"
	"testing"
)

// failingTransport fails every channel-0 send, simulating a lost or
// unreachable reliable-channel peer.
type failingTransport[Val any] struct{ err error }

func (f failingTransport[Val]) Send(msg *Message[Val]) error { return f.err }
func (f failingTransport[Val]) SendChannel(msg *Message[Val], channel, flags int) error {
	return f.err
}
func (f failingTransport[Val]) Classify(msg *Message[Val], channel, flags int) error { return f.err }

// TestWorkerWaitSurfacesChannelZeroTransportError pins spec.md §7: a
// transport error on channel 0 must not panic (it is not a precondition
// violation) and must not vanish -- it is recorded on the tracker and
// returned by the next Wait(ts) call.
func TestWorkerWaitSurfacesChannelZeroTransportError(t *testing.T) {
	vars := map[string]string{
		"DMLC_K":               "0.5",
		"DMLC_K_MIN":           "0.05",
		"ADAPTIVE_K_FLAG":      "0",
		"DMLC_UDP_CHANNEL_NUM": "2",
	}
	for k, v := range vars {
		os.Setenv(k, v)
		t.Cleanup(func(k string) func() { return func() { os.Unsetenv(k) } }(k))
	}

	wantErr := errFakeTransport
	w := NewWorker(Options[string]{
		Transport: failingTransport[string]{err: wantErr},
		Topology:  EvenTopology(8, 2),
		Abs:       noAbs,
	})

	ts := w.Push([]Key{0, 1}, []string{"a", "b"}, nil, 0, nil, 0)
	if err := w.Wait(ts); err != wantErr {
		t.Fatalf("Wait(ts) = %v, want %v", err, wantErr)
	}
}
