package dgt

import "testing"

type noopTransport[Val any] struct{}

func (noopTransport[Val]) Send(msg *Message[Val]) error                         { return nil }
func (noopTransport[Val]) SendChannel(msg *Message[Val], channel, flags int) error { return nil }
func (noopTransport[Val]) Classify(msg *Message[Val], channel, flags int) error  { return nil }

func noAbs(s string) float64 { return 0 }

// TestReassemblerOutOfOrderReplies pins spec.md's S6: keys=[1,3,5,7] split
// across server ranges [0,4),[4,8); replies arrive shard1 first, then
// shard0, each carrying 2 values per key. The concatenated output must be
// in request (key) order regardless of arrival order, and recvKVs must be
// empty once the callback has run.
func TestReassemblerOutOfOrderReplies(t *testing.T) {
	topo := EvenTopology(8, 2)
	w := NewWorker(Options[string]{
		Transport: noopTransport[string]{},
		Topology:  topo,
		Abs:       noAbs,
	})

	keys := []Key{1, 3, 5, 7}
	var out []string
	done := make(chan struct{})
	ts := w.Pull(keys, &out, nil, 0, func() { close(done) }, 0)

	// shard1's reply arrives first.
	w.Process(&Message[string]{
		Keys: []Key{5, 7},
		Vals: []string{"e", "f", "g", "h"},
		Meta: MessageMeta{Timestamp: ts, Pull: true},
	})
	select {
	case <-done:
		t.Fatalf("callback must not fire until both shard replies arrive")
	default:
	}

	// then shard0's.
	w.Process(&Message[string]{
		Keys: []Key{1, 3},
		Vals: []string{"a", "b", "c", "d"},
		Meta: MessageMeta{Timestamp: ts, Pull: true},
	})
	<-done

	want := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	if len(out) != len(want) {
		t.Fatalf("out = %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}

	w.mu.Lock()
	_, stillPending := w.recvKVs[ts]
	w.mu.Unlock()
	if stillPending {
		t.Fatalf("recvKVs[ts] should be erased once reassembly completes")
	}
}

// TestReassemblerLostServerIsFatal pins spec.md §4.7's "lost some servers"
// fatal: the tracker is told to expect one response per shard, but if the
// single reply received does not cover every requested key, reassembly
// must not silently under-fill the output.
func TestReassemblerLostServerIsFatal(t *testing.T) {
	topo := EvenTopology(8, 2)
	w := NewWorker(Options[string]{
		Transport: noopTransport[string]{},
		Topology:  topo,
		Abs:       noAbs,
	})

	keys := []Key{1, 3, 5, 7}
	var out []string
	done := make(chan struct{})
	realTS := w.Pull(keys, &out, nil, 0, func() { close(done) }, 0)

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected a panic: only one of two shards replied")
		}
		if _, ok := r.(*FatalError); !ok {
			t.Fatalf("expected *FatalError, got %T: %v", r, r)
		}
	}()

	// Only shard0 replies; shard1 never does, and the callback is run
	// directly, bypassing the tracker, to exercise the reassembler's own
	// coverage check.
	w.mu.Lock()
	w.recvKVs[realTS] = append(w.recvKVs[realTS], KVPairs[string]{Keys: []Key{1, 3}, Vals: []string{"a", "b", "c", "d"}})
	w.mu.Unlock()
	w.RunCallback(realTS)
}
