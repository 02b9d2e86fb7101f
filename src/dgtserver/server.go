// Package dgtserver is a reference parameter-server node: enough of the far
// end of the wire contract to drive a Worker through a full push/pull/
// pushpull round trip in tests, without implementing any particular
// aggregation policy. Structured after kvraft.KVServer (a single
// mutex-guarded map, one handler entry point, an explicit Start
// constructor) with the replicated-log half removed, since replication is a
// declared non-goal here.
package dgtserver

import (
	"sync"

	"github.com/liuxiaotiao/DGT/src/dgt"
	"github.com/liuxiaotiao/DGT/src/dgtlogs"
)

// Update is called once per applied key/value pair, letting a caller layer
// its own aggregation (sum, replace, momentum, ...) on top of the reference
// store. The default (nil) is last-write-wins.
type Update[Val any] func(old, incoming Val) Val

type pendingKey struct {
	sender    int
	timestamp int
}

type pendingPush[Val any] struct {
	firstKey  dgt.Key
	keys      []dgt.Key
	lens      []int
	vals      []Val // pre-sized to totalBytes, filled in by valBytes offset
	remaining map[int]bool
}

// Server is a minimal in-process parameter-server shard: it owns one
// contiguous key range, applies pushed values as they arrive (reassembling
// fragmented blocks by their terminal marker, per DESIGN.md's ack-on-
// terminal decision) and answers pull requests from its own store.
type Server[Val any] struct {
	me        int
	transport dgt.Transport[Val]
	log       dgtlogs.TopicLogger
	update    Update[Val]
	zero      Val

	mu      sync.Mutex
	store   map[dgt.Key]Val
	lens    map[dgt.Key]int
	pending map[pendingKey]*pendingPush[Val]
}

// Options configures a new Server.
type Options[Val any] struct {
	ID        int
	Transport dgt.Transport[Val]
	Logger    dgtlogs.TopicLogger
	Update    Update[Val] // optional; nil means last-write-wins
}

// StartServer builds a Server ready to receive messages via Handle. Unlike
// StartKVServer it does not spawn any background goroutine: there is no
// replicated log to drain, so every message is applied synchronously in
// Handle, under the store's own mutex (spec.md's non-goal on replication
// and rebalancing).
func StartServer[Val any](opts Options[Val]) *Server[Val] {
	return &Server[Val]{
		me:        opts.ID,
		transport: opts.Transport,
		log:       opts.Logger,
		update:    opts.Update,
		store:     make(map[dgt.Key]Val),
		lens:      make(map[dgt.Key]int),
		pending:   make(map[pendingKey]*pendingPush[Val]),
	}
}

// Handle applies one inbound message from a worker: a first-push bootstrap,
// one fragment of a block-push, or a pull request. It is the server-side
// counterpart of Worker.Process and is meant to be wired as a transport's
// deliver callback.
func (s *Server[Val]) Handle(msg *dgt.Message[Val]) {
	switch {
	case msg.Meta.Pull && !msg.Meta.Push && msg.Meta.Request:
		s.handlePullRequest(msg)
	case msg.Meta.Push && msg.Meta.MsgType == 1:
		s.applyFirstPush(msg)
		s.ack(msg, msg.Meta.Pull)
	case msg.Meta.Push && msg.Meta.MsgType == 2:
		s.handleBlockFragment(msg)
	default:
		s.log.L(dgtlogs.Server, "dropping unrecognized message from %d ts=%d", msg.Meta.Sender, msg.Meta.Timestamp)
	}
}

func (s *Server[Val]) applyFirstPush(msg *dgt.Message[Val]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, k := range msg.Keys {
		s.applyLocked(k, msg.Vals[i])
		if i < len(msg.Lens) {
			s.lens[k] = msg.Lens[i]
		}
	}
}

func (s *Server[Val]) applyLocked(k dgt.Key, v Val) {
	if s.update != nil {
		if old, ok := s.store[k]; ok {
			v = s.update(old, v)
		}
	}
	s.store[k] = v
}

// handleBlockFragment buffers one fragment of a shard's block-push and, on
// the terminal fragment (seq == seqEnd, guaranteed to arrive since it always
// rides channel 0), applies whatever fragments actually arrived and acks
// the shard. A shard's push is acked on the terminal block, not on full
// fragment coverage: DGT's contract is that lossy-channel fragments may be
// dropped by design (spec.md §4.5's "errors on lossy channels are
// swallowed"), so requiring full coverage before acking would let a single
// dropped low-importance block stall the tracker forever.
func (s *Server[Val]) handleBlockFragment(msg *dgt.Message[Val]) {
	key := pendingKey{sender: msg.Meta.Sender, timestamp: msg.Meta.Timestamp}

	s.mu.Lock()
	p, ok := s.pending[key]
	if !ok {
		p = &pendingPush[Val]{
			firstKey:  msg.Meta.FirstKey,
			keys:      msg.Keys,
			lens:      msg.Lens,
			vals:      make([]Val, msg.Meta.TotalBytes),
			remaining: make(map[int]bool),
		}
		for seq := 0; seq <= msg.Meta.SeqEnd; seq++ {
			p.remaining[seq] = true
		}
		s.pending[key] = p
	}
	copy(p.vals[msg.Meta.ValBytes:], msg.Vals)
	delete(p.remaining, msg.Meta.Seq)
	terminal := msg.Meta.Seq == msg.Meta.SeqEnd
	if terminal {
		delete(s.pending, key)
	}
	s.mu.Unlock()

	if !terminal {
		return
	}
	s.mu.Lock()
	missing := make([]bool, len(p.vals))
	if msg.Meta.SeqEnd > 0 {
		blockSize := msg.Meta.ValBytes / msg.Meta.SeqEnd
		for seq := range p.remaining {
			for j := seq * blockSize; j < (seq+1)*blockSize && j < len(missing); j++ {
				missing[j] = true
			}
		}
	}
	for i, k := range p.keys {
		if i < len(missing) && missing[i] {
			continue
		}
		s.applyLocked(k, p.vals[i])
		if i < len(p.lens) {
			s.lens[k] = p.lens[i]
		}
	}
	s.mu.Unlock()
	s.ack(msg, msg.Meta.Pull)
}

func (s *Server[Val]) ack(msg *dgt.Message[Val], pull bool) {
	if pull {
		// A pushpull is answered with the shard's values once the push is applied.
		s.handlePullRequest(msg)
		return
	}
	reply := &dgt.Message[Val]{
		Meta: dgt.MessageMeta{
			Timestamp:  msg.Meta.Timestamp,
			Sender:     s.me,
			Recver:     msg.Meta.Sender,
			Push:       msg.Meta.Push,
			Pull:       pull,
			CustomerID: msg.Meta.CustomerID,
		},
	}
	if err := s.transport.Send(reply); err != nil {
		s.log.L(dgtlogs.Server, "ack to %d ts=%d failed: %v", msg.Meta.Sender, msg.Meta.Timestamp, err)
	}
}

func (s *Server[Val]) handlePullRequest(msg *dgt.Message[Val]) {
	s.mu.Lock()
	vals := make([]Val, len(msg.Keys))
	lens := make([]int, 0, len(msg.Keys))
	haveLens := false
	for i, k := range msg.Keys {
		vals[i] = s.store[k]
		if l, ok := s.lens[k]; ok {
			haveLens = true
			lens = append(lens, l)
		}
	}
	s.mu.Unlock()
	if !haveLens {
		lens = nil
	}

	reply := &dgt.Message[Val]{
		Keys: msg.Keys,
		Vals: vals,
		Lens: lens,
		Meta: dgt.MessageMeta{
			Timestamp:  msg.Meta.Timestamp,
			Sender:     s.me,
			Recver:     msg.Meta.Sender,
			Push:       false,
			Pull:       true,
			CustomerID: msg.Meta.CustomerID,
			TotalBytes: len(vals),
			KeysLen:    len(msg.Keys),
			ValsLen:    len(vals),
		},
	}
	if err := s.transport.Send(reply); err != nil {
		s.log.L(dgtlogs.Server, "pull reply to %d ts=%d failed: %v", msg.Meta.Sender, msg.Meta.Timestamp, err)
	}
}
