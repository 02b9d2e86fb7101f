package dgt

import "sync"

// FakeNetwork is an in-memory stand-in for the labrpc-shaped fake network
// referenced throughout the pack's client files (kvraft/client.go,
// shardkv/shardSender.go): every registered node's deliver callback is
// invoked synchronously, optionally dropping messages on non-zero channels
// to exercise the lossy-channel contract in tests without real sockets.
type FakeNetwork[Val any] struct {
	mu      sync.Mutex
	nodes   map[int]func(*Message[Val])
	drop    func(channel int) bool // nil means never drop
	counter int
}

// NewFakeNetwork builds a network with no loss. Use SetDrop to simulate
// channel loss deterministically in a test.
func NewFakeNetwork[Val any]() *FakeNetwork[Val] {
	return &FakeNetwork[Val]{nodes: make(map[int]func(*Message[Val]))}
}

// SetDrop installs a predicate deciding whether a send on a given channel is
// dropped, so tests can pin a specific block's fate.
func (n *FakeNetwork[Val]) SetDrop(drop func(channel int) bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.drop = drop
}

// Register attaches a node's inbound handler (typically Worker.Process or a
// test server's handler) under id, and returns an Endpoint-like Transport
// bound to that id as sender.
func (n *FakeNetwork[Val]) Register(id int, deliver func(*Message[Val])) *FakeEndpoint[Val] {
	n.mu.Lock()
	n.nodes[id] = deliver
	n.mu.Unlock()
	return &FakeEndpoint[Val]{net: n, self: id}
}

func (n *FakeNetwork[Val]) deliver(msg *Message[Val], channel int) error {
	n.mu.Lock()
	drop := n.drop
	handler, ok := n.nodes[msg.Meta.Recver]
	n.mu.Unlock()
	if drop != nil && drop(channel) {
		return nil // a lossy channel silently eating a datagram is not an error
	}
	if !ok {
		return errNoSuchChannel
	}
	handler(msg)
	return nil
}

// FakeEndpoint is one node's view of the FakeNetwork, implementing
// Transport[Val] for both the reliable and lossy roles in tests.
type FakeEndpoint[Val any] struct {
	net  *FakeNetwork[Val]
	self int
}

func (e *FakeEndpoint[Val]) Send(msg *Message[Val]) error {
	msg.Meta.Sender = e.self
	msg.Meta.Channel = 0
	return e.net.deliver(msg, 0)
}

func (e *FakeEndpoint[Val]) SendChannel(msg *Message[Val], channel, flags int) error {
	msg.Meta.Sender = e.self
	msg.Meta.Channel = channel
	return e.net.deliver(msg, channel)
}

func (e *FakeEndpoint[Val]) Classify(msg *Message[Val], channel, flags int) error {
	return e.SendChannel(msg, channel, flags)
}
