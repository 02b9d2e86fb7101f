package dgt

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/rpc"
	"os"
	"sync"

	"github.com/liuxiaotiao/DGT/src/dgtlogs"
)

// Ack is the empty RPC reply; delivery itself is the signal, the reply
// carries nothing back.
type Ack struct{}

// Endpoint names one peer's reliable-channel listening address, Unix-socket
// or TCP, matched against the sockname convention mr/worker.go uses for the
// coordinator's socket.
type Endpoint struct {
	ID      int
	Network string // "unix" or "tcp"
	Address string
}

// RPCTransport is the reliable, channel-0 transport: a net/rpc client per
// peer, dialed lazily and cached, generalized from mr/worker.go's call()
// (DialHTTP over a Unix socket, one-shot per call there; pooled here since a
// worker makes many calls over the session's lifetime).
type RPCTransport[Val any] struct {
	self      int
	endpoints map[int]Endpoint
	log       dgtlogs.TopicLogger

	mu      sync.Mutex
	clients map[int]*rpc.Client

	deliver func(*Message[Val])
}

// NewRPCTransport builds a transport that knows how to reach every endpoint
// by ID. deliver is called for every inbound message once the local server
// is started with Serve.
func NewRPCTransport[Val any](self int, endpoints map[int]Endpoint, log dgtlogs.TopicLogger, deliver func(*Message[Val])) *RPCTransport[Val] {
	return &RPCTransport[Val]{
		self:      self,
		endpoints: endpoints,
		log:       log,
		clients:   make(map[int]*rpc.Client),
		deliver:   deliver,
	}
}

// Deliver is the RPC-exported handler: net/rpc requires an exported method
// of the form func(argType, *replyType) error on a registered receiver.
func (t *RPCTransport[Val]) Deliver(msg *Message[Val], reply *Ack) error {
	t.log.L(dgtlogs.Transport, "rpc recv from=%d ts=%d seq=%d/%d", msg.Meta.Sender, msg.Meta.Timestamp, msg.Meta.Seq, msg.Meta.SeqEnd)
	t.deliver(msg)
	return nil
}

// Serve registers this transport's Deliver method and accepts connections
// on own's endpoint, mirroring the coordinator's rpc.Register + Unix-socket
// net.Listen + http.Serve sequence in mr/coordinator.go.
func (t *RPCTransport[Val]) Serve() (func() error, error) {
	own, ok := t.endpoints[t.self]
	if !ok {
		return nil, fmt.Errorf("dgt: no endpoint registered for self id %d", t.self)
	}
	srv := rpc.NewServer()
	if err := srv.Register(t); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, srv)

	if own.Network == "unix" {
		os.Remove(own.Address)
	}
	l, err := net.Listen(own.Network, own.Address)
	if err != nil {
		return nil, err
	}
	go http.Serve(l, mux)
	return l.Close, nil
}

func (t *RPCTransport[Val]) clientFor(id int) (*rpc.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[id]; ok {
		return c, nil
	}
	ep, ok := t.endpoints[id]
	if !ok {
		return nil, fmt.Errorf("dgt: no endpoint registered for id %d", id)
	}
	c, err := rpc.DialHTTP(ep.Network, ep.Address)
	if err != nil {
		return nil, err
	}
	t.clients[id] = c
	return c, nil
}

// Send delivers msg over the reliable channel regardless of the channel
// field the caller set: this is the channel-0 transport.
func (t *RPCTransport[Val]) Send(msg *Message[Val]) error {
	msg.Meta.Sender = t.self
	msg.Meta.Channel = 0
	c, err := t.clientFor(msg.Meta.Recver)
	if err != nil {
		return err
	}
	var ack Ack
	if err := c.Call("RPCTransport.Deliver", msg, &ack); err != nil {
		t.invalidate(msg.Meta.Recver)
		return err
	}
	return nil
}

func (t *RPCTransport[Val]) invalidate(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[id]; ok {
		c.Close()
		delete(t.clients, id)
	}
}

// SendChannel and Classify have no meaning for a reliable-only transport;
// callers that need lossy channels compose RPCTransport with UDPTransport
// via ChannelTransport instead.
func (t *RPCTransport[Val]) SendChannel(msg *Message[Val], channel, flags int) error {
	return t.Send(msg)
}

func (t *RPCTransport[Val]) Classify(msg *Message[Val], channel, flags int) error {
	return t.Send(msg)
}

var errNoSuchChannel = errors.New("dgt: no such channel")
