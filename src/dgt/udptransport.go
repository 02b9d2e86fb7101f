package dgt

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net"
	"sync"

	"github.com/liuxiaotiao/DGT/src/dgtlogs"
)

// UDPEndpoint is one peer's lossy-channel addresses: channel i>=1 lives at
// Channels[i-1], independent best-effort sockets so loss on one channel
// never affects another (spec.md §4.4's channel-independence assumption).
type UDPEndpoint struct {
	ID       int
	Channels []string // "host:port", one per lossy channel
}

// UDPTransport is the lossy-channel transport: datagram sends with no
// retry, no ordering guarantee and no delivery confirmation, matching the
// original's use of raw UDP sockets for dropped-by-design channels. There is
// nothing in the retrieval pack that wires a messaging library for this, so
// it is built directly on net.UDPConn (DESIGN.md).
type UDPTransport[Val any] struct {
	self     int
	channels []*net.UDPConn // local sockets, channels[i] serves lossy channel i+1 (channel 0 is the reliable transport)
	peers    map[int]UDPEndpoint
	log      dgtlogs.TopicLogger
	deliver  func(*Message[Val])

	mu sync.Mutex
}

// NewUDPTransport opens one local UDP socket per lossy channel (listenAddrs
// indexed the same way as UDPEndpoint.Channels) and returns a transport
// ready to Serve.
func NewUDPTransport[Val any](self int, listenAddrs []string, peers map[int]UDPEndpoint, log dgtlogs.TopicLogger, deliver func(*Message[Val])) (*UDPTransport[Val], error) {
	conns := make([]*net.UDPConn, len(listenAddrs))
	for i, addr := range listenAddrs {
		laddr, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return nil, err
		}
		conn, err := net.ListenUDP("udp", laddr)
		if err != nil {
			return nil, err
		}
		conns[i] = conn
	}
	return &UDPTransport[Val]{self: self, channels: conns, peers: peers, log: log, deliver: deliver}, nil
}

// Serve starts one receive loop per local channel socket and returns a
// closer that stops them all.
func (t *UDPTransport[Val]) Serve() func() error {
	for i, conn := range t.channels {
		go t.recvLoop(i+1, conn)
	}
	return func() error {
		var firstErr error
		for _, conn := range t.channels {
			if err := conn.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
}

func (t *UDPTransport[Val]) recvLoop(channel int, conn *net.UDPConn) {
	buf := make([]byte, 1<<20)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			return // socket closed
		}
		var msg Message[Val]
		if err := gob.NewDecoder(bytes.NewReader(buf[:n])).Decode(&msg); err != nil {
			t.log.L(dgtlogs.Transport, "udp channel %d: dropping malformed datagram: %v", channel, err)
			continue
		}
		t.deliver(&msg)
	}
}

// SendChannel writes msg as a single UDP datagram on the given channel. UDP
// delivery is unordered and unconfirmed by design: a dropped or reordered
// datagram is exactly the lossy-channel contract, not an error to the
// caller beyond the write itself failing.
func (t *UDPTransport[Val]) SendChannel(msg *Message[Val], channel, flags int) error {
	if channel <= 0 || channel > len(t.peerAddrs(msg.Meta.Recver)) {
		return fmt.Errorf("dgt: %w: channel %d for recver %d", errNoSuchChannel, channel, msg.Meta.Recver)
	}
	msg.Meta.Sender = t.self
	msg.Meta.Channel = channel
	addr := t.peerAddrs(msg.Meta.Recver)[channel-1]
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return err
	}
	conn := t.channels[channel-1]
	_, err = conn.WriteToUDP(buf.Bytes(), raddr)
	return err
}

func (t *UDPTransport[Val]) peerAddrs(recver int) []string {
	return t.peers[recver].Channels
}

// Classify picks the channel for a block, then sends it there. For this
// transport channel selection is entirely the caller's (the worker's
// classifier); Classify and SendChannel are the same operation.
func (t *UDPTransport[Val]) Classify(msg *Message[Val], channel, flags int) error {
	return t.SendChannel(msg, channel, flags)
}

// Send on this lossy-only transport goes out on lossy channel 1; callers
// needing reliable delivery should compose with ChannelTransport.
func (t *UDPTransport[Val]) Send(msg *Message[Val]) error {
	return t.SendChannel(msg, 1, 0)
}
