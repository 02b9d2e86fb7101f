// Package dgt implements the worker side of a deep-gradient-transmission
// (DGT) parameter-server communication engine: key-range slicing,
// fragmentation, contribution scoring, adaptive-rate channel classification
// and the request/pull lifecycle. The transport and the server-side
// aggregation policy are external collaborators, consumed through the
// Transport and Topology interfaces below.
package dgt

import "fmt"

// Key identifies a parameter partition.
type Key uint64

// Range is a half-open key interval [Begin, End).
type Range struct {
	Begin Key
	End   Key
}

func (r Range) Size() Key { return r.End - r.Begin }

// KVPairs is a batch of key/value pairs. Keys are ascending and unique.
// If Lens is empty, every key's value has the fixed length
// len(Vals)/len(Keys). Otherwise Lens[i] is the element count of key i.
type KVPairs[Val any] struct {
	Keys     []Key
	Vals     []Val
	Lens     []int
	Priority int
}

// msgType mirrors the DGT wire discriminator.
type msgType int

const (
	msgFirstPush msgType = 1
	msgBlockPush msgType = 2
	msgPullReq   msgType = 3
)

// MessageMeta carries everything the wire contract requires besides the
// payload itself.
type MessageMeta struct {
	AppID      int
	CustomerID int
	Timestamp  int
	Sender     int
	Recver     int
	Push       bool
	Pull       bool
	Request    bool
	Head       int

	Priority int

	MsgType    msgType
	FirstKey   Key
	Seq        int
	SeqBegin   int
	SeqEnd     int
	ValBytes   int
	TotalBytes int
	PushOpNum  int64
	Channel    int

	KeysLen int
	ValsLen int
	LensLen int
}

// Message is one wire unit: meta plus the typed payload chunks plus a
// locally-computed contribution score used only for ranking before
// dispatch; it is never transmitted.
type Message[Val any] struct {
	Meta   MessageMeta
	Keys   []Key
	Vals   []Val
	Lens   []int
	Contri float64
}

func (m Message[Val]) String() string {
	return fmt.Sprintf("ts=%d type=%d first_key=%d seq=%d/%d ch=%d",
		m.Meta.Timestamp, m.Meta.MsgType, m.Meta.FirstKey, m.Meta.Seq, m.Meta.SeqEnd, m.Meta.Channel)
}

// FatalError marks a precondition violation: malformed input the caller
// controls, never expected failure of a remote call.
type FatalError struct {
	Msg string
}

func (e *FatalError) Error() string { return "dgt: fatal: " + e.Msg }

func fatalf(format string, a ...interface{}) error {
	return &FatalError{Msg: fmt.Sprintf(format, a...)}
}
