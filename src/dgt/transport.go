package dgt

// Transport is the consumed send/classify interface (spec.md §6). Channel 0
// is reliable; channels 1..C are lossy and may silently drop a message.
type Transport[Val any] interface {
	// Send delivers msg over the reliable channel. An error here is a
	// transport failure and is propagated to the waiting caller.
	Send(msg *Message[Val]) error

	// SendChannel delivers msg directly on the given channel, bypassing
	// DGT-aware classification; used when DGT is disabled (ENABLE_DGT=0).
	// flags is transport-specific and opaque to the worker.
	SendChannel(msg *Message[Val], channel, flags int) error

	// Classify hands msg to the transport's DGT-aware dispatcher, which
	// decides delivery semantics from the channel. Loss on a lossy channel
	// must not surface as an error.
	Classify(msg *Message[Val], channel, flags int) error
}

// Topology is the consumed postoffice/topology service: an injected handle
// so tests can substitute fakes instead of relying on a process-global
// singleton (spec.md §9 design note).
type Topology interface {
	// ServerKeyRanges returns the ordered, contiguous list of server key
	// ranges.
	ServerKeyRanges() []Range
	// ServerRankToID maps a server rank (its index into ServerKeyRanges)
	// to a transport-level node id.
	ServerRankToID(rank int) int
	// NumServers returns len(ServerKeyRanges()).
	NumServers() int
}
