package dgt

// ChannelTransport composes a reliable channel-0 transport with a lossy
// transport for channels 1..N, so the worker's block-push path (which picks
// a channel per block via classify()) can treat "channel 0" and "channel
// k>0" uniformly through one Transport value.
type ChannelTransport[Val any] struct {
	Reliable Transport[Val]
	Lossy    Transport[Val]
}

func (c *ChannelTransport[Val]) Send(msg *Message[Val]) error {
	return c.Reliable.Send(msg)
}

func (c *ChannelTransport[Val]) SendChannel(msg *Message[Val], channel, flags int) error {
	if channel == 0 {
		return c.Reliable.Send(msg)
	}
	return c.Lossy.SendChannel(msg, channel, flags)
}

func (c *ChannelTransport[Val]) Classify(msg *Message[Val], channel, flags int) error {
	if channel == 0 {
		return c.Reliable.Send(msg)
	}
	return c.Lossy.Classify(msg, channel, flags)
}
