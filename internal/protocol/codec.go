package protocol

// DefaultMaxFrameSize is the codec's default ceiling on a single frame's
// byte size, matching the stream parser's own MaxBufferSize. Encode counts
// the STX/ETX framing bytes; Decode checks the payload the stream parser
// extracted, which excludes them.
const DefaultMaxFrameSize = 64 * 1024

// Codec bridges a StreamParser (decode) and Frame rendering (encode) to a
// byte-oriented transport. It is stateful only with respect to the
// embedded parser; encoding is stateless.
type Codec struct {
	parser       *StreamParser
	maxFrameSize int
}

// NewCodec constructs a Codec with the default maximum frame size.
func NewCodec() *Codec {
	return &Codec{parser: NewStreamParser(), maxFrameSize: DefaultMaxFrameSize}
}

// NewCodecWithMaxFrameSize constructs a Codec with a custom frame size
// ceiling.
func NewCodecWithMaxFrameSize(maxFrameSize int) *Codec {
	return &Codec{parser: NewStreamParser(), maxFrameSize: maxFrameSize}
}

// MaxFrameSize returns the configured ceiling.
func (c *Codec) MaxFrameSize() int { return c.maxFrameSize }

// Decode feeds newly-arrived transport bytes to the parser and, if a
// complete frame is now available, converts it to a Message. A nil, nil
// return means "need more data" — the caller should read more bytes from
// the transport and call Decode again.
func (c *Codec) Decode(data []byte) (*Message, error) {
	if len(data) > 0 {
		c.parser.Feed(data)
	}

	frame, ok := c.parser.NextFrame()
	if !ok {
		return nil, nil
	}

	if frame.Size() > c.maxFrameSize {
		return nil, &FrameTooLargeError{Size: frame.Size(), MaxSize: c.maxFrameSize}
	}

	msg, err := frame.ToMessage()
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Encode renders msg to a framed wire payload, checking it against the
// configured maximum frame size.
func (c *Codec) Encode(msg Message) ([]byte, error) {
	frame := FrameFromMessage(msg).WithFraming()
	if frame.Size() > c.maxFrameSize {
		return nil, &FrameTooLargeError{Size: frame.Size(), MaxSize: c.maxFrameSize}
	}
	return frame.Data, nil
}
