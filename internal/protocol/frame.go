package protocol

// StartByte and EndByte mark the beginning and end of a framed payload on
// the wire: STX (0x02) and ETX (0x03).
const (
	StartByte byte = 0x02
	EndByte   byte = 0x03

	// FrameOverhead is the number of bytes STX/ETX framing adds.
	FrameOverhead = 2
)

// Frame is the byte-level wire format for one message: an owning buffer, a
// flag for whether STX/ETX framing bytes are present, and an optional
// checksum carried alongside (not inside) the buffer.
//
// Invariant: if Framed is true, the first byte of Data is StartByte and the
// last is EndByte.
type Frame struct {
	Data     []byte
	Framed   bool
	Checksum *string
}

// NewFrame wraps data as a Frame. framed must accurately describe whether
// data already carries STX/ETX bytes.
func NewFrame(data []byte, framed bool) Frame {
	return Frame{Data: append([]byte(nil), data...), Framed: framed}
}

// FrameFromMessage renders msg to its unframed wire payload.
func FrameFromMessage(msg Message) Frame {
	return NewFrame([]byte(msg.Payload()), false)
}

// Size returns the frame's total byte length.
func (f Frame) Size() int { return len(f.Data) }

// Content returns the frame's payload bytes, excluding STX/ETX if framed.
func (f Frame) Content() []byte {
	if f.Framed && len(f.Data) >= FrameOverhead {
		return f.Data[1 : len(f.Data)-1]
	}
	return f.Data
}

// WithFraming returns a copy of f with STX/ETX bytes added. If f is already
// framed, f is returned unchanged.
func (f Frame) WithFraming() Frame {
	if f.Framed {
		return f
	}
	buf := make([]byte, 0, len(f.Data)+FrameOverhead)
	buf = append(buf, StartByte)
	buf = append(buf, f.Data...)
	buf = append(buf, EndByte)
	return Frame{Data: buf, Framed: true, Checksum: f.Checksum}
}

// WithoutFraming returns a copy of f with STX/ETX bytes stripped. If f is
// not framed, or does not actually begin/end with STX/ETX, f is returned
// unchanged.
func (f Frame) WithoutFraming() Frame {
	if !f.Framed {
		return f
	}
	if len(f.Data) < FrameOverhead || f.Data[0] != StartByte || f.Data[len(f.Data)-1] != EndByte {
		return f
	}
	inner := f.Data[1 : len(f.Data)-1]
	return Frame{Data: append([]byte(nil), inner...), Framed: false, Checksum: f.Checksum}
}

// ToMessage parses the frame's content bytes as a Message.
func (f Frame) ToMessage() (Message, error) {
	return ParseMessage(string(f.Content()))
}

// String renders the frame's content as a string, for logging/tests.
func (f Frame) String() string {
	return string(f.Content())
}
