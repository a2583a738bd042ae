package protocol

// Sizing constants. The buffer/payload/queue capacities are advisory
// preallocation hints; MaxBufferSize is the hard DoS-guard contract.
const (
	MaxBufferSize             = 64 * 1024
	initialBufferCapacity     = 4 * 1024
	initialPayloadCapacity    = 1024
	initialFrameQueueCapacity = 4
)

// parserState is the stream parser's two-state machine.
type parserState int

const (
	stateWaitingStart parserState = iota
	stateReadingPayload
)

// StreamParser converts a potentially fragmented byte stream into a
// sequence of complete frames without loss, corruption, or unbounded
// memory growth. It is pure byte-level: it has no knowledge of any
// transport and performs no I/O.
type StreamParser struct {
	state   parserState
	buffer  []byte
	payload []byte
	frames  []Frame
}

// NewStreamParser constructs a parser ready to receive bytes.
func NewStreamParser() *StreamParser {
	return &StreamParser{
		state:   stateWaitingStart,
		buffer:  make([]byte, 0, initialBufferCapacity),
		payload: make([]byte, 0, initialPayloadCapacity),
		frames:  make([]Frame, 0, initialFrameQueueCapacity),
	}
}

// Feed appends bytes to the internal buffer and extracts every complete
// frame it can. A single call may yield zero, one, or many frames that are
// appended to the internal FIFO; retrieve them with NextFrame or Frames.
func (p *StreamParser) Feed(data []byte) {
	p.buffer = append(p.buffer, data...)
	for p.tryExtractFrame() {
	}
}

// NextFrame pops one frame from the FIFO, or returns false if none is
// available yet.
func (p *StreamParser) NextFrame() (Frame, bool) {
	if len(p.frames) == 0 {
		return Frame{}, false
	}
	f := p.frames[0]
	p.frames = p.frames[1:]
	return f, true
}

// Frames drains every currently queued frame, in order.
func (p *StreamParser) Frames() []Frame {
	out := p.frames
	p.frames = make([]Frame, 0, initialFrameQueueCapacity)
	return out
}

// Clear resets the parser to WaitingStart and discards all buffered state,
// including any frames not yet retrieved. Useful for error recovery.
func (p *StreamParser) Clear() {
	p.state = stateWaitingStart
	p.buffer = p.buffer[:0]
	p.payload = p.payload[:0]
	p.frames = p.frames[:0]
}

// State exposes the current parser state; used by tests.
func (p *StreamParser) State() string {
	if p.state == stateWaitingStart {
		return "WaitingStart"
	}
	return "ReadingPayload"
}

// tryExtractFrame attempts to pull one complete frame out of the buffer.
// Returns true if it made progress and should be called again.
func (p *StreamParser) tryExtractFrame() bool {
	if len(p.buffer)+len(p.payload) > MaxBufferSize {
		p.Clear()
		return false
	}

	for {
		switch p.state {
		case stateWaitingStart:
			if !p.handleWaitingStart() {
				return false
			}
		case stateReadingPayload:
			return p.handleReadingPayload()
		}
	}
}

// handleWaitingStart scans for STX, discarding any garbage before it. It
// returns true if STX was found (state transitions to ReadingPayload) and
// false if more data is needed (the whole buffer, being garbage, is
// discarded).
func (p *StreamParser) handleWaitingStart() bool {
	idx := indexByte(p.buffer, StartByte)
	if idx < 0 {
		p.buffer = p.buffer[:0]
		return false
	}
	p.buffer = p.buffer[idx+1:]
	p.state = stateReadingPayload
	p.payload = p.payload[:0]
	return true
}

// handleReadingPayload scans for ETX. An STX encountered here is payload
// data, not a state reset. Returns true if a frame was produced (or
// silently dropped for being non-ASCII) and the parser advanced; false if
// more data is needed.
func (p *StreamParser) handleReadingPayload() bool {
	idx := indexByte(p.buffer, EndByte)
	if idx < 0 {
		p.payload = append(p.payload, p.buffer...)
		p.buffer = p.buffer[:0]
		return false
	}

	p.payload = append(p.payload, p.buffer[:idx]...)
	p.buffer = p.buffer[idx+1:]

	if isASCII(p.payload) {
		p.frames = append(p.frames, NewFrame(p.payload, false))
	}
	// Non-ASCII payloads are silently dropped as protocol violations.

	p.state = stateWaitingStart
	p.payload = make([]byte, 0, initialPayloadCapacity)
	return true
}

func indexByte(b []byte, target byte) int {
	for i, v := range b {
		if v == target {
			return i
		}
	}
	return -1
}

func isASCII(b []byte) bool {
	for _, v := range b {
		if v > 0x7f {
			return false
		}
	}
	return true
}
