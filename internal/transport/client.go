package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/henrycontrol/turnkey/internal/logging"
	"github.com/henrycontrol/turnkey/internal/protocol"
)

// DefaultDeadline is the client's default read/write/connect deadline.
const DefaultDeadline = 3000 * time.Millisecond

// closeBound caps how long Close may block waiting on the underlying
// socket to tear down.
const closeBound = 500 * time.Millisecond

// readChunkSize is how many bytes Client.Recv asks the kernel for per
// read(2) call while accumulating a frame.
const readChunkSize = 4096

// Client is a single-connection Henry protocol peer: connect, send one
// message, receive one message, close. It is not safe for concurrent use
// by multiple goroutines — one client belongs to one actor, matching the
// cooperative single-threaded-per-actor concurrency model the rest of the
// module follows.
type Client struct {
	addr     string
	deadline time.Duration
	logger   logging.Logger

	mu    sync.Mutex
	conn  net.Conn
	codec *protocol.Codec
}

// NewClient constructs a Client targeting addr with the default deadline.
func NewClient(addr string) *Client {
	return &Client{addr: addr, deadline: DefaultDeadline, logger: logging.Default()}
}

// SetDeadline overrides the single read/write/connect deadline used for
// every subsequent operation.
func (c *Client) SetDeadline(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = d
}

// SetLogger overrides the client's logger.
func (c *Client) SetLogger(l logging.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger = l
}

// Connect dials the configured address. Connecting an already-connected
// client first closes the existing connection.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		_ = c.conn.Close()
	}

	conn, err := net.DialTimeout("tcp", c.addr, c.deadline)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return &ConnectionTimeoutError{Milliseconds: int(c.deadline.Milliseconds())}
		}
		return &IOError{Cause: err}
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	c.conn = conn
	c.codec = protocol.NewCodec()
	c.logger.Info("connected", logging.Field{Key: "address", Value: c.addr})
	return nil
}

// Connected reports whether the client currently holds a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send encodes and writes msg, applying the configured deadline to the
// whole write.
func (c *Client) Send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return &NotConnectedError{}
	}

	wire, err := c.codec.Encode(msg)
	if err != nil {
		return &CodecError{Cause: err}
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.deadline)); err != nil {
		return &IOError{Cause: err}
	}

	for written := 0; written < len(wire); {
		n, err := c.conn.Write(wire[written:])
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return &WriteTimeoutError{Milliseconds: int(c.deadline.Milliseconds())}
			}
			c.conn = nil
			return &ConnectionLostError{Cause: err}
		}
		written += n
	}
	return nil
}

// Recv blocks until one complete message has been decoded or the
// configured deadline elapses.
func (c *Client) Recv() (protocol.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return protocol.Message{}, &NotConnectedError{}
	}

	deadline := time.Now().Add(c.deadline)
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return protocol.Message{}, &IOError{Cause: err}
	}

	buf := make([]byte, readChunkSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			msg, decodeErr := c.codec.Decode(buf[:n])
			if decodeErr != nil {
				return protocol.Message{}, &CodecError{Cause: decodeErr}
			}
			if msg != nil {
				return *msg, nil
			}
		}
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return protocol.Message{}, &ReadTimeoutError{Milliseconds: int(c.deadline.Milliseconds())}
			}
			c.conn = nil
			return protocol.Message{}, &ConnectionLostError{Cause: err}
		}
	}
}

// Close idempotently tears down the connection, bounded to closeBound. A
// Client may be reconnected with Connect after Close.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- conn.Close() }()

	select {
	case err := <-done:
		if err != nil {
			return &IOError{Cause: err}
		}
		return nil
	case <-time.After(closeBound):
		return fmt.Errorf("transport: close did not complete within %s", closeBound)
	}
}
