package transport

import (
	"context"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sys/unix"

	"github.com/henrycontrol/turnkey/internal/logging"
	"github.com/henrycontrol/turnkey/internal/protocol"
)

// DefaultMaxConnections bounds how many turnstile devices a single Server
// admits at once, matching the fixed-capacity map the spec requires rather
// than an unbounded one.
const DefaultMaxConnections = 64

// DefaultConnectionDeadline is the per-connection read/write deadline the
// server applies to every device socket.
const DefaultConnectionDeadline = 3000 * time.Millisecond

// recvChanBuffer is how many pending inbound messages RecvAny's
// fan-in channel can hold before a slow consumer starts applying
// backpressure to individual connection goroutines.
const recvChanBuffer = 64

// connection is one admitted device socket and the goroutine reading it.
type connection struct {
	deviceID protocol.DeviceID
	conn     net.Conn
	codec    *protocol.Codec
	deadline time.Duration

	mu sync.Mutex
}

func (c *connection) send(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

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
			return &ConnectionLostError{Cause: err}
		}
		written += n
	}
	return nil
}

// inboundMessage pairs a decoded message with the device it arrived from,
// for RecvAny's fan-in.
type inboundMessage struct {
	deviceID protocol.DeviceID
	msg      protocol.Message
	err      error
}

// Server accepts TCP connections from turnstile devices, learns each
// device's id from its first message, and multiplexes Recv/Send across
// every admitted connection. Accept runs in its own goroutine while
// RecvAny is drained by another, so the device-id map is guarded by mu
// rather than owned by a single goroutine: every component of a
// multiplexed server (the accept loop and one handler per inbound
// message) touches conns concurrently.
type Server struct {
	listener net.Listener
	logger   logging.Logger

	maxConnections int
	deadline       time.Duration

	mu     sync.Mutex
	conns  map[protocol.DeviceID]*connection
	inbox  chan inboundMessage
	closed chan struct{}
}

// NewServer binds addr with the default connection cap and deadline.
func NewServer(addr string) (*Server, error) {
	return NewServerWithLimits(addr, DefaultMaxConnections, DefaultConnectionDeadline)
}

// NewServerWithLimits binds addr, capping concurrent admitted connections
// at maxConnections via netutil.LimitListener and applying deadline to
// every device socket's reads and writes.
func NewServerWithLimits(addr string, maxConnections int, deadline time.Duration) (*Server, error) {
	cfg := net.ListenConfig{
		Control: controlReuseAddr,
	}

	ln, err := cfg.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, &BindFailedError{Address: addr, Cause: err}
	}

	limited := netutil.LimitListener(ln, maxConnections)

	s := &Server{
		listener:       limited,
		logger:         logging.Default(),
		maxConnections: maxConnections,
		deadline:       deadline,
		conns:          make(map[protocol.DeviceID]*connection),
		inbox:          make(chan inboundMessage, recvChanBuffer),
		closed:         make(chan struct{}),
	}
	return s, nil
}

// controlReuseAddr sets SO_REUSEADDR on the listening socket before bind,
// so a restarted server does not fail to rebind a socket still lingering
// in TIME_WAIT.
func controlReuseAddr(network, address string, c syscall.RawConn) error {
	return c.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
}

// SetLogger overrides the server's logger.
func (s *Server) SetLogger(l logging.Logger) { s.logger = l }

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr { return s.listener.Addr() }

// Accept blocks for one incoming TCP connection, reads its first message
// to learn the device id, admits or rejects it, and — if admitted —
// queues that first message for RecvAny and starts the connection's
// read-fan-in goroutine. Accept itself never returns a
// *DuplicateDeviceError to the caller: a duplicate-device socket, or one
// whose first message cannot be read, is closed silently and Accept loops
// to the next incoming connection. The connection cap is enforced by the
// LimitListener: while maxConnections sockets are open, the listener does
// not hand Accept another one, so a connection over the cap waits rather
// than being closed, and no *MaxConnectionsReachedError is returned.
func (s *Server) Accept() (protocol.DeviceID, error) {
	for {
		raw, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return 0, &IOError{Cause: err}
			default:
			}
			return 0, &IOError{Cause: err}
		}

		if tc, ok := raw.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}

		first, codec, err := s.learnDeviceID(raw)
		if err != nil {
			s.logger.Warn("rejecting connection: failed to learn device id", logging.Field{Key: "error", Value: err.Error()})
			_ = raw.Close()
			continue
		}
		deviceID := first.DeviceID

		s.mu.Lock()
		_, exists := s.conns[deviceID]
		var c *connection
		if !exists {
			c = &connection{deviceID: deviceID, conn: raw, codec: codec, deadline: s.deadline}
			s.conns[deviceID] = c
		}
		s.mu.Unlock()

		if exists {
			s.logger.Warn("rejecting duplicate device", logging.DeviceField(deviceID))
			_ = raw.Close()
			continue
		}
		s.deliver(deviceID, first)
		go s.pump(c)

		s.logger.Info("device connected", logging.DeviceField(deviceID))
		return deviceID, nil
	}
}

// learnDeviceID reads from raw until the codec produces the first
// message, then returns that message (whose DeviceID names the device)
// along with the codec (which retains any bytes already read past that
// first frame).
func (s *Server) learnDeviceID(raw net.Conn) (protocol.Message, *protocol.Codec, error) {
	codec := protocol.NewCodec()
	buf := make([]byte, readChunkSize)

	if err := raw.SetReadDeadline(time.Now().Add(s.deadline)); err != nil {
		return protocol.Message{}, nil, &IOError{Cause: err}
	}

	for {
		n, err := raw.Read(buf)
		if n > 0 {
			msg, decodeErr := codec.Decode(buf[:n])
			if decodeErr != nil {
				return protocol.Message{}, nil, &CodecError{Cause: decodeErr}
			}
			if msg != nil {
				return *msg, codec, nil
			}
		}
		if err != nil {
			return protocol.Message{}, nil, &InvalidDeviceIDError{Cause: err}
		}
	}
}

// deliver enqueues a decoded message for RecvAny, applying one bounded
// retry before dropping the message if the inbox is saturated.
func (s *Server) deliver(deviceID protocol.DeviceID, msg protocol.Message) {
	select {
	case s.inbox <- inboundMessage{deviceID: deviceID, msg: msg}:
		return
	default:
	}

	time.Sleep(10 * time.Millisecond)
	select {
	case s.inbox <- inboundMessage{deviceID: deviceID, msg: msg}:
	default:
		s.logger.Error("dropping message: inbox saturated", logging.DeviceField(deviceID))
	}
}

// pump continuously reads frames from one connection after its first
// message has already been consumed by Accept, forwarding each to the
// shared inbox. On an I/O error it reports the error, removes the
// connection from the device map and closes it.
func (s *Server) pump(c *connection) {
	defer func() {
		s.mu.Lock()
		if s.conns[c.deviceID] == c {
			delete(s.conns, c.deviceID)
		}
		s.mu.Unlock()
		_ = c.conn.Close()
	}()
	buf := make([]byte, readChunkSize)
	for {
		if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
			s.inbox <- inboundMessage{deviceID: c.deviceID, err: &IOError{Cause: err}}
			return
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			msg, decodeErr := c.codec.Decode(buf[:n])
			if decodeErr != nil {
				s.inbox <- inboundMessage{deviceID: c.deviceID, err: &CodecError{Cause: decodeErr}}
				continue
			}
			if msg != nil {
				s.deliver(c.deviceID, *msg)
			}
		}
		if err != nil {
			s.inbox <- inboundMessage{deviceID: c.deviceID, err: &ConnectionLostError{Cause: err}}
			return
		}
	}
}

// RecvAny blocks until a message arrives from any connected device.
func (s *Server) RecvAny() (protocol.DeviceID, protocol.Message, error) {
	item := <-s.inbox
	if item.err != nil {
		return item.deviceID, protocol.Message{}, item.err
	}
	return item.deviceID, item.msg, nil
}

// Recv blocks until a message arrives from the named device specifically,
// discarding (by re-queueing) messages from other devices in the
// meantime. Prefer RecvAny for multiplexed servers; Recv exists for tests
// and single-device sessions.
func (s *Server) Recv(deviceID protocol.DeviceID) (protocol.Message, error) {
	if !s.connected(deviceID) {
		return protocol.Message{}, &DeviceNotConnectedError{DeviceID: deviceID.String()}
	}
	var pending []inboundMessage
	defer func() {
		for _, p := range pending {
			s.inbox <- p
		}
	}()
	for {
		item := <-s.inbox
		if item.deviceID == deviceID {
			if item.err != nil {
				return protocol.Message{}, item.err
			}
			return item.msg, nil
		}
		pending = append(pending, item)
	}
}

// Send writes msg to the named device's connection.
func (s *Server) Send(deviceID protocol.DeviceID, msg protocol.Message) error {
	s.mu.Lock()
	c, ok := s.conns[deviceID]
	s.mu.Unlock()
	if !ok {
		return &DeviceNotConnectedError{DeviceID: deviceID.String()}
	}
	return c.send(msg)
}

// Disconnect closes and forgets the named device's connection.
func (s *Server) Disconnect(deviceID protocol.DeviceID) error {
	s.mu.Lock()
	c, ok := s.conns[deviceID]
	if ok {
		delete(s.conns, deviceID)
	}
	s.mu.Unlock()
	if !ok {
		return &DeviceNotConnectedError{DeviceID: deviceID.String()}
	}
	if err := c.conn.Close(); err != nil {
		return &IOError{Cause: err}
	}
	return nil
}

// connected reports whether deviceID currently has an admitted connection.
func (s *Server) connected(deviceID protocol.DeviceID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conns[deviceID]
	return ok
}

// ConnectedDevices returns the currently admitted device ids.
func (s *Server) ConnectedDevices() []protocol.DeviceID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.DeviceID, 0, len(s.conns))
	for id := range s.conns {
		out = append(out, id)
	}
	return out
}

// Close stops accepting new connections and closes every admitted
// connection.
func (s *Server) Close() error {
	close(s.closed)
	err := s.listener.Close()
	s.mu.Lock()
	for id, c := range s.conns {
		_ = c.conn.Close()
		delete(s.conns, id)
	}
	s.mu.Unlock()
	if err != nil {
		return &IOError{Cause: err}
	}
	return nil
}
