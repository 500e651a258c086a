// Package server implements the TCP surface of the game: framed
// connections, the per-connection handshake state machine, and the
// listener that starts the round loop once enough players are bound.
package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jianghu-games/wuxia/internal/netio"
	"github.com/jianghu-games/wuxia/internal/protocol"
)

// ErrConnClosed is returned by reads and writes on a dead connection.
var ErrConnClosed = errors.New("connection closed")

// Conn is one client connection. A single read-loop goroutine owns the
// socket's read side and feeds the inbound queue; any goroutine may
// Send. Conn implements netio.Conn so a NetPort can drive it.
type Conn struct {
	id           uuid.UUID
	nc           net.Conn
	reader       *protocol.Reader
	writeTimeout time.Duration
	logger       *zap.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	queue    []protocol.Message
	notify   chan struct{}
	waiting  bool
	lastSeen time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// NewConn wraps an accepted socket.
//
// Precondition: nc and logger must be non-nil.
func NewConn(nc net.Conn, writeTimeout time.Duration, logger *zap.Logger) *Conn {
	id := uuid.New()
	return &Conn{
		id:           id,
		nc:           nc,
		reader:       protocol.NewReader(nc),
		writeTimeout: writeTimeout,
		logger:       logger.With(zap.String("conn_id", id.String())),
		notify:       make(chan struct{}),
		lastSeen:     time.Now(),
		done:         make(chan struct{}),
	}
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id.String() }

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string { return c.nc.RemoteAddr().String() }

// Send writes one frame. Concurrent senders are serialized. A write
// failure that indicates a closed socket kills the connection; a
// transient failure (a deadline miss on a stalled peer) is logged and
// returned without marking the connection dead, so one bad write never
// fabricates a disconnect.
func (c *Conn) Send(m protocol.Message) error {
	if !c.Alive() {
		return ErrConnClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.nc.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := protocol.Encode(c.nc, m); err != nil {
		if isTransientWriteError(err) {
			c.logger.Warn("write failed, keeping connection", zap.Error(err))
			return fmt.Errorf("sending frame: %w", err)
		}
		c.logger.Debug("write failed, closing connection", zap.Error(err))
		c.Close()
		return fmt.Errorf("%w: %v", ErrConnClosed, err)
	}
	return nil
}

// isTransientWriteError reports whether a write error might clear on a
// later attempt. A deadline miss only means the peer's window is full;
// a closed socket or broken pipe never recovers.
func isTransientWriteError(err error) bool {
	if errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ReadLoop decodes inbound frames until the connection dies. It
// answers heartbeats inline, honors client disconnects, and queues
// everything else for AwaitMessage/AwaitInput.
//
// Postcondition: The connection is closed when ReadLoop returns. A
// malformed frame terminates the connection without resynchronization.
func (c *Conn) ReadLoop() {
	for {
		m, err := c.reader.Decode()
		if err != nil {
			if errors.Is(err, protocol.ErrProtocol) {
				c.logger.Warn("protocol error, terminating connection", zap.Error(err))
			} else if !errors.Is(err, io.EOF) && c.Alive() {
				c.logger.Debug("read failed", zap.Error(err))
			}
			c.Close()
			return
		}

		c.touch()

		switch m.Type {
		case protocol.MsgHeartbeat:
			_ = c.Send(protocol.Message{Type: protocol.MsgHeartbeat})
		case protocol.MsgDisconnect:
			c.logger.Info("client requested disconnect")
			c.Close()
			return
		default:
			c.enqueue(m)
		}
	}
}

func (c *Conn) enqueue(m protocol.Message) {
	c.mu.Lock()
	c.queue = append(c.queue, m)
	close(c.notify)
	c.notify = make(chan struct{})
	c.mu.Unlock()
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// LastSeen reports when the last frame arrived, for liveness checks.
func (c *Conn) LastSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

// AwaitMessage pops the next queued inbound message, waiting up to
// timeout. A zero timeout waits until the connection dies.
func (c *Conn) AwaitMessage(timeout time.Duration) (protocol.Message, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			m := c.queue[0]
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return m, nil
		}
		notify := c.notify
		c.mu.Unlock()

		if !c.Alive() {
			return protocol.Message{}, ErrConnClosed
		}

		select {
		case <-notify:
		case <-c.done:
		case <-deadline:
			return protocol.Message{}, netio.ErrAwaitTimeout
		}
	}
}

// AwaitInput implements netio.Conn: pops the next user-input line,
// dropping stale frames of other types.
func (c *Conn) AwaitInput(timeout time.Duration) (string, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		remaining := time.Duration(0)
		if timeout > 0 {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return "", netio.ErrAwaitTimeout
			}
		}

		m, err := c.AwaitMessage(remaining)
		if err != nil {
			return "", err
		}
		if m.Type == protocol.MsgUserInput {
			return strings.TrimRight(m.Data, "\r\n"), nil
		}
		c.logger.Debug("dropping unexpected frame while awaiting input",
			zap.Stringer("type", m.Type))
	}
}

// Alive implements netio.Conn.
func (c *Conn) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// SetWaiting implements netio.Conn: a waiting connection is exempt
// from liveness enforcement while other players act.
func (c *Conn) SetWaiting(waiting bool) {
	c.mu.Lock()
	c.waiting = waiting
	c.mu.Unlock()
}

// Waiting reports the waiting exemption.
func (c *Conn) Waiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}

// Done is closed when the connection dies.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Close tears the connection down. Safe to call repeatedly and from
// any goroutine.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.nc.Close()
	})
}
