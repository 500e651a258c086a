package testutil

import (
	"net"
	"time"

	"github.com/jianghu-games/wuxia/internal/protocol"
)

// ProtoClient drives the framed game protocol from the client side in
// tests. A background goroutine decodes inbound frames into a channel
// so test code never blocks the peer's writes.
type ProtoClient struct {
	conn   net.Conn
	frames chan protocol.Message
}

// NewProtoClient wraps conn and starts the decode loop.
func NewProtoClient(conn net.Conn) *ProtoClient {
	c := &ProtoClient{
		conn:   conn,
		frames: make(chan protocol.Message, 64),
	}
	go c.readLoop()
	return c
}

func (c *ProtoClient) readLoop() {
	r := protocol.NewReader(c.conn)
	for {
		m, err := r.Decode()
		if err != nil {
			close(c.frames)
			return
		}
		c.frames <- m
	}
}

// Send writes one frame.
func (c *ProtoClient) Send(t protocol.MsgType, data string) error {
	return protocol.Encode(c.conn, protocol.Message{Type: t, Data: data})
}

// SendLine writes one user-input frame.
func (c *ProtoClient) SendLine(line string) error {
	return c.Send(protocol.MsgUserInput, line)
}

// Next returns the next inbound frame, or false on timeout or a closed
// stream.
func (c *ProtoClient) Next(timeout time.Duration) (protocol.Message, bool) {
	select {
	case m, ok := <-c.frames:
		return m, ok
	case <-time.After(timeout):
		return protocol.Message{}, false
	}
}

// WaitFor discards frames until one of type t arrives.
func (c *ProtoClient) WaitFor(t protocol.MsgType, timeout time.Duration) (protocol.Message, bool) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return protocol.Message{}, false
		}
		m, ok := c.Next(remaining)
		if !ok {
			return protocol.Message{}, false
		}
		if m.Type == t {
			return m, true
		}
	}
}

// Close closes the underlying connection.
func (c *ProtoClient) Close() {
	_ = c.conn.Close()
}
