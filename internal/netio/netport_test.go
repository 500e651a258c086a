package netio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jianghu-games/wuxia/internal/protocol"
)

// fakeConn scripts AwaitInput results and records sent frames.
type fakeConn struct {
	sent    []protocol.Message
	inputs  []string
	errs    []error
	pos     int
	alive   bool
	waiting bool
}

func newFakeConn(inputs []string, errs []error) *fakeConn {
	return &fakeConn{inputs: inputs, errs: errs, alive: true}
}

func (c *fakeConn) Send(m protocol.Message) error {
	if !c.alive {
		return ErrClosed
	}
	c.sent = append(c.sent, m)
	return nil
}

func (c *fakeConn) AwaitInput(timeout time.Duration) (string, error) {
	if c.pos >= len(c.inputs) {
		return "", ErrAwaitTimeout
	}
	in, err := c.inputs[c.pos], c.errs[c.pos]
	c.pos++
	return in, err
}

func (c *fakeConn) Alive() bool       { return c.alive }
func (c *fakeConn) SetWaiting(w bool) { c.waiting = w }

func (c *fakeConn) sentTypes() []protocol.MsgType {
	types := make([]protocol.MsgType, len(c.sent))
	for i, m := range c.sent {
		types[i] = m.Type
	}
	return types
}

func policy(hard bool) TimeoutPolicy {
	return TimeoutPolicy{
		InputTimeout: 50 * time.Millisecond,
		GraceTimeout: 20 * time.Millisecond,
		HardEnabled:  hard,
	}
}

func TestReadLine_Success(t *testing.T) {
	conn := newFakeConn([]string{"hello"}, []error{nil})
	port := NewNetPort(conn, policy(true), zap.NewNop())

	line, err := port.ReadLine("name? ")
	require.NoError(t, err)
	assert.Equal(t, "hello", line)
	require.Len(t, conn.sent, 1)
	assert.Equal(t, protocol.MsgRequestInput, conn.sent[0].Type)
	assert.Equal(t, "name? ", conn.sent[0].Data)
}

func TestReadLine_DeadPortFailsFast(t *testing.T) {
	conn := newFakeConn(nil, nil)
	conn.alive = false
	port := NewNetPort(conn, policy(true), zap.NewNop())

	_, err := port.ReadLine("x")
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, conn.sent, "no frames on a dead port")
}

func TestReadLine_SoftWarningThenAnswer(t *testing.T) {
	// First wait times out, second (grace) delivers input.
	conn := newFakeConn([]string{"", "late"}, []error{ErrAwaitTimeout, nil})
	port := NewNetPort(conn, policy(true), zap.NewNop())

	line, err := port.ReadLine("move? ")
	require.NoError(t, err)
	assert.Equal(t, "late", line)
	assert.Equal(t,
		[]protocol.MsgType{protocol.MsgRequestInput, protocol.MsgTimeoutWarning},
		conn.sentTypes())
}

func TestReadLine_HardTimeout(t *testing.T) {
	conn := newFakeConn([]string{"", ""}, []error{ErrAwaitTimeout, ErrAwaitTimeout})
	port := NewNetPort(conn, policy(true), zap.NewNop())

	_, err := port.ReadLine("move? ")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t,
		[]protocol.MsgType{protocol.MsgRequestInput, protocol.MsgTimeoutWarning, protocol.MsgTimeoutExceeded},
		conn.sentTypes())
}

func TestReadLine_HardTimeoutDisabledKeepsWaiting(t *testing.T) {
	// Warning fires, then the indefinite grace wait delivers input.
	conn := newFakeConn([]string{"", "slow answer"}, []error{ErrAwaitTimeout, nil})
	port := NewNetPort(conn, policy(false), zap.NewNop())

	line, err := port.ReadLine("move? ")
	require.NoError(t, err)
	assert.Equal(t, "slow answer", line)
	assert.Equal(t,
		[]protocol.MsgType{protocol.MsgRequestInput, protocol.MsgTimeoutWarning},
		conn.sentTypes())
}

func TestReadInt_RepromptsOnGarbage(t *testing.T) {
	conn := newFakeConn([]string{"abc", "99", " 3 "}, []error{nil, nil, nil})
	port := NewNetPort(conn, policy(true), zap.NewNop())

	n, err := port.ReadInt("choice: ", 1, 6)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReadInt_RetryBound(t *testing.T) {
	inputs := make([]string, maxPromptRetries)
	errs := make([]error, maxPromptRetries)
	for i := range inputs {
		inputs[i] = "nope"
	}
	conn := newFakeConn(inputs, errs)
	port := NewNetPort(conn, policy(true), zap.NewNop())

	_, err := port.ReadInt("choice: ", 1, 3)
	assert.ErrorIs(t, err, ErrTooManyRetries)
}

func TestConfirm(t *testing.T) {
	conn := newFakeConn([]string{"maybe", "Y"}, []error{nil, nil})
	port := NewNetPort(conn, policy(true), zap.NewNop())

	ok, err := port.Confirm("sure?")
	require.NoError(t, err)
	assert.True(t, ok)

	conn = newFakeConn([]string{"n"}, []error{nil})
	port = NewNetPort(conn, policy(true), zap.NewNop())
	ok, err = port.Confirm("sure?")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetWaitingForwards(t *testing.T) {
	conn := newFakeConn(nil, nil)
	port := NewNetPort(conn, policy(true), zap.NewNop())
	port.SetWaiting(true)
	assert.True(t, conn.waiting)
}
