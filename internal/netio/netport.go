package netio

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jianghu-games/wuxia/internal/protocol"
)

// maxPromptRetries bounds re-prompting on malformed ranged input.
const maxPromptRetries = 20

// Conn is the connection surface a NetPort drives. Implemented by the
// per-connection handler; kept local so this package never imports the
// server.
type Conn interface {
	// Send writes one frame. A terminal send error marks the
	// connection dead.
	Send(m protocol.Message) error
	// AwaitInput pops one queued input line, waiting up to timeout.
	// A zero timeout waits indefinitely.
	AwaitInput(timeout time.Duration) (string, error)
	// Alive reports whether the connection is still usable.
	Alive() bool
	// SetWaiting flags the connection as waiting for other players.
	SetWaiting(waiting bool)
}

// ErrAwaitTimeout must be returned by Conn.AwaitInput when the wait
// expires; the port translates it into the warning/grace policy.
var ErrAwaitTimeout = errors.New("await input timed out")

// TimeoutPolicy configures prompted-read timeout behavior.
type TimeoutPolicy struct {
	// InputTimeout is the wait before the soft warning is sent.
	InputTimeout time.Duration
	// GraceTimeout is the additional wait after the warning.
	GraceTimeout time.Duration
	// HardEnabled controls whether the hard timeout fires after the
	// grace window. When false, the warning is still sent but the
	// read then waits indefinitely.
	HardEnabled bool
}

// NetPort implements Port over a live connection.
type NetPort struct {
	conn   Conn
	policy TimeoutPolicy
	logger *zap.Logger
}

// NewNetPort creates a network-backed port.
//
// Precondition: conn and logger must be non-nil.
func NewNetPort(conn Conn, policy TimeoutPolicy, logger *zap.Logger) *NetPort {
	return &NetPort{conn: conn, policy: policy, logger: logger}
}

// Println implements Port.
func (p *NetPort) Println(msg string) {
	if err := p.conn.Send(protocol.Text(msg + "\n")); err != nil {
		p.logger.Debug("dropping output on dead port", zap.Error(err))
	}
}

// PrintTitle implements Port.
func (p *NetPort) PrintTitle(title string) {
	p.Println("\n========== " + title + " ==========")
}

// ReadLine implements Port: prompt, then wait with the soft/hard
// timeout policy.
//
// Postcondition: Returns ErrClosed if the connection is dead,
// ErrTimeout if the hard timeout fired, or the input line.
func (p *NetPort) ReadLine(prompt string) (string, error) {
	if !p.conn.Alive() {
		return "", ErrClosed
	}
	if err := p.conn.Send(protocol.Prompt(prompt)); err != nil {
		return "", ErrClosed
	}

	line, err := p.conn.AwaitInput(p.policy.InputTimeout)
	if err == nil {
		return line, nil
	}
	if !errors.Is(err, ErrAwaitTimeout) {
		return "", ErrClosed
	}

	// Soft timeout: warn, then grant the grace window.
	warn := protocol.Message{
		Type: protocol.MsgTimeoutWarning,
		Data: "输入超时警告：请在宽限期内响应，否则将由AI接管！",
	}
	if err := p.conn.Send(warn); err != nil {
		return "", ErrClosed
	}

	grace := p.policy.GraceTimeout
	if !p.policy.HardEnabled {
		// Enforcement disabled: wait as long as the connection lives.
		grace = 0
	}
	line, err = p.conn.AwaitInput(grace)
	if err == nil {
		return line, nil
	}
	if errors.Is(err, ErrAwaitTimeout) {
		exceeded := protocol.Message{
			Type: protocol.MsgTimeoutExceeded,
			Data: "输入超时，AI已接管你的角色。",
		}
		if sendErr := p.conn.Send(exceeded); sendErr != nil {
			return "", ErrClosed
		}
		return "", ErrTimeout
	}
	return "", ErrClosed
}

// ReadInt implements Port: loop on malformed or out-of-range input,
// bounded by maxPromptRetries.
func (p *NetPort) ReadInt(prompt string, min, max int) (int, error) {
	for i := 0; i < maxPromptRetries; i++ {
		line, err := p.ReadLine(prompt)
		if err != nil {
			return 0, err
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr != nil || n < min || n > max {
			p.Println("无效输入，请输入 " + strconv.Itoa(min) + "-" + strconv.Itoa(max) + " 之间的数字。")
			continue
		}
		return n, nil
	}
	return 0, ErrTooManyRetries
}

// Confirm implements Port.
func (p *NetPort) Confirm(prompt string) (bool, error) {
	for i := 0; i < maxPromptRetries; i++ {
		line, err := p.ReadLine(prompt + " (y/n): ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes", "是":
			return true, nil
		case "n", "no", "否":
			return false, nil
		}
		p.Println("请输入 y 或 n。")
	}
	return false, ErrTooManyRetries
}

// WaitForEnter implements Port. Timeouts and dead connections just
// return; pacing pauses must never wedge a round.
func (p *NetPort) WaitForEnter() {
	_, _ = p.ReadLine("按回车键继续...")
}

// SetWaiting implements Port.
func (p *NetPort) SetWaiting(waiting bool) {
	p.conn.SetWaiting(waiting)
}

// Alive implements Port.
func (p *NetPort) Alive() bool {
	return p.conn.Alive()
}

// Close tears down the underlying connection when it supports closing.
// Used when a reconnect supersedes this port's binding.
func (p *NetPort) Close() {
	if c, ok := p.conn.(interface{ Close() }); ok {
		c.Close()
	}
}
