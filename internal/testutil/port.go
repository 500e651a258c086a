package testutil

import (
	"strconv"
	"strings"
	"sync"

	"github.com/jianghu-games/wuxia/internal/netio"
)

// ScriptPort is a netio.Port fed by a scripted input queue, recording
// all output. Safe for concurrent use so turn tasks can share it with
// the asserting test goroutine.
type ScriptPort struct {
	mu     sync.Mutex
	inputs []string
	output []string
	// FailWith, when non-nil, is returned by every read once the
	// scripted inputs are exhausted. Defaults to netio.ErrTimeout.
	FailWith error
	alive    bool
	waiting  bool
}

// NewScriptPort creates a port that replays the given input lines.
func NewScriptPort(inputs ...string) *ScriptPort {
	return &ScriptPort{inputs: inputs, alive: true}
}

// Println implements netio.Port.
func (p *ScriptPort) Println(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = append(p.output, msg)
}

// PrintTitle implements netio.Port.
func (p *ScriptPort) PrintTitle(title string) {
	p.Println("== " + title + " ==")
}

// ReadLine implements netio.Port.
func (p *ScriptPort) ReadLine(prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.output = append(p.output, prompt)
	if !p.alive {
		return "", netio.ErrClosed
	}
	if len(p.inputs) == 0 {
		if p.FailWith != nil {
			return "", p.FailWith
		}
		return "", netio.ErrTimeout
	}
	line := p.inputs[0]
	p.inputs = p.inputs[1:]
	return line, nil
}

// ReadInt implements netio.Port.
func (p *ScriptPort) ReadInt(prompt string, min, max int) (int, error) {
	for i := 0; i < 20; i++ {
		line, err := p.ReadLine(prompt)
		if err != nil {
			return 0, err
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(line))
		if convErr != nil || n < min || n > max {
			continue
		}
		return n, nil
	}
	return 0, netio.ErrTooManyRetries
}

// Confirm implements netio.Port.
func (p *ScriptPort) Confirm(prompt string) (bool, error) {
	line, err := p.ReadLine(prompt)
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y"), nil
}

// WaitForEnter implements netio.Port.
func (p *ScriptPort) WaitForEnter() {}

// SetWaiting implements netio.Port.
func (p *ScriptPort) SetWaiting(waiting bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waiting = waiting
}

// Alive implements netio.Port.
func (p *ScriptPort) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

// Kill marks the port dead: reads fail with netio.ErrClosed.
func (p *ScriptPort) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = false
}

// Waiting reports the last SetWaiting value.
func (p *ScriptPort) Waiting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiting
}

// Output returns everything printed or prompted so far, joined by
// newlines.
func (p *ScriptPort) Output() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.output, "\n")
}
