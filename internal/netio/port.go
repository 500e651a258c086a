// Package netio abstracts player-facing I/O behind a console-like
// port. Game logic prints and prompts through a Port and never touches
// sockets; the network-backed implementation translates every read
// into a prompt frame plus a queued-input wait with timeout policy.
package netio

import "errors"

var (
	// ErrClosed is returned by reads on a port whose connection is no
	// longer alive.
	ErrClosed = errors.New("port closed")
	// ErrTimeout is returned when the hard input timeout fires.
	ErrTimeout = errors.New("input timed out")
	// ErrTooManyRetries is returned when a ranged read keeps receiving
	// malformed input past the retry bound.
	ErrTooManyRetries = errors.New("too many invalid inputs")
)

// Port is the console-like surface the game logic consumes.
type Port interface {
	// Println sends one line of display text. Send failures are
	// swallowed; a dead port drops output silently.
	Println(msg string)
	// PrintTitle sends a line framed as a section title.
	PrintTitle(title string)
	// ReadLine prompts and waits for one line of input.
	ReadLine(prompt string) (string, error)
	// ReadInt prompts until an integer in [min, max] arrives,
	// re-prompting on malformed input up to a retry bound.
	ReadInt(prompt string, min, max int) (int, error)
	// Confirm prompts for a yes/no answer (y/n).
	Confirm(prompt string) (bool, error)
	// WaitForEnter blocks until the player presses enter (or the port
	// dies or times out).
	WaitForEnter()
	// SetWaiting flags the underlying connection as waiting for other
	// players, exempting it from liveness timeout.
	SetWaiting(waiting bool)
	// Alive reports whether the underlying connection can still be
	// read from.
	Alive() bool
}
