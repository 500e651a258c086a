package turn

import "fmt"

// Kind tags how a turn ended. Control flow inspects the tag instead of
// matching on error values.
type Kind int

const (
	// KindCompleted: the entity took a round-consuming action.
	KindCompleted Kind = iota
	// KindEscaped: the entity saved and left the game voluntarily.
	KindEscaped
	// KindDisconnected: the connection died mid-turn; the entity is now
	// AI-controlled.
	KindDisconnected
	// KindError: the turn failed for another reason (timeout, retry
	// exhaustion); the entity is AI-controlled and the reason is in Err.
	KindError
)

// Result is the outcome of one entity's turn.
type Result struct {
	Kind Kind
	Err  error
}

func Completed() Result    { return Result{Kind: KindCompleted} }
func Escaped() Result      { return Result{Kind: KindEscaped} }
func Disconnected() Result { return Result{Kind: KindDisconnected} }

func Errorf(format string, args ...any) Result {
	return Result{Kind: KindError, Err: fmt.Errorf(format, args...)}
}

func (r Result) String() string {
	switch r.Kind {
	case KindCompleted:
		return "completed"
	case KindEscaped:
		return "escaped"
	case KindDisconnected:
		return "disconnected"
	default:
		if r.Err != nil {
			return "error: " + r.Err.Error()
		}
		return "error"
	}
}
