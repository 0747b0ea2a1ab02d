package pool

import "fmt"

// State is the ownership state of a buffer.
type State int32

// Buffer states.
const (
	StateFree State = iota
	StateFilling
	StateReady
	StateDraining
)

var stateNames = [...]string{"Free", "Filling", "Ready", "Draining"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// TransitionError reports a state change not allowed from the
// current state.
type TransitionError struct {
	Index int
	From  State
	To    State
}

// Error implements error.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("buffer %d: invalid transition %s -> %s", e.Index, e.From, e.To)
}
