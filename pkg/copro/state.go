package copro

import "fmt"

// State is the transfer state of the coprocessor.
type State int32

// Transfer states.
const (
	StateInit State = iota
	StateIdle
	StateStart
	StateWait
	StateDone
	StateAbort
)

var stateNames = [...]string{"INIT", "IDLE", "START", "WAIT", "DONE", "ABORT"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}
