package converter

import (
	"fmt"

	"github.com/bassosimone/runtimex"
)

// State is the state of a conversion session
type State uint8

// Session states
const (
	Idle State = iota
	Decoding
	Finalizing
	Done
	Failed
	Aborted
)

var stateNames = [...]string{"idle", "decoding", "finalizing", "done", "failed", "aborted"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == Done || s == Failed || s == Aborted
}

// Finalizing may fail when the output cannot be written.
var transitions = map[State][]State{
	Idle:       {Decoding},
	Decoding:   {Finalizing, Failed, Aborted},
	Finalizing: {Done, Failed},
}

func (s State) canMoveTo(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Session is one conversion of one file. It is owned by a single goroutine.
type Session struct {
	ID     string
	Path   string
	state  State
	logger SLogger
}

func newSession(path string, logger SLogger) *Session {
	return &Session{ID: NewSpanID(), Path: path, logger: logger}
}

// State returns the current state
func (s *Session) State() State {
	return s.state
}

// transition moves the session to a new state. An illegal transition is a
// programming error and panics.
func (s *Session) transition(to State) {
	runtimex.Assert(s.state.canMoveTo(to))
	s.logger.Info("sessionState", "span_id", s.ID, "from", s.state.String(), "to", to.String())
	s.state = to
}
