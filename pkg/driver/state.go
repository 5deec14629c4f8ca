package driver

import (
	"fmt"
	"sync"

	"gemimg/pkg/logger"
)

// State is a step in the interaction with one page
type State int

const (
	StateUnauthenticated State = iota
	StateAwaitingConsent
	StateAwaitingLogin
	StateReady
	StateSubmitting
	StateAwaitingImage
	StateDownloading
	StateDone
	StateRefused
	StateTimedOut
)

var stateNames = map[State]string{
	StateUnauthenticated: "unauthenticated",
	StateAwaitingConsent: "awaiting_consent",
	StateAwaitingLogin:   "awaiting_login",
	StateReady:           "ready",
	StateSubmitting:      "submitting",
	StateAwaitingImage:   "awaiting_image",
	StateDownloading:     "downloading",
	StateDone:            "done",
	StateRefused:         "refused",
	StateTimedOut:        "timed_out",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether s ends a generation attempt
func (s State) Terminal() bool {
	return s == StateDone || s == StateRefused || s == StateTimedOut
}

var transitions = map[State][]State{
	StateUnauthenticated: {StateAwaitingConsent, StateAwaitingLogin, StateReady},
	StateAwaitingConsent: {StateAwaitingLogin, StateReady},
	StateAwaitingLogin:   {StateReady, StateTimedOut},
	StateReady:           {StateSubmitting},
	StateSubmitting:      {StateAwaitingImage},
	StateAwaitingImage:   {StateDownloading, StateRefused, StateTimedOut},
	StateDownloading:     {StateDone, StateTimedOut},
	StateDone:            {StateReady},
}

// CanTransition reports whether the table allows from -> to
func CanTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionError is returned for a move the table does not allow
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition %s -> %s", e.From, e.To)
}

// Machine tracks the current state of one page
type Machine struct {
	mu      sync.Mutex
	state   State
	history []State
	log     logger.Logger
}

// NewMachine starts in StateUnauthenticated
func NewMachine(log logger.Logger) *Machine {
	return &Machine{
		state:   StateUnauthenticated,
		history: []State{StateUnauthenticated},
		log:     logger.OrDefault(log),
	}
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns every state entered since the last Reset
func (m *Machine) History() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]State, len(m.history))
	copy(out, m.history)
	return out
}

// Transition moves to the given state if the table allows it
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !CanTransition(m.state, to) {
		return &TransitionError{From: m.state, To: to}
	}

	logger.LogTransition(m.log, m.state.String(), to.String())
	m.state = to
	m.history = append(m.history, to)
	return nil
}

// Reset returns to StateUnauthenticated. A fresh navigation starts over
// regardless of how the previous attempt ended.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateUnauthenticated
	m.history = []State{StateUnauthenticated}
}
