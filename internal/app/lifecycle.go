package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/threadmirror/internal/domain"
	"github.com/bft-labs/threadmirror/internal/ports"
)

// ShutdownTimeout is how long Stop waits for the in-flight call to be
// abandoned before saving anyway.
const ShutdownTimeout = 10 * time.Second

// State represents the lifecycle state of the service.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting, StateStopping},
}

// Lifecycle guards the service state machine.
type Lifecycle struct {
	mu     sync.RWMutex
	state  State
	logger ports.Logger
}

// NewLifecycle creates a lifecycle in StateStopped.
func NewLifecycle(logger ports.Logger) *Lifecycle {
	return &Lifecycle{state: StateStopped, logger: logger}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo moves to newState if the transition is allowed.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	old := l.state
	allowed := false
	for _, s := range transitions[old] {
		if s == newState {
			allowed = true
			break
		}
	}
	if !allowed {
		l.mu.Unlock()
		if old == StateStopped || old == StateCrashed {
			return fmt.Errorf("%w: %s -> %s", domain.ErrNotRunning, old, newState)
		}
		return fmt.Errorf("%w: %s -> %s", domain.ErrAlreadyRunning, old, newState)
	}
	l.state = newState
	l.mu.Unlock()

	l.logger.Info("state transition",
		ports.String("from", old.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)
	return nil
}

// CanStart returns true if Start() can be called.
func (l *Lifecycle) CanStart() bool {
	s := l.State()
	return s == StateStopped || s == StateCrashed
}

// CanStop returns true if Stop() can be called.
func (l *Lifecycle) CanStop() bool {
	s := l.State()
	return s == StateRunning || s == StateStarting || s == StateCrashed
}
