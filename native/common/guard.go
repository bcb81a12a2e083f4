package common

import (
	"errors"
	"sync"
)

var (
	ErrModulePaused = errors.New("module paused")
	// ErrReentrantCall indicates an operation re-entered a latch that is
	// already held for the duration of a state transition.
	ErrReentrantCall = errors.New("reentrant call")
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Latch serialises state transitions against a single shared state and rejects
// re-entry while an operation is in flight. Boundary calls to external
// collaborators happen with the latch held, so a callback that loops back into
// the same engine fails instead of observing partial state.
type Latch struct {
	mu   sync.Mutex
	held bool
}

// Acquire takes the latch, failing if it is already held.
func (l *Latch) Acquire() error {
	l.mu.Lock()
	if l.held {
		l.mu.Unlock()
		return ErrReentrantCall
	}
	l.held = true
	l.mu.Unlock()
	return nil
}

// Release returns the latch. Releasing an unheld latch is a no-op.
func (l *Latch) Release() {
	l.mu.Lock()
	l.held = false
	l.mu.Unlock()
}
