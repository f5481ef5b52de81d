package core

import "fmt"

// Observer is notified synchronously after the init merge and after every
// iteration. It must treat the state as read-only. A returned error aborts
// the run.
type Observer[P any] interface {
	Observe(state State[P]) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc[P any] func(state State[P]) error

// Observe calls f(state).
func (f ObserverFunc[P]) Observe(state State[P]) error {
	return f(state)
}

// ObserverMode decides at which iterations an observer fires.
// ObserveNever disables it, ObserveAlways fires every time and
// ObserveEvery(n) fires when the iteration number is a multiple of n.
type ObserverMode uint64

const (
	ObserveNever  ObserverMode = 0
	ObserveAlways ObserverMode = 1
)

// ObserveEvery fires every n iterations. n == 0 is the same as ObserveNever.
func ObserveEvery(n uint64) ObserverMode {
	return ObserverMode(n)
}

func (m ObserverMode) String() string {
	switch m {
	case ObserveNever:
		return "never"
	case ObserveAlways:
		return "always"
	default:
		return fmt.Sprintf("every %d iterations", uint64(m))
	}
}

func (m ObserverMode) fires(iter uint64) bool {
	if m == ObserveNever {
		return false
	}
	return iter%uint64(m) == 0
}

type registeredObserver[P any] struct {
	obs  Observer[P]
	mode ObserverMode
}

type observers[P any] []registeredObserver[P]

// notify calls the observers in registration order and stops at the
// first error.
func (o observers[P]) notify(state State[P]) error {
	for i, r := range o {
		if !r.mode.fires(state.Iter) {
			continue
		}
		if err := r.obs.Observe(state); err != nil {
			return fmt.Errorf("observer %d failed at iteration %d: %w", i, state.Iter, err)
		}
	}
	return nil
}
