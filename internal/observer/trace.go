package observer

import (
	"time"

	"github.com/cwbudde/iteropt/internal/core"
	"github.com/cwbudde/iteropt/internal/store"
)

// Trace appends every observed state to a run's trace.jsonl.
type Trace[P any] struct {
	trace *store.Trace
	toVec func(P) []float64
}

// NewTrace starts the trace of runID under baseDir. toVec flattens the
// current parameter into the entry; nil leaves parameters out.
func NewTrace[P any](baseDir, runID string, toVec func(P) []float64) (*Trace[P], error) {
	t, err := store.CreateTrace(baseDir, runID)
	if err != nil {
		return nil, err
	}
	return &Trace[P]{trace: t, toVec: toVec}, nil
}

// Observe implements core.Observer.
func (o *Trace[P]) Observe(state core.State[P]) error {
	return o.trace.Append(store.NewTraceEntry(state, o.toVec, time.Now()))
}

// Path returns the trace file path.
func (o *Trace[P]) Path() string {
	return o.trace.Path()
}

// Close flushes and closes the trace file.
func (o *Trace[P]) Close() error {
	return o.trace.Close()
}
