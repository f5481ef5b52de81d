package core

import (
	"fmt"
	"strings"
	"time"
)

// Result is the final snapshot of a run. Two runs with the same operator,
// solver and initial parameter produce equal results apart from Duration.
type Result[P any] struct {
	Solver string
	State  State[P]
	Counts Counts
	// Duration is wall-clock time and differs between identical runs.
	Duration time.Duration
}

// Param returns the final parameter.
func (r Result[P]) Param() P { return r.State.Param }

// Cost returns the final cost (NaN if the last step did not evaluate it).
func (r Result[P]) Cost() float64 { return r.State.Cost }

// BestParam returns the best parameter found.
func (r Result[P]) BestParam() P { return r.State.BestParam }

// BestCost returns the best cost found.
func (r Result[P]) BestCost() float64 { return r.State.BestCost }

// Iterations returns the number of completed iterations.
func (r Result[P]) Iterations() uint64 { return r.State.Iter }

// Termination returns why the run stopped.
func (r Result[P]) Termination() TerminationReason { return r.State.Termination }

func (r Result[P]) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Result of %s:\n", r.Solver)
	fmt.Fprintf(&b, "    param (best):  %v\n", r.State.BestParam)
	fmt.Fprintf(&b, "    cost (best):   %v\n", r.State.BestCost)
	fmt.Fprintf(&b, "    iters (best):  %d\n", r.State.LastBestIter)
	fmt.Fprintf(&b, "    iters (total): %d\n", r.State.Iter)
	fmt.Fprintf(&b, "    param (final): %v\n", r.State.Param)
	fmt.Fprintf(&b, "    cost (final):  %v\n", r.State.Cost)
	fmt.Fprintf(&b, "    evaluations:   apply=%d gradient=%d hessian=%d\n",
		r.Counts.Apply, r.Counts.Gradient, r.Counts.Hessian)
	fmt.Fprintf(&b, "    termination:   %s\n", r.State.Termination)
	fmt.Fprintf(&b, "    time:          %s\n", r.Duration)
	return b.String()
}
