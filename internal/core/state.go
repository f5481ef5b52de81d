package core

import "math"

// TerminationReason tells why a run stopped. The zero value means the run
// is still going; every other value is terminal.
type TerminationReason int

const (
	NotTerminated TerminationReason = iota
	MaxItersReached
	TargetPrecisionReached
	TargetCostReached
	NoChangeInCost
)

var terminationStrings = map[TerminationReason]string{
	NotTerminated:          "Not terminated",
	MaxItersReached:        "Maximum number of iterations reached",
	TargetPrecisionReached: "Target precision reached",
	TargetCostReached:      "Target cost value reached",
	NoChangeInCost:         "No change in cost function value",
}

func (r TerminationReason) String() string {
	if s, ok := terminationStrings[r]; ok {
		return s
	}
	return "Unknown termination reason"
}

// Terminated reports whether r ends a run.
func (r TerminationReason) Terminated() bool {
	return r != NotTerminated
}

// IterData is what a solver hands back from Init or NextIter.
// A NaN Cost means the solver did not evaluate the cost for Param.
type IterData[P any] struct {
	Param       P
	Cost        float64
	Termination TerminationReason
}

// Step returns IterData for an evaluated point.
func Step[P any](param P, cost float64) IterData[P] {
	return IterData[P]{Param: param, Cost: cost}
}

// ParamOnly returns IterData for a point whose cost was not evaluated.
func ParamOnly[P any](param P) IterData[P] {
	return IterData[P]{Param: param, Cost: math.NaN()}
}

// Terminate returns d with its termination reason set to reason.
func (d IterData[P]) Terminate(reason TerminationReason) IterData[P] {
	d.Termination = reason
	return d
}

// State is the per-run bookkeeping of the executor. Solvers and observers
// receive copies; only the executor mutates the original.
type State[P any] struct {
	Iter          uint64
	Param         P
	Cost          float64
	PrevParam     P
	PrevCost      float64
	BestParam     P
	BestCost      float64
	PrevBestParam P
	PrevBestCost  float64
	LastBestIter  uint64
	Termination   TerminationReason
}

func newState[P any](init P) State[P] {
	return State[P]{
		Param:         init,
		Cost:          math.NaN(),
		PrevParam:     init,
		PrevCost:      math.NaN(),
		BestParam:     init,
		BestCost:      math.Inf(1),
		PrevBestParam: init,
		PrevBestCost:  math.Inf(1),
	}
}

// merge moves current into previous, stores d as current and updates best
// on strict improvement, recording the current Iter as LastBestIter. It
// reports whether a new best was found.
func (s *State[P]) merge(d IterData[P]) bool {
	s.PrevParam, s.PrevCost = s.Param, s.Cost
	s.Param, s.Cost = d.Param, d.Cost

	improved := false
	if !math.IsNaN(d.Cost) && d.Cost < s.BestCost {
		s.PrevBestParam, s.PrevBestCost = s.BestParam, s.BestCost
		s.BestParam, s.BestCost = d.Param, d.Cost
		s.LastBestIter = s.Iter
		improved = true
	}
	if d.Termination.Terminated() {
		s.Termination = d.Termination
	}
	return improved
}

// Progress is the solver-independent view of a state that stopping
// criteria work on.
type Progress struct {
	Iter         uint64
	Cost         float64
	PrevCost     float64
	BestCost     float64
	LastBestIter uint64
	Counts       Counts
}

func (s *State[P]) progress(c Counts) Progress {
	return Progress{
		Iter:         s.Iter,
		Cost:         s.Cost,
		PrevCost:     s.PrevCost,
		BestCost:     s.BestCost,
		LastBestIter: s.LastBestIter,
		Counts:       c,
	}
}
