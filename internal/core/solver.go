package core

// Solver is one optimization algorithm. It keeps its own algorithm state;
// the executor owns the iteration bookkeeping.
type Solver[P any] interface {
	// Name identifies the algorithm in logs and results.
	Name() string

	// Init is called once before the first iteration. It may evaluate the
	// operator to bootstrap its state. A nil result means there is nothing
	// to merge into the state.
	Init(op *OpWrapper[P], state State[P]) (*IterData[P], error)

	// NextIter performs one step and returns the new current point,
	// optionally carrying a terminal reason.
	NextIter(op *OpWrapper[P], state State[P]) (IterData[P], error)
}

// CapabilityChecker is implemented by solvers that need more than Apply.
// The executor calls CheckOperator before Init so that a missing capability
// is reported before any evaluation.
type CapabilityChecker interface {
	CheckOperator(op any) error
}

// Criterion is a pluggable stopping rule evaluated by the executor after
// every iteration. Criteria may keep state and therefore belong to one run.
type Criterion interface {
	Check(p Progress) TerminationReason
}

// CriterionFunc adapts a function to Criterion.
type CriterionFunc func(p Progress) TerminationReason

// Check calls f(p).
func (f CriterionFunc) Check(p Progress) TerminationReason {
	return f(p)
}

// TargetCost stops a run once the best cost is at or below target.
func TargetCost(target float64) Criterion {
	return CriterionFunc(func(p Progress) TerminationReason {
		if p.BestCost <= target {
			return TargetCostReached
		}
		return NotTerminated
	})
}
