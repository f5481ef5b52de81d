// Package mayfly wraps the external Mayfly metaheuristic as a solver.
//
// Every executor iteration runs one complete Mayfly optimization (a random
// restart) with the solver's own random source and reports the best point
// found so far. All objective evaluations go through the operator wrapper,
// so evaluation counts stay exact.
package mayfly

import (
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/iteropt/internal/core"
)

// MinPopulation is the smallest population mayfly v0.1.0 accepts.
const MinPopulation = 20

// Config holds the Mayfly settings of one solver.
type Config struct {
	Dim         int     // problem dimension
	Lower       float64 // lower bound, shared by all dimensions
	Upper       float64 // upper bound, shared by all dimensions
	Generations int     // Mayfly iterations per restart
	PopSize     int
	Seed        int64
}

// Solver runs seeded Mayfly restarts.
type Solver struct {
	cfg  Config
	rand *rand.Rand

	best     []float64
	bestCost float64
}

// New validates cfg and creates a solver owning a random source seeded
// with cfg.Seed.
func New(cfg Config) (*Solver, error) {
	switch {
	case cfg.Dim <= 0:
		return nil, core.NewInvalidParameter("dim", "must be positive")
	case math.IsNaN(cfg.Lower) || math.IsNaN(cfg.Upper) || cfg.Lower >= cfg.Upper:
		return nil, core.NewInvalidParameter("bounds", "lower must be lower than upper")
	case cfg.Generations <= 0:
		return nil, core.NewInvalidParameter("generations", "must be positive")
	case cfg.PopSize < MinPopulation:
		return nil, core.NewInvalidParameter("population", "must be at least 20")
	}
	return &Solver{
		cfg:      cfg,
		rand:     rand.New(rand.NewSource(cfg.Seed)),
		bestCost: math.Inf(1),
	}, nil
}

// Name implements core.Solver.
func (s *Solver) Name() string { return "Mayfly" }

// Init does not evaluate anything; the first restart happens in NextIter.
func (s *Solver) Init(_ *core.OpWrapper[[]float64], _ core.State[[]float64]) (*core.IterData[[]float64], error) {
	return nil, nil
}

// NextIter runs one Mayfly optimization and returns the best point over
// all restarts so far.
func (s *Solver) NextIter(op *core.OpWrapper[[]float64], _ core.State[[]float64]) (core.IterData[[]float64], error) {
	var evalErr error
	eval := func(x []float64) float64 {
		if evalErr != nil {
			return math.Inf(1)
		}
		cost, err := op.Apply(append([]float64(nil), x...))
		if err != nil {
			evalErr = err
			return math.Inf(1)
		}
		return cost
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = eval
	config.ProblemSize = s.cfg.Dim
	config.MaxIterations = s.cfg.Generations
	config.NPop = s.cfg.PopSize
	config.LowerBound = s.cfg.Lower
	config.UpperBound = s.cfg.Upper
	config.Rand = s.rand

	result, err := mayfly.Optimize(config)
	if evalErr != nil {
		return core.IterData[[]float64]{}, evalErr
	}
	if err != nil {
		return core.IterData[[]float64]{}, err
	}

	if result.GlobalBest.Cost < s.bestCost || s.best == nil {
		s.best = append([]float64(nil), result.GlobalBest.Position...)
		s.bestCost = result.GlobalBest.Cost
	}
	return core.Step(s.best, s.bestCost), nil
}
