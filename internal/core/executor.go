package core

import (
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Option configures an Executor. Use the With* functions to create Options.
type Option func(*executorOptions)

type executorOptions struct {
	maxIters uint64
	criteria []Criterion
	logger   *slog.Logger
}

// WithMaxIters caps the number of iterations. The default is unbounded.
func WithMaxIters(n uint64) Option {
	return func(o *executorOptions) { o.maxIters = n }
}

// WithTargetCost stops the run once the best cost reaches target.
func WithTargetCost(target float64) Option {
	return func(o *executorOptions) { o.criteria = append(o.criteria, TargetCost(target)) }
}

// WithCriteria adds stopping criteria, checked in order after each iteration.
func WithCriteria(c ...Criterion) Option {
	return func(o *executorOptions) { o.criteria = append(o.criteria, c...) }
}

// WithLogger sets the logger used for run-level messages.
func WithLogger(l *slog.Logger) Option {
	return func(o *executorOptions) { o.logger = l }
}

// Executor drives one solver over one operator from an initial parameter
// until a termination reason fires. An Executor performs a single run and
// is not safe for concurrent use.
type Executor[P any] struct {
	op        *OpWrapper[P]
	solver    Solver[P]
	state     State[P]
	observers observers[P]
	opts      executorOptions
}

// NewExecutor creates an executor for one run.
func NewExecutor[P any](op CostFunction[P], solver Solver[P], init P, opts ...Option) *Executor[P] {
	o := executorOptions{
		maxIters: math.MaxUint64,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Executor[P]{
		op:     NewOpWrapper(op),
		solver: solver,
		state:  newState(init),
		opts:   o,
	}
}

// AddObserver registers obs. Observers fire in registration order.
func (e *Executor[P]) AddObserver(obs Observer[P], mode ObserverMode) *Executor[P] {
	e.observers = append(e.observers, registeredObserver[P]{obs: obs, mode: mode})
	return e
}

// Run executes the optimization. Any operator, solver or observer error
// aborts the run and is returned; a terminal reason is a normal end.
func (e *Executor[P]) Run() (Result[P], error) {
	name := e.solver.Name()
	log := e.opts.logger.With("solver", name)
	start := time.Now()

	if checker, ok := e.solver.(CapabilityChecker); ok {
		if err := checker.CheckOperator(e.op.Operator()); err != nil {
			return Result[P]{}, fmt.Errorf("%s: %w", name, err)
		}
	}

	log.Debug("Starting optimization", "max_iters", e.opts.maxIters)

	data, err := e.solver.Init(e.op, e.state)
	if err != nil {
		return Result[P]{}, fmt.Errorf("%s: init: %w", name, err)
	}
	if data != nil {
		e.state.merge(*data)
	}
	if err := e.observers.notify(e.state); err != nil {
		return Result[P]{}, err
	}

	for !e.state.Termination.Terminated() {
		if e.state.Iter >= e.opts.maxIters {
			e.state.Termination = MaxItersReached
			break
		}

		data, err := e.solver.NextIter(e.op, e.state)
		if err != nil {
			return Result[P]{}, fmt.Errorf("%s: iteration %d: %w", name, e.state.Iter+1, err)
		}

		e.state.Iter++
		if e.state.merge(data) {
			log.Debug("New best", "iter", e.state.Iter, "best_cost", e.state.BestCost)
		}

		if !e.state.Termination.Terminated() {
			progress := e.state.progress(e.op.Counts())
			for _, c := range e.opts.criteria {
				if reason := c.Check(progress); reason.Terminated() {
					e.state.Termination = reason
					break
				}
			}
		}

		if err := e.observers.notify(e.state); err != nil {
			return Result[P]{}, err
		}
	}

	result := Result[P]{
		Solver:   name,
		State:    e.state,
		Counts:   e.op.Counts(),
		Duration: time.Since(start),
	}

	log.Debug("Optimization complete",
		"iters", result.State.Iter,
		"best_cost", result.State.BestCost,
		"termination", result.State.Termination.String(),
		"apply_count", result.Counts.Apply,
	)

	return result, nil
}
