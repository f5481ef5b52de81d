// Package runner turns a run configuration into a problem, a solver and an
// executor, runs it and produces the persisted record.
package runner

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"

	"github.com/cwbudde/iteropt/internal/config"
	"github.com/cwbudde/iteropt/internal/convergence"
	"github.com/cwbudde/iteropt/internal/core"
	"github.com/cwbudde/iteropt/internal/observer"
	"github.com/cwbudde/iteropt/internal/param"
	"github.com/cwbudde/iteropt/internal/solver/brent"
	"github.com/cwbudde/iteropt/internal/solver/mayfly"
	"github.com/cwbudde/iteropt/internal/solver/newton"
	"github.com/cwbudde/iteropt/internal/store"
	"github.com/cwbudde/iteropt/internal/testfunc"
)

// Options control where a run writes its artifacts.
type Options struct {
	// RunID identifies the run; a random UUID is used when empty.
	RunID string
	// DataDir receives the trace when the run config enables it.
	DataDir string
	// Store, if set, receives the final record.
	Store store.Store
	// Warm starts from the best parameter of a previous, compatible run.
	Warm   *store.Record
	Logger *slog.Logger
}

// Outcome is what a finished run leaves behind.
type Outcome struct {
	Record      *store.Record
	Termination core.TerminationReason
	Summary     string // Result.String()
	TracePath   string
}

// Execute performs the run described by cfg.
func Execute(cfg config.RunConfig, opts Options) (*Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if cfg.Trace && opts.DataDir == "" {
		return nil, core.NewInvalidParameter("data dir", "required when tracing")
	}

	problem, err := testfunc.Lookup(cfg.Problem)
	if err != nil {
		return nil, err
	}
	dim, err := problem.Dim(cfg.Dim)
	if err != nil {
		return nil, err
	}

	r := &run{
		cfg:     cfg,
		opts:    opts,
		problem: problem,
		dim:     dim,
		log:     opts.Logger.With("run_id", opts.RunID, "problem", problem.Name, "solver", cfg.Solver),
	}
	init, err := r.initial()
	if err != nil {
		return nil, err
	}
	r.log.Info("Starting run", "dim", dim, "max_iters", cfg.MaxIters, "warm", opts.Warm != nil, "start", init)

	switch cfg.Solver {
	case config.SolverBrent:
		return r.brent(init)
	case config.SolverNewton:
		return r.newton(init)
	default:
		return r.mayfly(init)
	}
}

type run struct {
	cfg     config.RunConfig
	opts    Options
	problem testfunc.Problem
	dim     int
	log     *slog.Logger
}

// initial picks the start point: a warm start (clamped into the problem's
// box, optionally perturbed), a random point or the problem's default.
// Randomness is drawn from cfg.Seed.
func (r *run) initial() ([]float64, error) {
	bounds, err := param.Uniform(r.dim, r.problem.Lower, r.problem.Upper)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(r.cfg.Seed))

	if warm := r.opts.Warm; warm != nil {
		if err := warm.IsCompatible(store.RunConfig{Problem: r.problem.Name, Dim: r.dim}); err != nil {
			return nil, fmt.Errorf("cannot warm start from %s: %w", warm.RunID, err)
		}
		init := append([]float64(nil), warm.BestParam...)
		if !bounds.Contains(init) {
			r.log.Warn("Warm start outside search box, clamping", "from", warm.RunID, "param", init)
			bounds.Clamp(init)
		}
		if r.cfg.Perturb {
			return bounds.Modify(init, nil, rng)
		}
		return init, nil
	}

	if r.cfg.Start == config.StartRandom {
		return bounds.Random(rng)
	}
	return r.problem.Start(r.dim), nil
}

func (r *run) brent(init []float64) (*Outcome, error) {
	if r.dim != 1 {
		return nil, core.NewInvalidParameter("dim", "brent needs a one-dimensional problem")
	}
	lower, upper := r.cfg.Brent.Lower, r.cfg.Brent.Upper
	if lower == 0 && upper == 0 {
		lower, upper = r.problem.Lower, r.problem.Upper
	}
	s, err := brent.New(lower, upper, brent.WithTolerance(r.cfg.Brent.Eps, r.cfg.Brent.Tol))
	if err != nil {
		return nil, err
	}
	op := testfunc.Scalar(r.problem.Operator(r.dim))
	ex := core.NewExecutor[float64](op, s, init[0], r.executorOptions()...)
	return execute(r, ex, func(x float64) []float64 { return []float64{x} })
}

func (r *run) newton(init []float64) (*Outcome, error) {
	opts := []newton.Option{newton.WithGamma(r.cfg.Newton.Gamma)}
	if r.cfg.Newton.GradTol > 0 {
		opts = append(opts, newton.WithGradTolerance(r.cfg.Newton.GradTol))
	}
	if r.cfg.Newton.EvalCost {
		opts = append(opts, newton.WithCostEvaluation())
	}
	s, err := newton.New(opts...)
	if err != nil {
		return nil, err
	}
	ex := core.NewExecutor[[]float64](r.problem.Operator(r.dim), s, init, r.executorOptions()...)
	return execute(r, ex, cloneVec)
}

func (r *run) mayfly(init []float64) (*Outcome, error) {
	s, err := mayfly.New(mayfly.Config{
		Dim:         r.dim,
		Lower:       r.problem.Lower,
		Upper:       r.problem.Upper,
		Generations: r.cfg.Mayfly.Generations,
		PopSize:     r.cfg.Mayfly.Population,
		Seed:        r.cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	ex := core.NewExecutor[[]float64](r.problem.Operator(r.dim), s, init, r.executorOptions()...)
	return execute(r, ex, cloneVec)
}

func (r *run) executorOptions() []core.Option {
	opts := []core.Option{core.WithLogger(r.log)}
	if r.cfg.MaxIters > 0 {
		opts = append(opts, core.WithMaxIters(r.cfg.MaxIters))
	}
	if r.cfg.TargetCost != nil {
		opts = append(opts, core.WithTargetCost(*r.cfg.TargetCost))
	}
	if r.cfg.Convergence.Patience > 0 {
		tracker := convergence.NewTracker(convergence.Config{
			Enabled:   true,
			Patience:  r.cfg.Convergence.Patience,
			Threshold: r.cfg.Convergence.Threshold,
		})
		opts = append(opts, core.WithCriteria(tracker))
	}
	return opts
}

func (r *run) storeConfig() store.RunConfig {
	return store.RunConfig{
		Problem:    r.problem.Name,
		Solver:     r.cfg.Solver,
		Dim:        r.dim,
		MaxIters:   r.cfg.MaxIters,
		TargetCost: r.cfg.TargetCost,
		Seed:       r.cfg.Seed,
	}
}

func execute[P any](r *run, ex *core.Executor[P], toVec func(P) []float64) (*Outcome, error) {
	out := &Outcome{}

	if r.cfg.ObserveEvery > 0 {
		ex.AddObserver(observer.NewSlog[P](r.log, slog.LevelInfo), core.ObserveEvery(r.cfg.ObserveEvery))
	}
	var trace *observer.Trace[P]
	if r.cfg.Trace {
		var err error
		trace, err = observer.NewTrace(r.opts.DataDir, r.opts.RunID, toVec)
		if err != nil {
			return nil, err
		}
		ex.AddObserver(trace, core.ObserveAlways)
		out.TracePath = trace.Path()
	}

	res, err := ex.Run()
	if trace != nil {
		if cerr := trace.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		r.log.Error("Run failed", "error", err)
		return nil, err
	}

	record := store.NewRecord(r.opts.RunID, res, toVec, r.storeConfig())
	if r.opts.Store != nil {
		if err := record.Validate(); err != nil {
			return nil, fmt.Errorf("invalid record: %w", err)
		}
		if err := r.opts.Store.SaveRecord(r.opts.RunID, record); err != nil {
			return nil, fmt.Errorf("failed to save record: %w", err)
		}
	}

	r.log.Info("Run completed",
		"iterations", res.Iterations(),
		"best_cost", res.BestCost(),
		"termination", res.Termination().String(),
		"elapsed", res.Duration,
	)

	out.Record = record
	out.Termination = res.Termination()
	out.Summary = res.String()
	return out, nil
}

func cloneVec(x []float64) []float64 {
	return append([]float64(nil), x...)
}
