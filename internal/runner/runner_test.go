package runner

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/iteropt/internal/config"
	"github.com/cwbudde/iteropt/internal/core"
	"github.com/cwbudde/iteropt/internal/store"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runConfig(problem, solver string) config.RunConfig {
	cfg := config.DefaultRun()
	cfg.Problem = problem
	cfg.Solver = solver
	return cfg
}

func TestExecute_Brent(t *testing.T) {
	dir := t.TempDir()
	st, err := store.NewFSStore(dir)
	require.NoError(t, err)

	out, err := Execute(runConfig("brent-example", config.SolverBrent), Options{
		RunID:  "brent-run",
		Store:  st,
		Logger: quiet(),
	})
	require.NoError(t, err)

	assert.Equal(t, core.TargetPrecisionReached, out.Termination)
	assert.Equal(t, uint64(13), out.Record.Iterations)
	assert.Equal(t, uint64(13), out.Record.Counts.Apply)
	assert.InDelta(t, -8.613701289624956, out.Record.BestParam[0], 1e-9)
	assert.InDelta(t, -5506.616448675639, float64(out.Record.BestCost), 1e-9)
	assert.Contains(t, out.Summary, "Result of Brent")
	assert.Empty(t, out.TracePath)

	loaded, err := st.LoadRecord("brent-run")
	require.NoError(t, err)
	assert.Equal(t, out.Record.BestCost, loaded.BestCost)
	assert.Equal(t, "brent-example", loaded.Config.Problem)
	assert.Equal(t, config.SolverBrent, loaded.Config.Solver)
	assert.Equal(t, 1, loaded.Config.Dim)
	assert.Equal(t, core.TargetPrecisionReached.String(), loaded.Termination)
}

func TestExecute_GeneratesRunID(t *testing.T) {
	out, err := Execute(runConfig("brent-example", config.SolverBrent), Options{Logger: quiet()})
	require.NoError(t, err)

	assert.NotEmpty(t, out.Record.RunID)
}

func TestExecute_NewtonQuadratic(t *testing.T) {
	out, err := Execute(runConfig("quadratic", config.SolverNewton), Options{Logger: quiet()})
	require.NoError(t, err)

	// one exact step, then the gradient vanishes
	assert.Equal(t, core.TargetPrecisionReached, out.Termination)
	assert.Equal(t, uint64(2), out.Record.Iterations)
	assert.InDeltaSlice(t, []float64{1, 1}, out.Record.BestParam, 1e-12)
	assert.Equal(t, store.Cost(0), out.Record.BestCost)
	assert.Equal(t, uint64(1), out.Record.Counts.Hessian)
	assert.Equal(t, uint64(2), out.Record.Counts.Gradient)
}

func TestExecute_MayflySphere(t *testing.T) {
	cfg := runConfig("sphere", config.SolverMayfly)
	cfg.Dim = 2
	cfg.MaxIters = 2
	cfg.Mayfly = config.MayflyConfig{Generations: 20, Population: 20}

	out, err := Execute(cfg, Options{Logger: quiet()})
	require.NoError(t, err)

	assert.Equal(t, core.MaxItersReached, out.Termination)
	assert.Equal(t, uint64(2), out.Record.Iterations)
	assert.Len(t, out.Record.BestParam, 2)
	assert.Less(t, float64(out.Record.BestCost), 1.0)
	assert.Greater(t, out.Record.Counts.Apply, uint64(0))
	assert.Zero(t, out.Record.Counts.Gradient)
}

func TestExecute_MayflyDeterministic(t *testing.T) {
	cfg := runConfig("sphere", config.SolverMayfly)
	cfg.Dim = 2
	cfg.MaxIters = 1
	cfg.Mayfly = config.MayflyConfig{Generations: 10, Population: 20}

	a, err := Execute(cfg, Options{Logger: quiet()})
	require.NoError(t, err)
	b, err := Execute(cfg, Options{Logger: quiet()})
	require.NoError(t, err)

	assert.Equal(t, a.Record.BestParam, b.Record.BestParam)
	assert.Equal(t, a.Record.Counts, b.Record.Counts)
}

func TestExecute_Trace(t *testing.T) {
	dir := t.TempDir()
	cfg := runConfig("brent-example", config.SolverBrent)
	cfg.Trace = true

	out, err := Execute(cfg, Options{RunID: "traced", DataDir: dir, Logger: quiet()})
	require.NoError(t, err)
	assert.NotEmpty(t, out.TracePath)

	entries, err := store.LoadTrace(dir, "traced")
	require.NoError(t, err)

	// init plus 13 iterations
	require.Len(t, entries, 14)
	assert.Equal(t, uint64(0), entries[0].Iteration)
	last := entries[len(entries)-1]
	assert.Equal(t, uint64(13), last.Iteration)
	assert.Equal(t, core.TargetPrecisionReached.String(), last.Termination)
	assert.Len(t, last.Param, 1)
}

func TestExecute_TraceNeedsDataDir(t *testing.T) {
	cfg := runConfig("brent-example", config.SolverBrent)
	cfg.Trace = true

	_, err := Execute(cfg, Options{Logger: quiet()})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestExecute_TargetCost(t *testing.T) {
	cfg := runConfig("brent-example", config.SolverBrent)
	target := -5000.0
	cfg.TargetCost = &target

	out, err := Execute(cfg, Options{Logger: quiet()})
	require.NoError(t, err)

	assert.Equal(t, core.TargetCostReached, out.Termination)
	assert.Less(t, out.Record.Iterations, uint64(13))
	assert.LessOrEqual(t, float64(out.Record.BestCost), target)
	require.NotNil(t, out.Record.Config.TargetCost)
	assert.Equal(t, target, *out.Record.Config.TargetCost)
}

func TestExecute_Convergence(t *testing.T) {
	cfg := runConfig("quadratic", config.SolverNewton)
	cfg.Newton.GradTol = 0
	cfg.Convergence = config.ConvergenceConfig{Patience: 3, Threshold: 1e-8}

	out, err := Execute(cfg, Options{Logger: quiet()})
	require.NoError(t, err)

	assert.Equal(t, core.NoChangeInCost, out.Termination)
	assert.Equal(t, uint64(4), out.Record.Iterations)
}

func TestExecute_ConvergenceWithoutCostEvaluation(t *testing.T) {
	cfg := runConfig("rosenbrock", config.SolverNewton)
	cfg.Newton.EvalCost = false
	cfg.MaxIters = 100
	cfg.Convergence = config.ConvergenceConfig{Patience: 3, Threshold: 1e-8}

	out, err := Execute(cfg, Options{Logger: quiet()})
	require.NoError(t, err)

	// no cost is ever evaluated, so the stalled-cost criterion stays quiet
	assert.NotEqual(t, core.NoChangeInCost, out.Termination)
	assert.Greater(t, out.Record.Iterations, uint64(3))
	assert.Equal(t, uint64(0), out.Record.Counts.Apply)
	assert.InDeltaSlice(t, []float64{1, 1}, out.Record.Param, 1e-6)
}

func TestExecute_ExplicitZeroGammaFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
runs:
  - problem: rosenbrock
    solver: newton
    newton:
      gamma: 0
      eval_cost: false
`), 0644))

	file, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, file.Runs, 1)

	_, err = Execute(file.Runs[0], Options{Logger: quiet()})
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestExecute_MaxIters(t *testing.T) {
	cfg := runConfig("rosenbrock", config.SolverNewton)
	cfg.Newton.GradTol = 0
	cfg.MaxIters = 3

	out, err := Execute(cfg, Options{Logger: quiet()})
	require.NoError(t, err)

	assert.Equal(t, core.MaxItersReached, out.Termination)
	assert.Equal(t, uint64(3), out.Record.Iterations)
	assert.Equal(t, uint64(3), out.Record.Counts.Hessian)
}

func TestExecute_WarmStart(t *testing.T) {
	first, err := Execute(runConfig("quadratic", config.SolverNewton), Options{Logger: quiet()})
	require.NoError(t, err)

	out, err := Execute(runConfig("quadratic", config.SolverNewton), Options{Warm: first.Record, Logger: quiet()})
	require.NoError(t, err)

	// starts at the optimum, so the first gradient check stops the run
	assert.Equal(t, core.TargetPrecisionReached, out.Termination)
	assert.Equal(t, uint64(1), out.Record.Iterations)
	assert.Equal(t, uint64(0), out.Record.Counts.Hessian)
	assert.Equal(t, store.Cost(0), out.Record.BestCost)
}

func TestExecute_WarmStartIncompatible(t *testing.T) {
	first, err := Execute(runConfig("quadratic", config.SolverNewton), Options{Logger: quiet()})
	require.NoError(t, err)

	_, err = Execute(runConfig("rosenbrock", config.SolverNewton), Options{Warm: first.Record, Logger: quiet()})
	require.Error(t, err)

	var cErr *store.CompatibilityError
	require.True(t, errors.As(err, &cErr), "got %T: %v", err, err)
	assert.Equal(t, "Problem", cErr.Field)
}

func TestExecute_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.RunConfig)
	}{
		{"unknown problem", func(c *config.RunConfig) { c.Problem = "himmelblau" }},
		{"brent on multivariate problem", func(c *config.RunConfig) { c.Problem = "sphere" }},
		{"fixed dimension violated", func(c *config.RunConfig) { c.Problem = "rosenbrock"; c.Solver = config.SolverNewton; c.Dim = 3 }},
		{"zero brent tolerance", func(c *config.RunConfig) { c.Brent.Tol = 0 }},
		{"inverted bracket", func(c *config.RunConfig) { c.Brent.Lower, c.Brent.Upper = 1, -1 }},
		{"newton gamma", func(c *config.RunConfig) { c.Solver = config.SolverNewton; c.Problem = "quadratic"; c.Newton.Gamma = 2 }},
		{"mayfly population", func(c *config.RunConfig) {
			c.Solver = config.SolverMayfly
			c.Problem = "sphere"
			c.Mayfly.Population = 5
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := runConfig("brent-example", config.SolverBrent)
			tt.modify(&cfg)

			_, err := Execute(cfg, Options{Logger: quiet()})
			assert.ErrorIs(t, err, core.ErrInvalidParameter)
		})
	}
}

func TestExecute_UnknownSolver(t *testing.T) {
	_, err := Execute(runConfig("sphere", "bfgs"), Options{Logger: quiet()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown solver")
}

func TestExecute_NonFiniteStartStillRecords(t *testing.T) {
	cfg := runConfig("quadratic", config.SolverNewton)
	cfg.Newton.EvalCost = false
	cfg.Newton.GradTol = 0
	cfg.MaxIters = 1

	out, err := Execute(cfg, Options{Logger: quiet()})
	require.NoError(t, err)

	assert.True(t, math.IsInf(float64(out.Record.BestCost), 1))
	assert.True(t, math.IsNaN(float64(out.Record.Cost)))
	assert.InDeltaSlice(t, []float64{1, 1}, out.Record.Param, 1e-12)
}

func TestExecute_RandomStart(t *testing.T) {
	cfg := runConfig("quadratic", config.SolverNewton)
	cfg.Start = config.StartRandom
	cfg.Newton.GradTol = 0
	cfg.MaxIters = 1

	a, err := Execute(cfg, Options{Logger: quiet()})
	require.NoError(t, err)
	b, err := Execute(cfg, Options{Logger: quiet()})
	require.NoError(t, err)

	// after one iteration the previous parameter is the start point
	start := a.Record.PrevParam
	require.Len(t, start, 2)
	for _, v := range start {
		assert.GreaterOrEqual(t, v, -10.0)
		assert.LessOrEqual(t, v, 10.0)
	}
	assert.NotEqual(t, []float64{0, 0}, start)
	assert.Equal(t, start, b.Record.PrevParam, "same seed must give the same start")

	cfg.Seed = 7
	c, err := Execute(cfg, Options{Logger: quiet()})
	require.NoError(t, err)
	assert.NotEqual(t, start, c.Record.PrevParam)
}

func TestExecute_WarmStartPerturbed(t *testing.T) {
	first, err := Execute(runConfig("quadratic", config.SolverNewton), Options{Logger: quiet()})
	require.NoError(t, err)

	cfg := runConfig("quadratic", config.SolverNewton)
	cfg.Perturb = true
	cfg.Newton.GradTol = 0
	cfg.MaxIters = 1

	out, err := Execute(cfg, Options{Warm: first.Record, Logger: quiet()})
	require.NoError(t, err)

	start := out.Record.PrevParam
	require.Len(t, start, 2)
	changed := 0
	for i, v := range start {
		d := math.Abs(v - first.Record.BestParam[i])
		assert.LessOrEqual(t, d, 1.0)
		if d > 0 {
			changed++
		}
	}
	assert.Equal(t, 1, changed, "exactly one coordinate is perturbed")

	// one exact Newton step back to the optimum
	assert.InDeltaSlice(t, []float64{1, 1}, out.Record.BestParam, 1e-12)
}

func TestExecute_WarmStartClamped(t *testing.T) {
	warm := &store.Record{
		RunID:     "outside",
		BestParam: []float64{20, 0},
		Config:    store.RunConfig{Problem: "quadratic", Solver: config.SolverNewton, Dim: 2},
	}
	cfg := runConfig("quadratic", config.SolverNewton)
	cfg.Newton.GradTol = 0
	cfg.MaxIters = 1

	out, err := Execute(cfg, Options{Warm: warm, Logger: quiet()})
	require.NoError(t, err)

	assert.Equal(t, []float64{10, 0}, out.Record.PrevParam)
	assert.Equal(t, []float64{20, 0}, warm.BestParam, "warm record must not be modified")
}
