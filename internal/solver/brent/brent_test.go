package brent

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/iteropt/internal/core"
)

func example() core.CostFunc[float64] {
	return func(x float64) (float64, error) {
		return math.Exp(-x) - math.Exp(5-x/2), nil
	}
}

// ulps returns how many representable float64 values lie between a and b.
func ulps(a, b float64) uint64 {
	d := int64(math.Float64bits(a)) - int64(math.Float64bits(b))
	if d < 0 {
		d = -d
	}
	return uint64(d)
}

func TestBrent_Example(t *testing.T) {
	solver, err := New(-10, 10)
	require.NoError(t, err)

	res, err := core.NewExecutor[float64](example(), solver, math.NaN(), core.WithMaxIters(13)).Run()
	require.NoError(t, err)

	const (
		xmin = -8.613701289624956
		fmin = -5506.616448675639
	)
	s := res.State
	assert.Equal(t, core.TargetPrecisionReached, res.Termination())
	assert.Equal(t, uint64(13), res.Iterations())
	assert.Equal(t, uint64(13), res.Counts.Apply)

	// math.Exp may round differently from other libms in the last bit
	assert.LessOrEqual(t, ulps(xmin, s.Param), uint64(4), "param %v", s.Param)
	assert.LessOrEqual(t, ulps(fmin, s.Cost), uint64(4), "cost %v", s.Cost)

	// the last steps report the same point, and ties keep the earlier best
	assert.Equal(t, s.Param, s.PrevParam)
	assert.Equal(t, s.Param, s.BestParam)
	assert.Equal(t, s.Cost, s.PrevCost)
	assert.Equal(t, s.Cost, s.BestCost)
	assert.Less(t, s.LastBestIter, uint64(13))
	assert.Less(t, s.BestCost, s.PrevBestCost)
	assert.NotEqual(t, s.BestParam, s.PrevBestParam)
}

func TestBrent_BestCostNeverRises(t *testing.T) {
	solver, err := New(-10, 10)
	require.NoError(t, err)

	best := math.Inf(1)
	notified := 0
	obs := core.ObserverFunc[float64](func(s core.State[float64]) error {
		notified++
		if !math.IsNaN(s.Cost) {
			assert.LessOrEqual(t, s.BestCost, s.Cost, "iteration %d", s.Iter)
		}
		assert.LessOrEqual(t, s.BestCost, best, "iteration %d", s.Iter)
		best = s.BestCost
		return nil
	})

	_, err = core.NewExecutor[float64](example(), solver, math.NaN()).
		AddObserver(obs, core.ObserveAlways).
		Run()
	require.NoError(t, err)
	assert.Equal(t, 14, notified)
}

func TestBrent_StopsWithoutIterationCap(t *testing.T) {
	solver, err := New(-10, 10)
	require.NoError(t, err)

	res, err := core.NewExecutor[float64](example(), solver, math.NaN()).Run()
	require.NoError(t, err)

	assert.Equal(t, core.TargetPrecisionReached, res.Termination())
	assert.Equal(t, uint64(13), res.Iterations())
	assert.Equal(t, uint64(13), res.Counts.Apply, "the converged step does not evaluate")
}

func TestBrent_Quadratic(t *testing.T) {
	tests := []struct {
		name         string
		lower, upper float64
		center       float64
	}{
		{"centered", -5, 5, 2},
		{"near lower end", 0, 10, 0.3},
		{"near upper end", -1, 1, 0.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := core.CostFunc[float64](func(x float64) (float64, error) {
				return (x - tt.center) * (x - tt.center), nil
			})
			solver, err := New(tt.lower, tt.upper)
			require.NoError(t, err)

			res, err := core.NewExecutor[float64](op, solver, 0, core.WithMaxIters(200)).Run()
			require.NoError(t, err)

			assert.Equal(t, core.TargetPrecisionReached, res.Termination())
			assert.InDelta(t, tt.center, res.BestParam(), 1e-4)

			lo, hi := solver.Bracket()
			assert.LessOrEqual(t, lo, res.BestParam())
			assert.GreaterOrEqual(t, hi, res.BestParam())
			assert.Less(t, hi-lo, 1e-3)
		})
	}
}

func TestBrent_TighterTolerance(t *testing.T) {
	op := core.CostFunc[float64](func(x float64) (float64, error) {
		return math.Cos(x), nil
	})

	solver, err := New(2, 4, WithTolerance(1e-8, 1e-10))
	require.NoError(t, err)

	res, err := core.NewExecutor[float64](op, solver, 0, core.WithMaxIters(500)).Run()
	require.NoError(t, err)
	assert.Equal(t, core.TargetPrecisionReached, res.Termination())
	assert.InDelta(t, math.Pi, res.BestParam(), 1e-6)
}

func TestBrent_DegenerateBracket(t *testing.T) {
	solver, err := New(1.5, 1.5)
	require.NoError(t, err)

	res, err := core.NewExecutor[float64](example(), solver, 0).Run()
	require.NoError(t, err)

	assert.Equal(t, core.TargetPrecisionReached, res.Termination())
	assert.Equal(t, uint64(1), res.Iterations())
	assert.Equal(t, uint64(1), res.Counts.Apply)
	assert.Equal(t, 1.5, res.BestParam())
}

func TestBrent_InvalidBracket(t *testing.T) {
	tests := []struct {
		name         string
		lower, upper float64
	}{
		{"inverted", 10, -10},
		{"nan lower", math.NaN(), 1},
		{"nan upper", 0, math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.lower, tt.upper)
			assert.True(t, errors.Is(err, core.ErrInvalidParameter), "got %v", err)
		})
	}
}

func TestBrent_InvalidTolerance(t *testing.T) {
	_, err := New(0, 1, WithTolerance(0, 1e-5))
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))

	_, err = New(0, 1, WithTolerance(1e-8, -1))
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))

	_, err = New(0, 1, WithTolerance(math.NaN(), 1e-5))
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))
}

func TestBrent_OperatorError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	op := core.CostFunc[float64](func(x float64) (float64, error) {
		calls++
		if calls == 3 {
			return 0, boom
		}
		return x * x, nil
	})

	solver, err := New(-1, 2)
	require.NoError(t, err)

	_, err = core.NewExecutor[float64](op, solver, 0).Run()
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "Brent: iteration 2")
}

func TestBrent_Name(t *testing.T) {
	solver, err := New(0, 1)
	require.NoError(t, err)
	assert.Equal(t, "Brent", solver.Name())
}
