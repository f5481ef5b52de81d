// Package newton implements Newton's method for multivariate minimization.
//
// Each iteration evaluates the gradient g and Hessian H at the current
// parameter and moves to x - gamma * H⁻¹g. By default the solver never
// stops on its own; bound the run with an iteration cap, an executor
// criterion or WithGradTolerance.
//
// Reference: J. Nocedal and S. J. Wright, Numerical Optimization, Springer,
// 2006.
package newton

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/iteropt/internal/core"
	"github.com/cwbudde/iteropt/internal/linalg"
	"gonum.org/v1/gonum/mat"
)

// Operator is the capability set Newton's method needs.
type Operator interface {
	core.CostFunction[[]float64]
	core.Gradient[[]float64]
	core.Hessian[[]float64, *mat.Dense]
}

// Option configures a Newton solver.
type Option func(*Newton) error

// WithGamma sets the step multiplier, which must lie in (0, 1].
func WithGamma(gamma float64) Option {
	return func(n *Newton) error {
		if !(gamma > 0 && gamma <= 1) {
			return core.NewInvalidParameter("gamma", "must be in (0, 1]")
		}
		n.gamma = gamma
		return nil
	}
}

// WithGradTolerance makes the solver report TargetPrecisionReached once the
// Euclidean norm of the gradient drops to tol or below. The Hessian is not
// evaluated on that final step.
func WithGradTolerance(tol float64) Option {
	return func(n *Newton) error {
		if !(tol >= 0) {
			return core.NewInvalidParameter("grad tolerance", "must not be negative")
		}
		n.gradTol = tol
		return nil
	}
}

// WithCostEvaluation evaluates the cost at each new parameter (one extra
// counted apply per iteration) so that the run tracks current and best cost.
func WithCostEvaluation() Option {
	return func(n *Newton) error {
		n.evalCost = true
		return nil
	}
}

// Newton is Newton's method with a fixed step multiplier.
type Newton struct {
	gamma    float64
	gradTol  float64
	evalCost bool
}

// New creates a Newton solver with gamma = 1 unless configured otherwise.
func New(opts ...Option) (*Newton, error) {
	n := &Newton{gamma: 1, gradTol: math.NaN()}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Name implements core.Solver.
func (n *Newton) Name() string { return "Newton" }

// Gamma returns the step multiplier.
func (n *Newton) Gamma() float64 { return n.gamma }

// CheckOperator implements core.CapabilityChecker.
func (n *Newton) CheckOperator(op any) error {
	if _, ok := op.(core.Gradient[[]float64]); !ok {
		return &core.NotImplementedError{Capability: "gradient"}
	}
	if _, ok := op.(core.Hessian[[]float64, *mat.Dense]); !ok {
		return &core.NotImplementedError{Capability: "hessian"}
	}
	return nil
}

// Init evaluates the cost at the initial parameter when cost evaluation is
// enabled; otherwise it does nothing.
func (n *Newton) Init(op *core.OpWrapper[[]float64], state core.State[[]float64]) (*core.IterData[[]float64], error) {
	if !n.evalCost {
		return nil, nil
	}
	cost, err := op.Apply(state.Param)
	if err != nil {
		return nil, err
	}
	data := core.Step(state.Param, cost)
	return &data, nil
}

// NextIter takes one Newton step from state.Param.
func (n *Newton) NextIter(op *core.OpWrapper[[]float64], state core.State[[]float64]) (core.IterData[[]float64], error) {
	param := state.Param

	grad, err := op.Gradient(param)
	if err != nil {
		return core.IterData[[]float64]{}, err
	}
	if len(grad) != len(param) {
		return core.IterData[[]float64]{}, fmt.Errorf("gradient has length %d, parameter has length %d", len(grad), len(param))
	}
	if !math.IsNaN(n.gradTol) && linalg.Norm(grad) <= n.gradTol {
		return core.IterData[[]float64]{Param: param, Cost: state.Cost}.Terminate(core.TargetPrecisionReached), nil
	}

	hessian, err := core.EvalHessian[[]float64, *mat.Dense](op, param)
	if err != nil {
		return core.IterData[[]float64]{}, err
	}

	inv, err := linalg.Invert(hessian)
	if err != nil {
		if errors.Is(err, linalg.ErrSingular) {
			return core.IterData[[]float64]{}, fmt.Errorf("%w: invert hessian: %v", core.ErrNumerical, err)
		}
		return core.IterData[[]float64]{}, fmt.Errorf("invert hessian: %w", err)
	}
	direction, err := linalg.Dot(inv, grad)
	if err != nil {
		return core.IterData[[]float64]{}, fmt.Errorf("newton direction: %w", err)
	}

	next := linalg.ScaledSub(param, n.gamma, direction)
	if !n.evalCost {
		return core.ParamOnly(next), nil
	}
	cost, err := op.Apply(next)
	if err != nil {
		return core.IterData[[]float64]{}, err
	}
	return core.Step(next, cost), nil
}
