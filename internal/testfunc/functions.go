// Package testfunc holds analytic test problems with exact gradients and
// Hessians, used by the CLI and by solver tests.
package testfunc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/iteropt/internal/core"
)

// Operator is a cost function over []float64 with first and second
// derivatives. It satisfies newton.Operator.
type Operator interface {
	core.CostFunction[[]float64]
	core.Gradient[[]float64]
	core.Hessian[[]float64, *mat.Dense]
}

func checkDim(x []float64, dim int) error {
	if len(x) != dim {
		return core.NewInvalidParameter("param", fmt.Sprintf("expected %d values, got %d", dim, len(x)))
	}
	return nil
}

// BrentExample is f(x) = exp(-x) - exp(5 - x/2), which has its minimum on
// [-10, 10] near x = -8.6137.
type BrentExample struct{}

func (BrentExample) Apply(x []float64) (float64, error) {
	if err := checkDim(x, 1); err != nil {
		return 0, err
	}
	return math.Exp(-x[0]) - math.Exp(5-x[0]/2), nil
}

func (BrentExample) Gradient(x []float64) ([]float64, error) {
	if err := checkDim(x, 1); err != nil {
		return nil, err
	}
	return []float64{-math.Exp(-x[0]) + 0.5*math.Exp(5-x[0]/2)}, nil
}

func (BrentExample) Hessian(x []float64) (*mat.Dense, error) {
	if err := checkDim(x, 1); err != nil {
		return nil, err
	}
	return mat.NewDense(1, 1, []float64{math.Exp(-x[0]) - 0.25*math.Exp(5-x[0]/2)}), nil
}

// Quadratic is f(x) = sum_i Weights[i] * (x[i] - Center[i])^2.
// A zero weight makes the Hessian singular.
type Quadratic struct {
	Center  []float64
	Weights []float64
}

// NewSphere returns the sphere function sum_i x[i]^2 in dim dimensions.
func NewSphere(dim int) *Quadratic {
	q := &Quadratic{Center: make([]float64, dim), Weights: make([]float64, dim)}
	for i := range q.Weights {
		q.Weights[i] = 1
	}
	return q
}

func (q *Quadratic) Apply(x []float64) (float64, error) {
	if err := checkDim(x, len(q.Center)); err != nil {
		return 0, err
	}
	var sum float64
	for i, v := range x {
		d := v - q.Center[i]
		sum += q.Weights[i] * d * d
	}
	return sum, nil
}

func (q *Quadratic) Gradient(x []float64) ([]float64, error) {
	if err := checkDim(x, len(q.Center)); err != nil {
		return nil, err
	}
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = 2 * q.Weights[i] * (v - q.Center[i])
	}
	return g, nil
}

func (q *Quadratic) Hessian(x []float64) (*mat.Dense, error) {
	n := len(q.Center)
	if err := checkDim(x, n); err != nil {
		return nil, err
	}
	h := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		h.Set(i, i, 2*q.Weights[i])
	}
	return h, nil
}

// Rosenbrock is the two-dimensional function (a - x)^2 + b(y - x^2)^2 with
// its minimum at (a, a^2).
type Rosenbrock struct {
	A, B float64
}

// NewRosenbrock returns the classic parameterization a = 1, b = 100.
func NewRosenbrock() *Rosenbrock {
	return &Rosenbrock{A: 1, B: 100}
}

func (r *Rosenbrock) Apply(p []float64) (float64, error) {
	if err := checkDim(p, 2); err != nil {
		return 0, err
	}
	x, y := p[0], p[1]
	return (r.A-x)*(r.A-x) + r.B*(y-x*x)*(y-x*x), nil
}

func (r *Rosenbrock) Gradient(p []float64) ([]float64, error) {
	if err := checkDim(p, 2); err != nil {
		return nil, err
	}
	x, y := p[0], p[1]
	return []float64{
		-2*(r.A-x) - 4*r.B*x*(y-x*x),
		2 * r.B * (y - x*x),
	}, nil
}

func (r *Rosenbrock) Hessian(p []float64) (*mat.Dense, error) {
	if err := checkDim(p, 2); err != nil {
		return nil, err
	}
	x, y := p[0], p[1]
	return mat.NewDense(2, 2, []float64{
		2 - 4*r.B*y + 12*r.B*x*x, -4 * r.B * x,
		-4 * r.B * x, 2 * r.B,
	}), nil
}

// Scalar adapts a one-dimensional operator to a float64 cost function for
// univariate solvers.
func Scalar(op core.CostFunction[[]float64]) core.CostFunc[float64] {
	return func(x float64) (float64, error) {
		return op.Apply([]float64{x})
	}
}
