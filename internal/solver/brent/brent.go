// Package brent implements Brent's derivative-free univariate minimizer,
// a hybrid of golden-section search and parabolic interpolation.
//
// Reference: R. P. Brent, "An algorithm with guaranteed convergence for
// finding a minimum of a function of one variable", Algorithms for
// Minimization without Derivatives, Prentice-Hall, 1973.
package brent

import (
	"math"

	"github.com/cwbudde/iteropt/internal/core"
)

var (
	// golden is (3-sqrt(5))/2, the golden-section ratio.
	golden = (3 - math.Sqrt(5)) / 2

	defaultEps = math.Sqrt(math.Nextafter(1, 2) - 1)
)

const defaultTol = 1e-5

// Option configures a Brent solver.
type Option func(*Brent) error

// WithTolerance sets the relative tolerance eps and the absolute tolerance t.
// The result is a local minimum within 3*tol, where tol = eps*|x| + t.
// eps below the square root of machine epsilon (the default) is useless.
func WithTolerance(eps, t float64) Option {
	return func(b *Brent) error {
		if !(eps > 0) {
			return core.NewInvalidParameter("eps", "must be positive")
		}
		if !(t > 0) {
			return core.NewInvalidParameter("t", "must be positive")
		}
		b.eps, b.t = eps, t
		return nil
	}
}

// Brent minimizes a function of one variable inside a bracket.
type Brent struct {
	eps, t float64 // relative and absolute tolerance
	a, b   float64 // current bracket

	x, w, v, u float64 // lowest, second lowest, previous w, last trial
	fx, fw, fv float64

	e float64 // step taken two iterations ago
	d float64 // most recent step
}

// New creates a Brent solver for the bracket [lower, upper], which must
// contain a local minimum of the cost.
func New(lower, upper float64, opts ...Option) (*Brent, error) {
	if math.IsNaN(lower) || math.IsNaN(upper) {
		return nil, core.NewInvalidParameter("bracket", "must not be NaN")
	}
	if lower > upper {
		return nil, core.NewInvalidParameter("bracket", "lower must not exceed upper")
	}
	s := &Brent{
		eps: defaultEps,
		t:   defaultTol,
		a:   lower,
		b:   upper,
		x:   math.NaN(),
		w:   math.NaN(),
		v:   math.NaN(),
		u:   math.NaN(),
		fx:  math.NaN(),
		fw:  math.NaN(),
		fv:  math.NaN(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name implements core.Solver.
func (s *Brent) Name() string { return "Brent" }

// Bracket returns the current interval.
func (s *Brent) Bracket() (lower, upper float64) { return s.a, s.b }

// Init evaluates the cost once at the golden-section point of the bracket.
// The initial parameter of the executor is ignored.
func (s *Brent) Init(op *core.OpWrapper[float64], _ core.State[float64]) (*core.IterData[float64], error) {
	s.u = s.a + golden*(s.b-s.a)
	f, err := op.Apply(s.u)
	if err != nil {
		return nil, err
	}
	s.x, s.w, s.v = s.u, s.u, s.u
	s.fx, s.fw, s.fv = f, f, f
	data := core.Step(s.x, s.fx)
	return &data, nil
}

// NextIter performs one step: either it detects convergence without
// evaluating the cost, or it evaluates exactly one trial point.
func (s *Brent) NextIter(op *core.OpWrapper[float64], _ core.State[float64]) (core.IterData[float64], error) {
	tol := s.eps*math.Abs(s.x) + s.t
	m := (s.a + s.b) / 2
	if math.Abs(s.x-m) <= 2*tol-(s.b-s.a)/2 {
		return core.Step(s.x, s.fx).Terminate(core.TargetPrecisionReached), nil
	}

	p := (s.x-s.v)*(s.x-s.v)*(s.fx-s.fw) - (s.x-s.w)*(s.x-s.w)*(s.fx-s.fv)
	q := 2 * ((s.x-s.w)*(s.fx-s.fv) - (s.x-s.v)*(s.fx-s.fw))
	if q < 0 {
		p, q = -p, -q
	}

	if math.Abs(s.e) <= tol || p < q*(s.a-s.x) || p > q*(s.b-s.x) || 2*math.Abs(p) >= q*math.Abs(s.e) {
		// golden section
		if s.x < m {
			s.e = s.b - s.x
		} else {
			s.e = s.a - s.x
		}
		s.d = golden * s.e
	} else {
		// parabolic interpolation
		s.e = s.d
		s.d = p / q
		// keep the trial point away from the bracket ends
		if s.x+s.d-s.a < 2*tol || s.b-s.x-s.d < 2*tol {
			s.d = signum(m-s.x) * tol
		}
	}

	// keep the trial point away from x
	if math.Abs(s.d) >= tol {
		s.u = s.x + s.d
	} else {
		s.u = s.x + signum(s.d)*tol
	}

	fu, err := op.Apply(s.u)
	if err != nil {
		return core.IterData[float64]{}, err
	}

	if fu <= s.fx {
		if s.u < s.x {
			s.b = s.x
		} else {
			s.a = s.x
		}
		s.v, s.fv = s.w, s.fw
		s.w, s.fw = s.x, s.fx
		s.x, s.fx = s.u, fu
	} else {
		if s.u < s.x {
			s.a = s.u
		} else {
			s.b = s.u
		}
		if fu <= s.fw || s.w == s.x {
			s.v, s.fv = s.w, s.fw
			s.w, s.fw = s.u, fu
		} else if fu <= s.fv || s.v == s.x || s.v == s.w {
			s.v, s.fv = s.u, fu
		}
	}

	return core.Step(s.x, s.fx), nil
}

// signum returns ±1 carrying the sign bit of x, so signum(+0) == 1.
func signum(x float64) float64 {
	return math.Copysign(1, x)
}
