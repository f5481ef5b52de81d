package testfunc

import (
	"fmt"
	"sort"

	"github.com/cwbudde/iteropt/internal/core"
)

// Problem describes a named test problem: how to build its operator, where
// to start and which box to search.
type Problem struct {
	Name        string
	Description string

	// FixedDim is the only supported dimension; 0 means any positive one.
	FixedDim   int
	DefaultDim int

	// Lower and Upper bound every coordinate of the search box.
	Lower, Upper float64

	build func(dim int) Operator
	start func(dim int) []float64
}

var problems = map[string]Problem{
	"brent-example": {
		Name:        "brent-example",
		Description: "exp(-x) - exp(5 - x/2) on [-10, 10]",
		FixedDim:    1,
		DefaultDim:  1,
		Lower:       -10,
		Upper:       10,
		build:       func(int) Operator { return BrentExample{} },
		start:       func(int) []float64 { return []float64{0} },
	},
	"quadratic": {
		Name:        "quadratic",
		Description: "sum (i+1)(x_i - 1)^2",
		DefaultDim:  2,
		Lower:       -10,
		Upper:       10,
		build: func(dim int) Operator {
			q := &Quadratic{Center: make([]float64, dim), Weights: make([]float64, dim)}
			for i := 0; i < dim; i++ {
				q.Center[i] = 1
				q.Weights[i] = float64(i + 1)
			}
			return q
		},
		start: func(dim int) []float64 { return make([]float64, dim) },
	},
	"sphere": {
		Name:        "sphere",
		Description: "sum x_i^2",
		DefaultDim:  5,
		Lower:       -5.12,
		Upper:       5.12,
		build:       func(dim int) Operator { return NewSphere(dim) },
		start: func(dim int) []float64 {
			x := make([]float64, dim)
			for i := range x {
				x[i] = 3
			}
			return x
		},
	},
	"rosenbrock": {
		Name:        "rosenbrock",
		Description: "(1 - x)^2 + 100(y - x^2)^2",
		FixedDim:    2,
		DefaultDim:  2,
		Lower:       -5,
		Upper:       5,
		build:       func(int) Operator { return NewRosenbrock() },
		start:       func(int) []float64 { return []float64{-1.2, 1} },
	},
}

// Lookup returns the problem registered under name.
func Lookup(name string) (Problem, error) {
	p, ok := problems[name]
	if !ok {
		return Problem{}, core.NewInvalidParameter("problem", fmt.Sprintf("unknown problem %q", name))
	}
	return p, nil
}

// Names returns all registered problem names, sorted.
func Names() []string {
	names := make([]string, 0, len(problems))
	for name := range problems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dim resolves a requested dimension; 0 selects the default.
func (p Problem) Dim(requested int) (int, error) {
	if requested == 0 {
		return p.DefaultDim, nil
	}
	if requested < 0 {
		return 0, core.NewInvalidParameter("dim", "must be positive")
	}
	if p.FixedDim != 0 && requested != p.FixedDim {
		return 0, core.NewInvalidParameter("dim",
			fmt.Sprintf("problem %s is only defined for dim %d", p.Name, p.FixedDim))
	}
	return requested, nil
}

// Operator builds the operator for dim, which must already be resolved.
func (p Problem) Operator(dim int) Operator {
	return p.build(dim)
}

// Start returns the default initial parameter for dim.
func (p Problem) Start(dim int) []float64 {
	return p.start(dim)
}
