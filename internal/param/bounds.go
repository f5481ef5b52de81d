// Package param provides box bounds for parameter vectors together with
// uniform sampling and random perturbation. All randomness comes from a
// caller-owned *rand.Rand so that runs are reproducible.
package param

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/iteropt/internal/core"
)

// maxModifyAttempts bounds the retry loop of Modify.
const maxModifyAttempts = 10000

// ErrConstraintUnsatisfied is returned by Modify when no perturbation
// satisfying the constraint was found.
var ErrConstraintUnsatisfied = errors.New("no perturbation satisfies the constraint")

// Bounds defines valid parameter ranges per coordinate.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// NewBounds creates validated bounds.
func NewBounds(lower, upper []float64) (*Bounds, error) {
	b := &Bounds{Lower: lower, Upper: upper}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Uniform creates bounds with the same interval for all dim coordinates.
func Uniform(dim int, lower, upper float64) (*Bounds, error) {
	lo := make([]float64, dim)
	hi := make([]float64, dim)
	for i := 0; i < dim; i++ {
		lo[i] = lower
		hi[i] = upper
	}
	return NewBounds(lo, hi)
}

// Dim returns the number of coordinates.
func (b *Bounds) Dim() int {
	return len(b.Lower)
}

// Validate checks that the bounds have equal length and that
// Lower[i] < Upper[i] for every coordinate.
func (b *Bounds) Validate() error {
	if len(b.Lower) != len(b.Upper) {
		return core.NewInvalidParameter("bounds",
			fmt.Sprintf("length mismatch: %d lower, %d upper", len(b.Lower), len(b.Upper)))
	}
	for i := range b.Lower {
		if !(b.Lower[i] < b.Upper[i]) {
			return core.NewInvalidParameter("bounds",
				fmt.Sprintf("lower[%d] must be lower than upper[%d]", i, i))
		}
	}
	return nil
}

// Contains reports whether x lies inside the bounds.
func (b *Bounds) Contains(x []float64) bool {
	if len(x) != len(b.Lower) {
		return false
	}
	for i, v := range x {
		if v < b.Lower[i] || v > b.Upper[i] {
			return false
		}
	}
	return true
}

// Clamp clamps every coordinate of data into the bounds in place.
func (b *Bounds) Clamp(data []float64) {
	for i := range data {
		data[i] = clamp(data[i], b.Lower[i], b.Upper[i])
	}
}

// Random returns a vector drawn uniformly from the bounds. The bounds are
// validated before anything is sampled.
func (b *Bounds) Random(rng *rand.Rand) ([]float64, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	out := make([]float64, len(b.Lower))
	for i := range out {
		out[i] = b.Lower[i] + rng.Float64()*(b.Upper[i]-b.Lower[i])
		// guard against rounding past the upper bound
		out[i] = clamp(out[i], b.Lower[i], b.Upper[i])
	}
	return out, nil
}

// Modify returns a copy of x where one randomly chosen coordinate is moved
// by a value drawn from U(-1, 1) and clamped to the bounds. Candidates are
// drawn until constraint accepts one; a nil constraint accepts everything.
func (b *Bounds) Modify(x []float64, constraint func([]float64) bool, rng *rand.Rand) ([]float64, error) {
	if len(x) != len(b.Lower) {
		return nil, core.NewInvalidParameter("param",
			fmt.Sprintf("length %d does not match bounds of length %d", len(x), len(b.Lower)))
	}
	if len(x) == 0 {
		return nil, core.NewInvalidParameter("param", "cannot be empty")
	}
	out := make([]float64, len(x))
	for attempt := 0; attempt < maxModifyAttempts; attempt++ {
		copy(out, x)
		idx := rng.Intn(len(x))
		out[idx] = clamp(x[idx]+(2*rng.Float64()-1), b.Lower[idx], b.Upper[idx])
		if constraint == nil || constraint(out) {
			return out, nil
		}
	}
	return nil, ErrConstraintUnsatisfied
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}
