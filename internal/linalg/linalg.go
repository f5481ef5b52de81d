// Package linalg is the small dense linear-algebra contract consumed by the
// second-order solvers, implemented on top of gonum.
package linalg

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a matrix cannot be inverted.
var ErrSingular = errors.New("matrix is singular")

// Invert returns the inverse of the square matrix m. It fails with
// ErrSingular if m is singular or too ill-conditioned to invert.
func Invert(m mat.Matrix) (*mat.Dense, error) {
	r, c := m.Dims()
	if r != c {
		return nil, fmt.Errorf("invert %dx%d matrix: not square", r, c)
	}
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return &inv, nil
}

// Dot returns the matrix-vector product m·v.
func Dot(m mat.Matrix, v []float64) ([]float64, error) {
	r, c := m.Dims()
	if len(v) == 0 {
		return nil, errors.New("dot with empty vector")
	}
	if c != len(v) {
		return nil, fmt.Errorf("dot %dx%d matrix with vector of length %d: dimension mismatch", r, c, len(v))
	}
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(len(v), v))
	return out.RawVector().Data, nil
}

// ScaledSub returns x - alpha*d as a new slice.
func ScaledSub(x []float64, alpha float64, d []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	floats.AddScaled(out, -alpha, d)
	return out
}

// Norm returns the Euclidean norm of v.
func Norm(v []float64) float64 {
	return floats.Norm(v, 2)
}
