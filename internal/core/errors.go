package core

import "errors"

// Error taxonomy shared by the executor and all solvers.
// Use errors.Is(err, ErrX) to classify a failed run.
var (
	// ErrInvalidParameter is returned by constructors when their configuration
	// violates a contract. No operator evaluation happens before it is returned.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotImplemented is returned when a solver asks the operator for a
	// capability (gradient, Hessian) it does not provide.
	ErrNotImplemented = errors.New("not implemented")

	// ErrNumerical is returned on numerical failures such as inverting a
	// singular Hessian.
	ErrNumerical = errors.New("numerical error")
)

// InvalidParameterError describes which constructor argument was rejected.
type InvalidParameterError struct {
	Field  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return "invalid parameter: " + e.Field + " " + e.Reason
}

func (e *InvalidParameterError) Is(target error) bool {
	return target == ErrInvalidParameter
}

// NewInvalidParameter builds an InvalidParameterError.
func NewInvalidParameter(field, reason string) error {
	return &InvalidParameterError{Field: field, Reason: reason}
}

// EvaluationError wraps a failure returned by the cost operator itself.
// The operator's error is kept unchanged in Err.
type EvaluationError struct {
	Capability string // apply, gradient or hessian
	Err        error
}

func (e *EvaluationError) Error() string {
	return "evaluation of " + e.Capability + " failed: " + e.Err.Error()
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// NotImplementedError reports the capability the operator is missing.
type NotImplementedError struct {
	Capability string
}

func (e *NotImplementedError) Error() string {
	return "operator does not implement " + e.Capability
}

func (e *NotImplementedError) Is(target error) bool {
	return target == ErrNotImplemented
}
