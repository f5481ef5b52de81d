package core

// CostFunction is the one capability every operator must provide.
type CostFunction[P any] interface {
	Apply(param P) (float64, error)
}

// Gradient is implemented by operators that can compute the gradient of
// the cost at a parameter.
type Gradient[P any] interface {
	Gradient(param P) (P, error)
}

// Hessian is implemented by operators that can compute the Hessian of the
// cost at a parameter. H is the matrix type the consuming solver expects.
type Hessian[P, H any] interface {
	Hessian(param P) (H, error)
}

// Counts holds the number of forwarded calls per operator capability.
type Counts struct {
	Apply    uint64 `json:"apply"`
	Gradient uint64 `json:"gradient"`
	Hessian  uint64 `json:"hessian"`
}

// Total returns the sum over all capabilities.
func (c Counts) Total() uint64 {
	return c.Apply + c.Gradient + c.Hessian
}

// OpWrapper owns the operator for one run and counts every call.
// Counters only ever increase and start at zero.
//
// An OpWrapper is not safe for concurrent use; each run gets its own.
type OpWrapper[P any] struct {
	op     CostFunction[P]
	counts Counts
}

// NewOpWrapper wraps op with zeroed counters.
func NewOpWrapper[P any](op CostFunction[P]) *OpWrapper[P] {
	return &OpWrapper[P]{op: op}
}

// Operator returns the wrapped operator, e.g. for capability checks.
func (w *OpWrapper[P]) Operator() CostFunction[P] {
	return w.op
}

// Counts returns a copy of the current counters.
func (w *OpWrapper[P]) Counts() Counts {
	return w.counts
}

// Apply evaluates the cost at param.
func (w *OpWrapper[P]) Apply(param P) (float64, error) {
	w.counts.Apply++
	cost, err := w.op.Apply(param)
	if err != nil {
		return cost, &EvaluationError{Capability: "apply", Err: err}
	}
	return cost, nil
}

// Gradient evaluates the gradient at param. It fails with ErrNotImplemented
// when the operator has no gradient; in that case nothing is counted.
func (w *OpWrapper[P]) Gradient(param P) (P, error) {
	g, ok := w.op.(Gradient[P])
	if !ok {
		var zero P
		return zero, &NotImplementedError{Capability: "gradient"}
	}
	w.counts.Gradient++
	grad, err := g.Gradient(param)
	if err != nil {
		return grad, &EvaluationError{Capability: "gradient", Err: err}
	}
	return grad, nil
}

// EvalHessian evaluates the Hessian at param through w. It is a function
// rather than a method because the matrix type H is chosen by the caller.
func EvalHessian[P, H any](w *OpWrapper[P], param P) (H, error) {
	h, ok := w.op.(Hessian[P, H])
	if !ok {
		var zero H
		return zero, &NotImplementedError{Capability: "hessian"}
	}
	w.counts.Hessian++
	hess, err := h.Hessian(param)
	if err != nil {
		return hess, &EvaluationError{Capability: "hessian", Err: err}
	}
	return hess, nil
}

// CostFunc adapts a plain function to CostFunction.
type CostFunc[P any] func(param P) (float64, error)

// Apply calls f(param).
func (f CostFunc[P]) Apply(param P) (float64, error) {
	return f(param)
}
