// Package core contains the solver-independent optimization engine: the
// operator wrapper that counts evaluations, the per-run iteration state,
// the solver contract and the executor loop that ties them together.
//
// A run is synchronous. The executor calls Solver.Init once and then
// Solver.NextIter until the solver reports a terminal reason, a stopping
// criterion fires or the iteration cap is reached:
//
//	exec := core.NewExecutor[float64](op, solver, math.NaN(), core.WithMaxIters(100))
//	res, err := exec.Run()
//
// Independent runs may execute concurrently as long as each has its own
// Executor; the operator may be shared only if it is safe for concurrent
// reads.
package core
