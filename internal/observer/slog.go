// Package observer provides executor observers that report progress to a
// structured logger or to a JSONL trace on disk.
package observer

import (
	"context"
	"log/slog"

	"github.com/cwbudde/iteropt/internal/core"
)

// Slog logs one line per observed iteration.
type Slog[P any] struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlog creates a logging observer. A nil logger uses slog.Default().
func NewSlog[P any](logger *slog.Logger, level slog.Level) *Slog[P] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slog[P]{logger: logger, level: level}
}

// Observe implements core.Observer.
func (o *Slog[P]) Observe(state core.State[P]) error {
	attrs := []any{
		"iter", state.Iter,
		"cost", state.Cost,
		"best_cost", state.BestCost,
		"last_best_iter", state.LastBestIter,
		"param", state.Param,
	}
	if state.Termination.Terminated() {
		attrs = append(attrs, "termination", state.Termination.String())
	}
	o.logger.Log(context.Background(), o.level, "Iteration", attrs...)
	return nil
}
