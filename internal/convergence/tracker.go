// Package convergence detects stalled optimization runs.
package convergence

import (
	"log/slog"
	"math"

	"github.com/cwbudde/iteropt/internal/core"
)

// Config defines parameters for detecting convergence
type Config struct {
	// Enabled controls whether convergence detection is active
	Enabled bool

	// Patience is the number of consecutive iterations without a significant
	// improvement of the best cost before the run is stopped
	Patience int

	// Threshold is the minimum relative improvement required to count as progress.
	// Relative improvement = (lastSignificant - cost) / max(|lastSignificant|, 1)
	Threshold float64
}

// DefaultConfig returns sensible defaults for convergence detection
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Patience:  10,
		Threshold: 1e-8,
	}
}

// DisabledConfig returns a config with convergence detection disabled
func DisabledConfig() Config {
	return Config{
		Enabled: false,
	}
}

// Tracker tracks the best-cost history of one run and detects when it has
// stalled. It implements core.Criterion.
type Tracker struct {
	config          Config
	costHistory     []float64
	bestCost        float64 // Best cost ever seen
	lastSignificant float64 // Last cost that was a significant improvement
	staleCount      int     // Number of updates without significant improvement
}

// NewTracker creates a new tracker with the given config
func NewTracker(config Config) *Tracker {
	return &Tracker{
		config:          config,
		costHistory:     []float64{},
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Check implements core.Criterion using the best cost of the run. A run
// that has not evaluated a finite cost yet never counts as stalled.
func (c *Tracker) Check(p core.Progress) core.TerminationReason {
	if c.Update(p.BestCost) {
		return core.NoChangeInCost
	}
	return core.NotTerminated
}

// Update records a new cost value and returns true if convergence is detected.
// Infinite or NaN costs are skipped without touching the stale count.
func (c *Tracker) Update(cost float64) bool {
	if !c.config.Enabled {
		return false
	}
	if math.IsInf(cost, 0) || math.IsNaN(cost) {
		return false
	}

	c.costHistory = append(c.costHistory, cost)

	if cost < c.bestCost {
		c.bestCost = cost
	}

	// First finite cost initializes lastSignificant
	if math.IsInf(c.lastSignificant, 1) {
		c.lastSignificant = cost
		c.staleCount = 0
		return false
	}

	relativeImprovement := (c.lastSignificant - cost) / math.Max(math.Abs(c.lastSignificant), 1)
	if relativeImprovement >= c.config.Threshold {
		c.lastSignificant = cost
		c.staleCount = 0
		slog.Debug("Cost improvement detected",
			"cost", cost,
			"relative_improvement", relativeImprovement,
		)
		return false
	}

	c.staleCount++
	if c.staleCount >= c.config.Patience {
		slog.Debug("Convergence detected",
			"stale_count", c.staleCount,
			"patience", c.config.Patience,
			"best_cost", c.bestCost,
		)
		return true
	}
	return false
}

// BestCost returns the best cost seen so far
func (c *Tracker) BestCost() float64 {
	return c.bestCost
}

// History returns the full cost history
func (c *Tracker) History() []float64 {
	return append([]float64{}, c.costHistory...)
}

// StaleCount returns the current number of updates without improvement
func (c *Tracker) StaleCount() int {
	return c.staleCount
}

// Reset clears the tracker's state
func (c *Tracker) Reset() {
	c.costHistory = []float64{}
	c.bestCost = math.Inf(1)
	c.lastSignificant = math.Inf(1)
	c.staleCount = 0
}
