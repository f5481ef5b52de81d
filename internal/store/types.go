package store

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/cwbudde/iteropt/internal/core"
)

// Cost is a float64 that survives JSON: NaN is written as null and the
// infinities as the strings "+Inf" and "-Inf".
type Cost float64

func (c Cost) MarshalJSON() ([]byte, error) {
	f := float64(c)
	switch {
	case math.IsNaN(f):
		return []byte("null"), nil
	case math.IsInf(f, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(f, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(f)
}

func (c *Cost) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null":
		*c = Cost(math.NaN())
		return nil
	case `"+Inf"`:
		*c = Cost(math.Inf(1))
		return nil
	case `"-Inf"`:
		*c = Cost(math.Inf(-1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid cost %s: %w", data, err)
	}
	*c = Cost(f)
	return nil
}

// RunConfig holds the configuration of a run (record copy).
// This avoids import cycles with the config package.
type RunConfig struct {
	Problem    string   `json:"problem"`
	Solver     string   `json:"solver"` // brent, newton, mayfly
	Dim        int      `json:"dim"`
	MaxIters   uint64   `json:"maxIters"`
	TargetCost *float64 `json:"targetCost,omitempty"`
	Seed       int64    `json:"seed"`
}

// Record is the persisted outcome of one run. It mirrors core.Result with
// parameters flattened to []float64.
//
// Records are used for reporting and for warm starts: a later run on the
// same problem may take BestParam as its initial parameter, even with a
// different solver. Solver-internal state (Brent's bracket, Mayfly's
// random source) is not saved, so a warm start is a new run, not a
// continuation.
type Record struct {
	// RunID is the unique identifier of the run
	RunID string `json:"runId"`

	Param     []float64 `json:"param"`
	Cost      Cost      `json:"cost"`
	PrevParam []float64 `json:"prevParam,omitempty"`
	PrevCost  Cost      `json:"prevCost"`
	BestParam []float64 `json:"bestParam"`
	BestCost  Cost      `json:"bestCost"`

	Iterations   uint64      `json:"iterations"`
	LastBestIter uint64      `json:"lastBestIter"`
	Termination  string      `json:"termination"`
	Counts       core.Counts `json:"counts"`

	// Duration of the run in seconds
	Duration float64 `json:"duration"`

	// Timestamp records when this record was created
	Timestamp time.Time `json:"timestamp"`

	Config RunConfig `json:"config"`
}

// RecordInfo contains metadata about a record without the parameter data.
type RecordInfo struct {
	RunID       string    `json:"runId"`
	Problem     string    `json:"problem"`
	Solver      string    `json:"solver"`
	BestCost    Cost      `json:"bestCost"`
	Iterations  uint64    `json:"iterations"`
	Termination string    `json:"termination"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewRecord converts a run result into a persistable record. toVec flattens
// the parameter type of the run.
func NewRecord[P any](runID string, res core.Result[P], toVec func(P) []float64, config RunConfig) *Record {
	s := res.State
	return &Record{
		RunID:        runID,
		Param:        toVec(s.Param),
		Cost:         Cost(s.Cost),
		PrevParam:    toVec(s.PrevParam),
		PrevCost:     Cost(s.PrevCost),
		BestParam:    toVec(s.BestParam),
		BestCost:     Cost(s.BestCost),
		Iterations:   s.Iter,
		LastBestIter: s.LastBestIter,
		Termination:  s.Termination.String(),
		Counts:       res.Counts,
		Duration:     res.Duration.Seconds(),
		Timestamp:    time.Now(),
		Config:       config,
	}
}

// ToInfo converts a full Record to RecordInfo (metadata only).
func (r *Record) ToInfo() RecordInfo {
	return RecordInfo{
		RunID:       r.RunID,
		Problem:     r.Config.Problem,
		Solver:      r.Config.Solver,
		BestCost:    r.BestCost,
		Iterations:  r.Iterations,
		Termination: r.Termination,
		Timestamp:   r.Timestamp,
	}
}

// Validate checks if the record has valid data.
func (r *Record) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if len(r.BestParam) == 0 {
		return &ValidationError{Field: "BestParam", Reason: "cannot be empty"}
	}
	if r.Termination == "" {
		return &ValidationError{Field: "Termination", Reason: "cannot be empty"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.Problem == "" {
		return &ValidationError{Field: "Config.Problem", Reason: "cannot be empty"}
	}
	if r.Config.Solver == "" {
		return &ValidationError{Field: "Config.Solver", Reason: "cannot be empty"}
	}
	if r.Config.Dim <= 0 {
		return &ValidationError{Field: "Config.Dim", Reason: "must be positive"}
	}
	if len(r.BestParam) != r.Config.Dim {
		return &ValidationError{
			Field:  "BestParam",
			Reason: fmt.Sprintf("length mismatch: expected %d values, got %d", r.Config.Dim, len(r.BestParam)),
		}
	}
	return nil
}

// ValidationError represents a record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks if this record can seed a run with the given config.
func (r *Record) IsCompatible(config RunConfig) error {
	if r.Config.Problem != config.Problem {
		return &CompatibilityError{
			Field:    "Problem",
			Expected: r.Config.Problem,
			Actual:   config.Problem,
		}
	}
	if r.Config.Dim != config.Dim {
		return &CompatibilityError{
			Field:    "Dim",
			Expected: fmt.Sprintf("%d", r.Config.Dim),
			Actual:   fmt.Sprintf("%d", config.Dim),
		}
	}
	return nil
}

// CompatibilityError represents a record compatibility error.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
