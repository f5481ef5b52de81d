package store

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/iteropt/internal/core"
)

func TestRecord_JSONSerialization(t *testing.T) {
	target := 1e-6
	original := &Record{
		RunID:        "test-run-123",
		Param:        []float64{-8.6137},
		Cost:         -5506.6,
		PrevParam:    []float64{-8.6},
		PrevCost:     -5506.5,
		BestParam:    []float64{-8.6137},
		BestCost:     -5506.6,
		Iterations:   13,
		LastBestIter: 12,
		Termination:  "Target precision reached",
		Counts:       core.Counts{Apply: 13},
		Duration:     0.25,
		Timestamp:    time.Date(2025, 10, 23, 10, 30, 0, 0, time.UTC),
		Config: RunConfig{
			Problem:    "brent-example",
			Solver:     "brent",
			Dim:        1,
			MaxIters:   100,
			TargetCost: &target,
			Seed:       42,
		},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal record: %v", err)
	}

	var restored Record
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Failed to unmarshal record: %v", err)
	}

	if restored.RunID != original.RunID {
		t.Errorf("RunID mismatch: expected %s, got %s", original.RunID, restored.RunID)
	}
	if restored.BestCost != original.BestCost {
		t.Errorf("BestCost mismatch: expected %f, got %f", original.BestCost, restored.BestCost)
	}
	if restored.PrevCost != original.PrevCost {
		t.Errorf("PrevCost mismatch: expected %f, got %f", original.PrevCost, restored.PrevCost)
	}
	if restored.Iterations != original.Iterations {
		t.Errorf("Iterations mismatch: expected %d, got %d", original.Iterations, restored.Iterations)
	}
	if restored.Counts != original.Counts {
		t.Errorf("Counts mismatch: expected %+v, got %+v", original.Counts, restored.Counts)
	}
	if !restored.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp mismatch: expected %v, got %v", original.Timestamp, restored.Timestamp)
	}
	if restored.Config.TargetCost == nil || *restored.Config.TargetCost != target {
		t.Errorf("Config.TargetCost mismatch: expected %v, got %v", target, restored.Config.TargetCost)
	}
	if restored.Config.Solver != original.Config.Solver {
		t.Errorf("Config.Solver mismatch: expected %s, got %s", original.Config.Solver, restored.Config.Solver)
	}
}

func TestCost_JSON(t *testing.T) {
	tests := []struct {
		name string
		cost Cost
		want string
	}{
		{"finite", 1.5, "1.5"},
		{"nan", Cost(math.NaN()), "null"},
		{"positive infinity", Cost(math.Inf(1)), `"+Inf"`},
		{"negative infinity", Cost(math.Inf(-1)), `"-Inf"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.cost)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal = %s, want %s", data, tt.want)
			}

			var back Cost
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			same := back == tt.cost || (math.IsNaN(float64(back)) && math.IsNaN(float64(tt.cost)))
			if !same {
				t.Errorf("Unmarshal = %v, want %v", back, tt.cost)
			}
		})
	}
}

func TestCost_UnmarshalInvalid(t *testing.T) {
	var c Cost
	if err := json.Unmarshal([]byte(`"abc"`), &c); err == nil {
		t.Error("Expected error for non-numeric cost")
	}
}

func TestNewRecord(t *testing.T) {
	state := core.State[float64]{
		Iter:         5,
		Param:        2.0,
		Cost:         math.NaN(),
		PrevParam:    1.5,
		PrevCost:     3.0,
		BestParam:    1.0,
		BestCost:     0.5,
		LastBestIter: 3,
		Termination:  core.MaxItersReached,
	}
	res := core.Result[float64]{
		Solver:   "Test",
		State:    state,
		Counts:   core.Counts{Apply: 6},
		Duration: 1500 * time.Millisecond,
	}
	cfg := RunConfig{Problem: "quadratic", Solver: "brent", Dim: 1, MaxIters: 5}

	record := NewRecord("run-1", res, func(x float64) []float64 { return []float64{x} }, cfg)

	if record.RunID != "run-1" {
		t.Errorf("RunID = %s, want run-1", record.RunID)
	}
	if record.Param[0] != 2.0 || record.BestParam[0] != 1.0 || record.PrevParam[0] != 1.5 {
		t.Errorf("Unexpected params: %v %v %v", record.Param, record.BestParam, record.PrevParam)
	}
	if !math.IsNaN(float64(record.Cost)) {
		t.Errorf("Cost = %v, want NaN", record.Cost)
	}
	if record.BestCost != 0.5 {
		t.Errorf("BestCost = %v, want 0.5", record.BestCost)
	}
	if record.Iterations != 5 || record.LastBestIter != 3 {
		t.Errorf("Iterations = %d, LastBestIter = %d", record.Iterations, record.LastBestIter)
	}
	if record.Termination != core.MaxItersReached.String() {
		t.Errorf("Termination = %s, want %s", record.Termination, core.MaxItersReached.String())
	}
	if record.Counts.Apply != 6 {
		t.Errorf("Counts.Apply = %d, want 6", record.Counts.Apply)
	}
	if record.Duration != 1.5 {
		t.Errorf("Duration = %v, want 1.5", record.Duration)
	}
	if record.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if err := record.Validate(); err != nil {
		t.Errorf("Record from result should validate: %v", err)
	}
}

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Record)
		wantField string
	}{
		{"valid", func(r *Record) {}, ""},
		{"empty run ID", func(r *Record) { r.RunID = "" }, "RunID"},
		{"empty best param", func(r *Record) { r.BestParam = nil }, "BestParam"},
		{"empty termination", func(r *Record) { r.Termination = "" }, "Termination"},
		{"zero timestamp", func(r *Record) { r.Timestamp = time.Time{} }, "Timestamp"},
		{"empty problem", func(r *Record) { r.Config.Problem = "" }, "Config.Problem"},
		{"empty solver", func(r *Record) { r.Config.Solver = "" }, "Config.Solver"},
		{"zero dim", func(r *Record) { r.Config.Dim = 0 }, "Config.Dim"},
		{"dim mismatch", func(r *Record) { r.BestParam = []float64{1, 2, 3} }, "BestParam"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := createTestRecord("run")
			tt.modify(record)

			err := record.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Expected valid record, got %v", err)
				}
				return
			}

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %T: %v", err, err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", vErr.Field, tt.wantField)
			}
		})
	}
}

func TestRecord_IsCompatible(t *testing.T) {
	record := createTestRecord("run")

	tests := []struct {
		name      string
		config    RunConfig
		wantField string
	}{
		{"same problem other solver", RunConfig{Problem: "rosenbrock", Solver: "mayfly", Dim: 2}, ""},
		{"other problem", RunConfig{Problem: "sphere", Solver: "newton", Dim: 2}, "Problem"},
		{"other dim", RunConfig{Problem: "rosenbrock", Solver: "newton", Dim: 3}, "Dim"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := record.IsCompatible(tt.config)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Expected compatible, got %v", err)
				}
				return
			}

			var cErr *CompatibilityError
			if !errors.As(err, &cErr) {
				t.Fatalf("Expected CompatibilityError, got %T: %v", err, err)
			}
			if cErr.Field != tt.wantField {
				t.Errorf("Field = %s, want %s", cErr.Field, tt.wantField)
			}
			if !strings.Contains(cErr.Error(), tt.wantField) {
				t.Errorf("Error message should name the field: %s", cErr.Error())
			}
		})
	}
}

func TestRecord_ToInfo(t *testing.T) {
	record := createTestRecord("test-run")

	info := record.ToInfo()

	if info.RunID != record.RunID {
		t.Errorf("RunID mismatch: expected %s, got %s", record.RunID, info.RunID)
	}
	if info.BestCost != record.BestCost {
		t.Errorf("BestCost mismatch: expected %f, got %f", record.BestCost, info.BestCost)
	}
	if info.Iterations != record.Iterations {
		t.Errorf("Iterations mismatch: expected %d, got %d", record.Iterations, info.Iterations)
	}
	if info.Problem != record.Config.Problem || info.Solver != record.Config.Solver {
		t.Errorf("Problem/Solver mismatch: got %s/%s", info.Problem, info.Solver)
	}
	if info.Termination != record.Termination {
		t.Errorf("Termination mismatch: expected %s, got %s", record.Termination, info.Termination)
	}
}
