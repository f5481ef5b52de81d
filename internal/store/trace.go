package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwbudde/iteropt/internal/core"
)

const traceFile = "trace.jsonl"

// TraceEntry is one observed iteration of a run, stored as a JSON line.
type TraceEntry struct {
	Iteration uint64 `json:"iteration"`

	// Cost is null when the step did not evaluate the operator
	Cost     Cost `json:"cost"`
	BestCost Cost `json:"bestCost"`

	// Termination stays empty until the run stops
	Termination string `json:"termination,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	Param     []float64 `json:"param,omitempty"`
}

// NewTraceEntry snapshots state at time at. toVec flattens the current
// parameter; a nil toVec leaves it out of the entry.
func NewTraceEntry[P any](state core.State[P], toVec func(P) []float64, at time.Time) TraceEntry {
	e := TraceEntry{
		Iteration: state.Iter,
		Cost:      Cost(state.Cost),
		BestCost:  Cost(state.BestCost),
		Timestamp: at,
	}
	if state.Termination.Terminated() {
		e.Termination = state.Termination.String()
	}
	if toVec != nil {
		e.Param = toVec(state.Param)
	}
	return e
}

// Trace is the iteration log of a single run, kept next to its record.
// Appends are buffered until Close and may come from several goroutines.
type Trace struct {
	mu   sync.Mutex
	path string
	f    *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// CreateTrace starts an empty trace for runID, discarding an earlier one.
func CreateTrace(baseDir, runID string) (*Trace, error) {
	dir := runDir(baseDir, runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating run directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, traceFile)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening trace of run %s: %w", runID, err)
	}
	buf := bufio.NewWriter(f)
	return &Trace{path: path, f: f, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// Append adds e as the next line of the trace.
func (t *Trace) Append(e TraceEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enc.Encode(e); err != nil {
		return fmt.Errorf("appending iteration %d to %s: %w", e.Iteration, t.path, err)
	}
	return nil
}

// Close flushes buffered entries and closes the file.
func (t *Trace) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return errors.Join(t.buf.Flush(), t.f.Close())
}

// Path returns the location of the trace file.
func (t *Trace) Path() string { return t.path }

// ReadTrace calls fn for every entry of the run's trace in order and stops
// at the first error fn returns. A run without trace yields ErrNotFound.
func ReadTrace(baseDir, runID string, fn func(TraceEntry) error) error {
	f, err := os.Open(filepath.Join(runDir(baseDir, runID), traceFile))
	if errors.Is(err, os.ErrNotExist) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	for line := 1; ; line++ {
		var e TraceEntry
		if err := dec.Decode(&e); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("trace of run %s, entry %d: %w", runID, line, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}

// LoadTrace returns the whole trace of a run.
func LoadTrace(baseDir, runID string) ([]TraceEntry, error) {
	var entries []TraceEntry
	err := ReadTrace(baseDir, runID, func(e TraceEntry) error {
		entries = append(entries, e)
		return nil
	})
	return entries, err
}
