package store

// Store defines the interface for run record persistence.
// Implementations must be safe for concurrent use by independent runs.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if the record doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRecord atomically saves the record of a run, overwriting any
	// previous record with the same run ID.
	SaveRecord(runID string, record *Record) error

	// LoadRecord retrieves the record of a run.
	// Returns ErrNotFound if no record exists for this runID.
	LoadRecord(runID string) (*Record, error)

	// ListRecords returns metadata for all stored records.
	ListRecords() ([]RecordInfo, error)

	// DeleteRecord removes the record and all associated artifacts
	// (record.json, trace.jsonl) of a run.
	// Returns ErrNotFound if no record exists for this runID.
	DeleteRecord(runID string) error
}

// ErrNotFound is returned when a requested record does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing record error.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "record not found: " + e.RunID
	}
	return "record not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
