package models

import "fmt"

// SyncTask is one immutable unit of work: fetch and persist the bars of
// a single (symbol, period) pair. Tasks are created once during task-list
// construction and consumed exactly once by a worker.
type SyncTask struct {
	// ID is a run-scoped identifier used to correlate log lines.
	ID string

	Symbol   string
	Period   PeriodSpec
	Interval string
}

// String implements fmt.Stringer for log output.
func (t SyncTask) String() string {
	return fmt.Sprintf("%s %s %s", t.Symbol, t.Interval, t.Period)
}

// OutcomeStatus classifies how a task ended.
type OutcomeStatus int

const (
	// StatusSaved means a table was fetched, normalized, and written.
	StatusSaved OutcomeStatus = iota

	// StatusSkipped means output already existed and nothing was fetched
	// or written. This is the resumability path.
	StatusSkipped

	// StatusSkippedEmpty means the full window yielded zero rows; no file
	// is written for an empty table.
	StatusSkippedEmpty

	// StatusFailed means the task errored. Failures are isolated: they
	// never cancel or block sibling tasks.
	StatusFailed
)

// String returns the status name used in logs and summaries.
func (s OutcomeStatus) String() string {
	switch s {
	case StatusSaved:
		return "saved"
	case StatusSkipped:
		return "skipped"
	case StatusSkippedEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TaskOutcome is the terminal state of one task, reported to the caller
// by the scheduler. Rows is set only for StatusSaved; Err only for
// StatusFailed.
type TaskOutcome struct {
	Status OutcomeStatus
	Rows   int
	Err    error
}

// Saved builds the outcome for a persisted table.
func Saved(rows int) TaskOutcome { return TaskOutcome{Status: StatusSaved, Rows: rows} }

// Skipped builds the outcome for an already-present output file.
func Skipped() TaskOutcome { return TaskOutcome{Status: StatusSkipped} }

// SkippedEmpty builds the outcome for a window with no data.
func SkippedEmpty() TaskOutcome { return TaskOutcome{Status: StatusSkippedEmpty} }

// Failed builds the outcome for an errored task.
func Failed(err error) TaskOutcome { return TaskOutcome{Status: StatusFailed, Err: err} }
