// Package errors defines the error taxonomy of the sync engine and the
// classification helpers the acquisition strategy and scheduler dispatch
// on. Every per-task error is converted to a TaskOutcome at the task
// boundary; only configuration-level errors (invalid range, invalid
// selector) escape the scheduler.
package errors

import (
	"errors"
	"fmt"
)

// FormatError reports a payload that could not be parsed into the
// canonical bar schema. From the archive path it triggers the API
// fallback; from the API path it fails the task.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("format error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("format error: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ArchiveError reports a failed bulk-archive download or decompression.
// Never fatal to a task: the caller falls back to the API path.
type ArchiveError struct {
	URL string
	Err error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive fetch %s: %v", e.URL, e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }

// ClientRejectedError means the provider answered HTTP 400-class: the
// symbol/date combination is fundamentally invalid for this provider.
// Never retried. Skipped by default, fatal to the run with --fail-on-400.
type ClientRejectedError struct {
	URL    string
	Status int
	Body   string
}

func (e *ClientRejectedError) Error() string {
	return fmt.Sprintf("provider rejected request (%d): %s", e.Status, e.Body)
}

// TransientError covers network failures, timeouts, and 5xx responses.
// Fails the individual task after bounded retries; the batch continues.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// EmptyResultError means the full query window yielded zero rows. This
// distinguishes "genuinely no data" from format errors; it is logged as
// a warning, not an error.
type EmptyResultError struct {
	Symbol  string
	StartMS int64
	EndMS   int64
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no rows for %s in [%d, %d)", e.Symbol, e.StartMS, e.EndMS)
}

// IsFormat reports whether err is (or wraps) a FormatError.
func IsFormat(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsArchive reports whether err is (or wraps) an ArchiveError.
func IsArchive(err error) bool {
	var ae *ArchiveError
	return errors.As(err, &ae)
}

// IsClientRejected reports whether err is (or wraps) a ClientRejectedError.
func IsClientRejected(err error) bool {
	var ce *ClientRejectedError
	return errors.As(err, &ce)
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsEmptyResult reports whether err is (or wraps) an EmptyResultError.
func IsEmptyResult(err error) bool {
	var ee *EmptyResultError
	return errors.As(err, &ee)
}
