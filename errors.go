package sqlitekv

import (
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// ErrClosed is returned by every operation submitted after Close.
var ErrClosed = errors.New("sqlitekv: store is closed")

// ContentionError reports that the engine's lock-wait timeout expired while
// another OS process held a file-level lock on the database. The operation
// did not run; callers may retry.
type ContentionError struct {
	// Op names the operation that hit contention.
	Op string

	// Err is the underlying driver error.
	Err error
}

// Error implements the error interface.
func (e *ContentionError) Error() string {
	return fmt.Sprintf("%s: lock contention: %v", e.Op, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *ContentionError) Unwrap() error {
	return e.Err
}

// IsContention returns true if the error is an engine lock-wait timeout.
// Uses errors.As to handle wrapped errors.
func IsContention(err error) bool {
	var ce *ContentionError
	return errors.As(err, &ce)
}

// opErr wraps a statement execution error with its operation prefix,
// classifying engine lock-wait timeouts as ContentionError.
func opErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isLockErr(err) {
		return &ContentionError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isLockErr reports whether err is a SQLITE_BUSY or SQLITE_LOCKED failure.
func isLockErr(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
