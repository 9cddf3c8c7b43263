package migration

import (
	"errors"
	"fmt"
)

// Run-level failures. Per-record failures never surface as errors; they
// are tallied in the Summary.
var (
	// ErrAuthentication is returned when the destination login fails.
	// The source database is not opened in that case.
	ErrAuthentication = errors.New("destination authentication failed")

	// ErrSourceUnavailable is returned when the source database cannot be opened.
	ErrSourceUnavailable = errors.New("source database unavailable")

	// ErrFetch is returned when the invoice query fails.
	ErrFetch = errors.New("failed to fetch invoices")

	// ErrNoRecords is returned when the query matched nothing.
	ErrNoRecords = errors.New("no invoices matched the request")

	// ErrInvalidRequest is returned for a non-positive limit or record id.
	ErrInvalidRequest = errors.New("invalid migration request")
)

// MigrationError wraps a run-level failure with the stage that produced it.
type MigrationError struct {
	// Op is the stage that failed (e.g., "Authenticate", "Fetch").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

func (e *MigrationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("migration: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("migration: %s failed: %v", e.Op, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

func (e *MigrationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewMigrationError creates a new MigrationError.
func NewMigrationError(op string, err error, details string) *MigrationError {
	return &MigrationError{Op: op, Err: err, Details: details}
}
