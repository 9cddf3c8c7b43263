package retro

import (
	"errors"
	"fmt"
)

// Common Retro API errors
var (
	// ErrAuthenticationFailed is returned when the login endpoint rejects the
	// credentials or answers with anything but a positive response flag.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNotAuthenticated is returned when a call is made before Authenticate succeeded.
	ErrNotAuthenticated = errors.New("client is not authenticated")

	// ErrUnexpectedStatus is returned for HTTP statuses outside the success range.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrMalformedResponse is returned when a response body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response body")

	// ErrDuplicateReference is returned when the destination already holds the reference number.
	ErrDuplicateReference = errors.New("matching supplier reference number already exists")

	// ErrInvalidOperation is returned when the destination refuses the submission as invalid.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrRejected is returned for any other negative response flag.
	ErrRejected = errors.New("submission rejected")

	// ErrNotFound is returned by Verify when the reference is absent from the pending list.
	ErrNotFound = errors.New("invoice not found in pending assignment list")

	// ErrAmountMismatch is returned by Verify when the stored total differs from the sent total.
	ErrAmountMismatch = errors.New("stored total amount does not match")
)

// RetroError wraps errors with the API operation that produced them.
type RetroError struct {
	// Op is the operation that failed (e.g., "Authenticate", "Submit").
	Op string

	// Err is the underlying error.
	Err error

	// Details carries the server message or status, if any.
	Details string
}

func (e *RetroError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("retro: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("retro: %s failed: %v", e.Op, e.Err)
}

func (e *RetroError) Unwrap() error {
	return e.Err
}

func (e *RetroError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRetroError creates a new RetroError.
func NewRetroError(op string, err error, details string) *RetroError {
	return &RetroError{Op: op, Err: err, Details: details}
}

// WrapRetroError wraps err as a RetroError unless it already is one.
func WrapRetroError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var retroErr *RetroError
	if errors.As(err, &retroErr) {
		return err
	}

	return NewRetroError(op, err, details)
}
