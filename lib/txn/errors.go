package txn

import (
	"errors"
	"fmt"
	"net/http"
)

// --------------------------------------------------------------------------
// Sentinel Errors
// --------------------------------------------------------------------------

var (
	// ErrInvalidConfig wraps every configuration error returned by Start
	ErrInvalidConfig = errors.New("invalid transaction config")
	// ErrInvalidRequest wraps every addressing error returned by Start
	ErrInvalidRequest = errors.New("invalid transaction request")

	ErrMissingLocator    = fmt.Errorf("%w: must provide uri/url or couch/db/id", ErrInvalidRequest)
	ErrClashingLocator   = fmt.Errorf("%w: clashing uri/url and couch/db/id parameters", ErrInvalidRequest)
	ErrIncompleteLocator = fmt.Errorf("%w: must set all of couch, db and id", ErrInvalidRequest)
	ErrURIDisallowed     = fmt.Errorf("%w: the embedded backend disallows uri/url parameters", ErrInvalidRequest)

	ErrMissingID  = errors.New("document has no _id")
	ErrMissingRev = errors.New("document has no _rev")

	ErrNotFound  = errors.New("document not found")
	ErrConflict  = errors.New("document update conflict")
	ErrTimeout   = errors.New("operation timed out")
	ErrCancelled = errors.New("transaction cancelled")
	ErrExhausted = errors.New("too many tries")

	// ErrInternal marks a broken state machine invariant (e.g. a second retry timer)
	ErrInternal = errors.New("internal transaction state violation")
)

// --------------------------------------------------------------------------
// Typed Errors
// --------------------------------------------------------------------------

// ExhaustedError is the terminal error of a transaction that used up all tries
type ExhaustedError struct {
	Tries int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("too many tries: %d", e.Tries)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// StatusError is a failed backend call that produced a status and an error body.
// Cause holds the original error of the embedded store, if any.
type StatusError struct {
	Status int
	Name   string
	Reason string
	Cause  error
}

func (e *StatusError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Name)
	}
	return fmt.Sprintf("status %d: %s (%s)", e.Status, e.Name, e.Reason)
}

// Is matches ErrNotFound and ErrConflict for the two structured failure cases
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound && e.Name == "not_found"
	case ErrConflict:
		return e.Status == http.StatusConflict && e.Name == "conflict"
	}
	return false
}

func (e *StatusError) Unwrap() error {
	return e.Cause
}
