package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ValentinKolb/dTxn/lib/db"
	"github.com/ValentinKolb/dTxn/lib/doc"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.DocDB

// IStore is the generic interface for interacting with a revisioned document store.
// Failures that have a document-database meaning (missing document, conflict, ...)
// are returned as *Error; anything else is an engine or transport failure.
type IStore interface {
	// Get returns the document with the given id.
	// A missing document is reported as an *Error with status 404 and name "not_found".
	Get(ctx context.Context, id string) (d doc.Document, err error)
	// Put writes the document under its _id and returns the new revision.
	// A _rev that does not match the stored one is reported as status 409 "conflict".
	Put(ctx context.Context, d doc.Document) (rev string, err error)
	// Delete removes the document if rev is its current revision.
	Delete(ctx context.Context, id, rev string) (err error)
	// Save writes a snapshot of the store, if the engine supports it.
	Save(w io.Writer) (err error)
	// Load replaces the store content with a snapshot, if the engine supports it.
	Load(r io.Reader) (err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
	// Close releases the underlying database.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error names as used in the error bodies of the document protocol
const (
	NameBadRequest     = "bad_request"
	NameNotFound       = "not_found"
	NameConflict       = "conflict"
	NameTooLarge       = "too_large"
	NameNotImplemented = "not_implemented"
	NameInternal       = "internal_server_error"
)

// Error is a document store failure. Status is the HTTP-style status code,
// Name and Reason are the "error" and "reason" members of the error body.
type Error struct {
	Status int
	Name   string
	Reason string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("store error %d (%s): %s", e.Status, e.Name, e.Reason)
}

// Body returns the error as a document body
func (e *Error) Body() doc.Document {
	return doc.Document{"error": e.Name, "reason": e.Reason}
}

// NewError creates a new Error
func NewError(status int, name, reason string) *Error {
	return &Error{
		Status: status,
		Name:   name,
		Reason: reason,
	}
}

// ErrNotFound returns the error for a missing document
func ErrNotFound() *Error {
	return NewError(http.StatusNotFound, NameNotFound, "missing")
}

// ErrConflict returns the error for a revision mismatch
func ErrConflict() *Error {
	return NewError(http.StatusConflict, NameConflict, "Document update conflict.")
}

// IsNotFound reports whether err is a store error for a missing document
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Name == NameNotFound
}

// IsConflict reports whether err is a store error for a revision conflict
func IsConflict(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Name == NameConflict
}

// IsNotImplemented reports whether err is a store error for an unsupported operation
func IsNotImplemented(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Name == NameNotImplemented
}
