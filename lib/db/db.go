package db

import (
	"context"
	"errors"
	"io"

	"github.com/ValentinKolb/dTxn/lib/doc"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
	ImplRedis Implementation = "redis"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureGet    Feature = 1 << iota // Support for Get operations
	FeaturePut                        // Support for Put operations
	FeatureDelete                     // Support for Delete operations
	FeatureSave                       // Support for Save operations
	FeatureLoad                       // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureGet:
		return "Get"
	case FeaturePut:
		return "Put"
	case FeatureDelete:
		return "Delete"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	DocCount          int            `json:"doc_count"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrConflict is returned by write operations whose revision does not match the stored one.
	ErrConflict = errors.New("document update conflict")
	// ErrMissingID is returned when a document without an _id is written.
	ErrMissingID = errors.New("document has no _id")
	// ErrUnsupported is returned for operations outside the engine's feature set.
	ErrUnsupported = errors.New("operation not supported")
)

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// DocDB defines an interface for revisioned document database implementations.
// Every stored document carries a revision token; a write is only accepted if it
// names the revision that is currently stored (or none, for a document that does not exist yet).
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type DocDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put stores the document under its _id and returns the new revision.
	// The _rev field of the document must match the stored revision, or be absent
	// if the document does not exist. Otherwise ErrConflict is returned.
	// The document passed in is not modified.
	Put(ctx context.Context, d doc.Document) (rev string, err error)

	// Delete removes the document with the given id if rev matches the stored revision.
	// Deleting a document that does not exist returns ErrConflict.
	Delete(ctx context.Context, id, rev string) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the document with the given id, including its _rev.
	// The boolean return value indicates whether the document was found.
	// The returned document is a private copy and safe to modify.
	Get(ctx context.Context, id string) (d doc.Document, loaded bool, err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}
