package maple

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ValentinKolb/dTxn/lib/db"
	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicLine    = "MAPLEDOC" // File format identifier
	mapleVersion = 1          // Snapshot format version
	maxLineSize  = 64 << 20   // Largest document accepted by Load
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// entry is the stored form of a document. The body is kept encoded so that
// callers can never alias stored state.
type entry struct {
	Rev  string
	Body []byte
}

// mapleImpl implements db.DocDB on a concurrent map
type mapleImpl struct {
	data   *xsync.MapOf[string, entry]
	writes atomic.Uint64 // number of accepted writes
	closed atomic.Bool
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	// InitialCapacity pre-sizes the map (0 = xsync default)
	InitialCapacity int
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{}
}

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.DocDB {
	if opts == nil {
		opts = DefaultOptions()
	}

	var data *xsync.MapOf[string, entry]
	if opts.InitialCapacity > 0 {
		data = xsync.NewMapOf[string, entry](xsync.WithPresize(opts.InitialCapacity))
	} else {
		data = xsync.NewMapOf[string, entry]()
	}

	return &mapleImpl{data: data}
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Put stores the document if its revision matches the stored one.
//
// Thread-safety: the revision check and the write happen inside a single
// xsync Compute call and are therefore atomic per document.
func (maple *mapleImpl) Put(_ context.Context, d doc.Document) (string, error) {
	if err := maple.checkOpen(); err != nil {
		return "", err
	}
	id := d.ID()
	if id == "" {
		return "", db.ErrMissingID
	}

	var (
		newRev string
		err    error
	)
	maple.data.Compute(id, func(old entry, loaded bool) (entry, bool) {
		if err = db.CheckWrite(loaded, old.Rev, d.Rev()); err != nil {
			return old, !loaded
		}

		newRev = db.NextRev(old.Rev)
		stored := d.Clone()
		stored.SetRev(newRev)

		var body []byte
		if body, err = stored.Encode(); err != nil {
			return old, !loaded
		}
		return entry{Rev: newRev, Body: body}, false
	})
	if err != nil {
		return "", err
	}

	maple.writes.Add(1)
	return newRev, nil
}

// Delete removes the document if rev matches the stored revision.
func (maple *mapleImpl) Delete(_ context.Context, id, rev string) error {
	if err := maple.checkOpen(); err != nil {
		return err
	}

	var err error
	maple.data.Compute(id, func(old entry, loaded bool) (entry, bool) {
		if !loaded {
			err = db.ErrConflict
			return old, true
		}
		if err = db.CheckWrite(true, old.Rev, rev); err != nil {
			return old, false
		}
		return old, true
	})
	if err == nil {
		maple.writes.Add(1)
	}
	return err
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get returns a freshly decoded copy of the stored document.
func (maple *mapleImpl) Get(_ context.Context, id string) (doc.Document, bool, error) {
	if err := maple.checkOpen(); err != nil {
		return nil, false, err
	}
	e, ok := maple.data.Load(id)
	if !ok {
		return nil, false, nil
	}
	d, err := doc.Decode(e.Body)
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a header line followed by one JSON document per line.
// Concurrent writes are allowed; the snapshot is fuzzy.
func (maple *mapleImpl) Save(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 1024*1024)

	if _, err := fmt.Fprintf(bw, "%s %d\n", magicLine, mapleVersion); err != nil {
		return err
	}

	var err error
	maple.data.Range(func(_ string, e entry) bool {
		if _, err = bw.Write(e.Body); err != nil {
			return false
		}
		err = bw.WriteByte('\n')
		return err == nil
	})
	if err != nil {
		return err
	}

	return bw.Flush()
}

// Load replaces the database content with the snapshot read from r.
func (maple *mapleImpl) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return err
		}
		return fmt.Errorf("maple: empty snapshot")
	}
	var version int
	if _, err := fmt.Sscanf(scanner.Text(), magicLine+" %d", &version); err != nil {
		return fmt.Errorf("maple: invalid snapshot header: %w", err)
	}
	if version != mapleVersion {
		return fmt.Errorf("maple: unsupported snapshot version %d", version)
	}

	loaded := make(map[string]entry)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		d, err := doc.Decode(line)
		if err != nil {
			return fmt.Errorf("maple: %w", err)
		}
		if d.ID() == "" {
			return fmt.Errorf("maple: snapshot contains a document without _id")
		}
		body := make([]byte, len(line))
		copy(body, line)
		loaded[d.ID()] = entry{Rev: d.Rev(), Body: body}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	maple.data.Clear()
	for id, e := range loaded {
		maple.data.Store(id, e)
	}
	return nil
}

// --------------------------------------------------------------------------
// Info and Features
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	sizeBytes := 0
	maple.data.Range(func(_ string, e entry) bool {
		sizeBytes += len(e.Body)
		return true
	})

	meta := &struct {
		Writes    uint64 `json:"writes"`
		SizeBytes int    `json:"size_bytes"`
	}{
		Writes:    maple.writes.Load(),
		SizeBytes: sizeBytes,
	}

	return db.DatabaseInfo{
		DocCount: maple.data.Size(),
		DbType:   db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeatureGet, db.FeaturePut, db.FeatureDelete,
			db.FeatureSave, db.FeatureLoad,
		},
		Metadata: meta,
	}
}

// SupportsFeature checks if this implementation supports a specific DocDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureGet |
		db.FeaturePut |
		db.FeatureDelete |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close marks the database as closed; later operations fail.
func (maple *mapleImpl) Close() error {
	maple.closed.Store(true)
	return nil
}

func (maple *mapleImpl) checkOpen() error {
	if maple.closed.Load() {
		return fmt.Errorf("maple: database is closed")
	}
	return nil
}
