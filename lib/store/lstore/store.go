package lstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ValentinKolb/dTxn/lib/db"
	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/ValentinKolb/dTxn/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

type storeImpl struct {
	db db.DocDB
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db: factory(),
	}
}

// toStoreError maps engine errors to store errors. Unknown errors are wrapped
// and passed on so callers can still inspect them.
func toStoreError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrConflict):
		return store.ErrConflict()
	case errors.Is(err, db.ErrMissingID):
		return store.NewError(http.StatusBadRequest, store.NameBadRequest, "Document must have an _id.")
	case errors.Is(err, db.ErrUnsupported):
		return unsupported(op)
	default:
		Logger.Errorf("%s failed: %v", op, err)
		return fmt.Errorf("%s: %w", op, err)
	}
}

func unsupported(op string) *store.Error {
	return store.NewError(http.StatusNotImplemented, store.NameNotImplemented, op+" operation is not supported")
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(ctx context.Context, id string) (doc.Document, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, unsupported("Get")
	}
	d, ok, err := s.db.Get(ctx, id)
	if err != nil {
		return nil, toStoreError("Get", err)
	}
	if !ok {
		return nil, store.ErrNotFound()
	}
	return d, nil
}

func (s *storeImpl) Put(ctx context.Context, d doc.Document) (string, error) {
	if !s.db.SupportsFeature(db.FeaturePut) {
		return "", unsupported("Put")
	}
	rev, err := s.db.Put(ctx, d)
	if err != nil {
		Logger.Debugf("put %q rejected: %v", d.ID(), err)
		return "", toStoreError("Put", err)
	}
	return rev, nil
}

func (s *storeImpl) Delete(ctx context.Context, id, rev string) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return unsupported("Delete")
	}
	if _, ok, err := s.db.Get(ctx, id); err == nil && !ok {
		return store.ErrNotFound()
	}
	return toStoreError("Delete", s.db.Delete(ctx, id, rev))
}

func (s *storeImpl) Save(w io.Writer) error {
	if !s.db.SupportsFeature(db.FeatureSave) {
		return unsupported("Save")
	}
	return toStoreError("Save", s.db.Save(w))
}

func (s *storeImpl) Load(r io.Reader) error {
	if !s.db.SupportsFeature(db.FeatureLoad) {
		return unsupported("Load")
	}
	return toStoreError("Load", s.db.Load(r))
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

func (s *storeImpl) Close() error {
	return s.db.Close()
}
