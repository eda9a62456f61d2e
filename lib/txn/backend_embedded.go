package txn

import (
	"context"
	"errors"
	"net/http"

	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/ValentinKolb/dTxn/lib/store"
)

// embeddedBackend calls a store.IStore in the same process.
// Ids are passed to the store as is, they are never percent-encoded.
type embeddedBackend struct {
	id    string
	store store.IStore
}

func (b *embeddedBackend) Get(ctx context.Context) (Reply, error) {
	Logger.Debugf("fetch doc: %s", b.id)
	d, err := b.store.Get(ctx, b.id)
	if err != nil {
		return replyFor(err)
	}
	return Reply{Status: http.StatusOK, Body: d}, nil
}

func (b *embeddedBackend) Put(ctx context.Context, d doc.Document) (Reply, error) {
	rev, err := b.store.Put(ctx, d)
	if err != nil {
		return replyFor(err)
	}
	return Reply{
		Status: http.StatusCreated,
		Body:   doc.Document{"ok": true, "id": d.ID(), "rev": rev},
	}, nil
}

// replyFor maps store errors carrying a status and a name onto the canonical
// reply. Errors without them are unknown and passed on with an empty reply.
func replyFor(err error) (Reply, error) {
	var se *store.Error
	if !errors.As(err, &se) || se.Status == 0 || se.Name == "" {
		return Reply{}, err
	}
	reply := Reply{Status: se.Status, Body: se.Body()}
	return reply, &StatusError{Status: se.Status, Name: se.Name, Reason: se.Reason, Cause: err}
}
