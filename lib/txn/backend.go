package txn

import (
	"context"
	"net/http"
	"sync"

	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/ValentinKolb/dTxn/rpc/common"
	"github.com/ValentinKolb/dTxn/rpc/transport"
	httptransport "github.com/ValentinKolb/dTxn/rpc/transport/http"
)

// Reply is the canonical result of a backend call: a status code and a JSON body.
// For failures the body is an error body ({"error": "...", "reason": "..."}).
type Reply struct {
	Status int
	Body   doc.Document
}

// ErrorName returns the "error" member of the body
func (r Reply) ErrorName() string {
	name, _ := r.Body["error"].(string)
	return name
}

// IsNotFound reports the structured not-found reply
func (r Reply) IsNotFound() bool {
	return r.Status == http.StatusNotFound && r.ErrorName() == "not_found"
}

// IsConflict reports the structured conflict reply
func (r Reply) IsConflict() bool {
	return r.Status == http.StatusConflict && r.ErrorName() == "conflict"
}

// Backend fetches and stores the document a transaction is bound to.
// Not-found and conflict are reported as a non-nil error together with the
// matching Reply; any other error may come with an empty Reply.
type Backend interface {
	Get(ctx context.Context) (Reply, error)
	Put(ctx context.Context, d doc.Document) (Reply, error)
}

// newBackend creates the backend for a resolved locator
func newBackend(loc Locator, cfg Config) Backend {
	if loc.Embedded {
		return &embeddedBackend{id: loc.ID, store: cfg.Store}
	}
	tr := cfg.Transport
	if tr == nil {
		tr = defaultTransport()
	}
	return &remoteBackend{uri: loc.URI, transport: tr}
}

// defaultTransport is shared by all remote transactions without an explicit transport
var defaultTransport = sync.OnceValue(func() transport.IDocClientTransport {
	tr := httptransport.NewHttpClientTransport()
	if err := tr.Connect(common.ClientConfig{TimeoutSecond: 60, RetryCount: 3}); err != nil {
		Logger.Errorf("failed to set up default transport: %v", err)
	}
	return tr
})
