package txn

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/ValentinKolb/dTxn/rpc/transport"
)

// remoteBackend talks to a document server over a client transport
type remoteBackend struct {
	uri       string
	transport transport.IDocClientTransport
}

func (b *remoteBackend) Get(ctx context.Context) (Reply, error) {
	Logger.Debugf("fetch doc: %s", b.uri)
	return b.do(ctx, http.MethodGet, nil)
}

func (b *remoteBackend) Put(ctx context.Context, d doc.Document) (Reply, error) {
	body, err := d.Encode()
	if err != nil {
		return Reply{}, err
	}
	Logger.Debugf("update request: PUT %s %s", b.uri, body)
	return b.do(ctx, http.MethodPut, body)
}

func (b *remoteBackend) do(ctx context.Context, method string, body []byte) (Reply, error) {
	status, resp, err := b.transport.Do(ctx, method, b.uri, body)
	if err != nil {
		return Reply{}, err
	}

	var parsed doc.Document
	if len(resp) > 0 {
		if parsed, err = doc.Decode(resp); err != nil {
			return Reply{Status: status}, fmt.Errorf("%s %s: bad response body (status %d): %w", method, b.uri, status, err)
		}
	}
	reply := Reply{Status: status, Body: parsed}

	if status < 200 || status > 299 {
		reason, _ := parsed["reason"].(string)
		return reply, &StatusError{Status: status, Name: reply.ErrorName(), Reason: reason}
	}
	return reply, nil
}
