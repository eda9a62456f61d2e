package transport

import (
	"context"
	"net/http"

	"github.com/ValentinKolb/dTxn/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IDocServerTransport is the interface for the server side of the document protocol.
// The routing of requests is done by the registered handler, the transport only
// owns the listener.
type IDocServerTransport interface {
	// RegisterHandler registers the handler serving all requests
	RegisterHandler(handler http.Handler)
	// Listen starts the transport layer and blocks until it is shut down
	Listen(config common.ServerConfig) error
	// Shutdown stops the listener gracefully
	Shutdown(ctx context.Context) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IDocClientTransport is the interface for the client side of the document protocol
type IDocClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Do sends a request and returns the status code and body of the response.
	// uri is either absolute ("http://host:port/db/id") or a path ("/db/id")
	// that is resolved against one of the configured endpoints.
	// A non-2xx status is not an error at this level.
	Do(ctx context.Context, method, uri string, body []byte) (status int, resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
