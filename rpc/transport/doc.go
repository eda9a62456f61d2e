// Package transport defines the interfaces for moving document protocol
// requests between clients and the document server.
//
// Key Components:
//
//   - IDocClientTransport: client side, sends a method/uri/body triple and
//     returns the raw status and body. Status interpretation (404 not_found,
//     409 conflict, ...) is left to the caller.
//
//   - IDocServerTransport: server side, owns the listener and hands every
//     request to a registered http.Handler.
//
// The http subpackage contains the implementation used by the server and
// the transaction engine.
package transport
