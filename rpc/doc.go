// Package rpc contains the network side of dTxn: the document server and the
// transports used to reach it.
//
// The package is organized into several subpackages:
//
//   - common: configuration structures and the logger setup shared by all
//     components.
//
//   - transport: client and server transport interfaces, with the http
//     implementation in transport/http.
//
//   - server: the CouchDB style document server backed by lib/store.
package rpc
