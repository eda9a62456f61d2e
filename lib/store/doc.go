// Package store provides a high-level interface for revisioned document storage
// with unified error handling.
// It serves as an abstraction layer over the lower-level db.DocDB implementations,
// translating engine errors into status coded store errors.
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining Get, Put and Delete on
//     documents identified by _id and versioned by _rev. The HTTP document server
//     and the embedded transaction backend both talk to an IStore, so transactions
//     behave the same whether they run in process or over the network.
//
//   - Error System: Store errors carry a status code plus the "error" and
//     "reason" members known from CouchDB style error bodies, e.g.
//     404/not_found/missing or 409/conflict/Document update conflict.
//
//   - DBFactory: A function type that abstracts the creation of the underlying
//     db.DocDB instance.
//
// Implementations:
//
//   - Local Store (lstore): wraps a db.DocDB instance in the current process.
//     Available in the "github.com/ValentinKolb/dTxn/lib/store/lstore" package.
package store
