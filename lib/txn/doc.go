// Package txn runs optimistic read-modify-write transactions against a
// revisioned document store.
//
// A transaction fetches the current revision of a document, hands it to an
// Operation and writes the result back with the revision it was read at. If
// the store answers with a conflict (somebody else wrote in between) the
// transaction starts over, at most Config.MaxTries times, waiting
// Delay * 2^tries between tries. Each run of the operation is bounded by
// Config.Timeout. An operation that changes nothing on an existing document
// does not cause a write.
//
// The same engine drives two backends:
//
//   - remote: HTTP GET/PUT against a CouchDB compatible server, addressed by
//     URI/URL or by Couch + DB + ID. Ids are percent-encoded (EncodeID).
//   - embedded: a store.IStore in the same process, selected with WithStore
//     and addressed by ID only. Ids are passed on unencoded.
//
// Usage Example:
//
//	cfg := txn.DefaultConfig().With(txn.WithCouch("http://localhost:5984", "users"))
//
//	res, err := txn.Do(ctx, txn.Request{ID: "user:1"}, func(ctx context.Context, d doc.Document) (doc.Document, error) {
//		d["logins"] = d["logins"].(float64) + 1
//		return nil, nil
//	}, cfg)
//
// Every transaction ends with exactly one outcome: the stored document, or an
// error matching ErrNotFound, ErrTimeout, ErrCancelled, ErrExhausted
// (*ExhaustedError), a *StatusError, or whatever the operation returned.
// Lifecycle events can be observed with WithObserver.
//
// Each transaction runs its state on a single goroutine; timers, backend
// calls and the operation report back to it through a channel, so no locks
// are involved.
package txn
