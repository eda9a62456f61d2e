// Package lstore implements a local, single-node document store based on the
// store.IStore interface. It is a thin wrapper around any db.DocDB
// implementation that checks feature support and converts engine errors into
// store errors.
//
// Error mapping:
//
//   - db.ErrConflict    -> 409 conflict "Document update conflict."
//   - missing document  -> 404 not_found "missing"
//   - db.ErrMissingID   -> 400 bad_request
//   - db.ErrUnsupported -> 501 not_implemented
//
// Any other engine failure (a lost redis connection, say) is wrapped and
// returned as is.
//
// Usage Example:
//
//	factory := func() db.DocDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	rev, err := s.Put(ctx, doc.Document{"_id": "user:1", "name": "Ada"})
//	d, err := s.Get(ctx, "user:1")
package lstore
