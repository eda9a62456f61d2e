// Package maple implements an in-memory db.DocDB engine.
//
// Documents are stored JSON encoded in a single xsync.MapOf keyed by _id.
// Revision checks and writes run inside MapOf.Compute, which locks the
// bucket of the id, so concurrent writers on the same document are
// serialised without a global lock.
//
// Save and Load use a line based snapshot: a "MAPLEDOC <version>" header
// followed by one JSON document per line.
package maple
