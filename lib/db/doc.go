// Package db defines the interface for the revisioned document engines that back
// the embedded store.
//
// The DocDB interface covers three groups of operations:
//
//   - Write operations (Put, Delete) guarded by revision tokens. A write that names
//     a stale revision, or a create that collides with an existing document,
//     fails with ErrConflict. This is the only concurrency control of the system.
//   - Query operations (Get) returning private copies of the stored documents.
//   - Persistence (Save, Load) for engines that keep their state in memory.
//
// Revisions are generated with NextRev and have the CouchDB shape
// "<generation>-<random hex>". CheckWrite contains the acceptance rule shared by
// all engines.
//
// Engines:
//
//   - maple: in-memory engine on top of a concurrent xsync map
//     ("github.com/ValentinKolb/dTxn/lib/db/engines/maple")
//   - redis: engine storing documents in Redis, using WATCH/MULTI for the
//     revision check ("github.com/ValentinKolb/dTxn/lib/db/engines/redis")
//
// The testing subpackage provides RunDocDBTests, a suite every engine must pass.
package db
