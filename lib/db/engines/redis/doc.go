// Package redis implements db.DocDB on top of a redis server using go-redis.
//
// Writes follow the optimistic WATCH/MULTI/EXEC pattern: the current
// revision is read under WATCH, checked, and the new body is written in a
// transaction pipeline. If another client touches the key in between, redis
// aborts EXEC and the engine reports db.ErrConflict, exactly as for a stale
// _rev.
//
// Save and Load are not supported.
package redis
