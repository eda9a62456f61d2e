// Package server implements the document server: a CouchDB style HTTP api
// over a registry of named databases, each backed by a store.IStore.
//
// Routes:
//
//	GET    /                 welcome
//	GET    /_all_dbs         sorted database names
//	GET    /_metrics         prometheus metrics
//	PUT    /{db}             create database
//	GET    /{db}             database info
//	DELETE /{db}             delete database
//	GET    /{db}/{id...}     read document
//	PUT    /{db}/{id...}     write document (_rev in body or ?rev=)
//	DELETE /{db}/{id...}     delete document (?rev=)
//
// Errors use CouchDB bodies ({"error": "...", "reason": "..."}); a stale or
// missing revision is a 409 conflict, a missing document a 404 not_found.
// This is the contract the remote transaction backend relies on.
//
// When a snapshot directory is configured, every database is loaded from
// <dir>/<db>.snapshot on Init and written back on Shutdown.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Databases: []string{"users"},
//	  Engine:    common.EngineMaple,
//	  Endpoint:  "0.0.0.0:5984",
//	  LogLevel:  "info",
//	}
//
//	s := server.NewDocServer(config, http.NewHttpServerTransport())
//	if err := s.Serve(); err != nil {
//	  panic(err)
//	}
package server
