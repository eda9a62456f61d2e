package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/ValentinKolb/dTxn/lib/store"
	"github.com/VictoriaMetrics/metrics"
)

// maxBodySize limits the size of a single document
const maxBodySize = 8 << 20

// Handler returns the http handler with all routes of the document api
func (s *DocServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleWelcome)
	mux.HandleFunc("GET /_all_dbs", s.handleAllDBs)
	mux.HandleFunc("GET /_metrics", handleMetrics)

	mux.HandleFunc("PUT /{db}", s.handleCreateDB)
	mux.HandleFunc("GET /{db}", s.handleDBInfo)
	mux.HandleFunc("DELETE /{db}", s.handleDeleteDB)

	mux.HandleFunc("GET /{db}/{id...}", s.handleGetDoc)
	mux.HandleFunc("PUT /{db}/{id...}", s.handlePutDoc)
	mux.HandleFunc("DELETE /{db}/{id...}", s.handleDeleteDoc)

	return mux
}

// --------------------------------------------------------------------------
// Server level routes
// --------------------------------------------------------------------------

func (s *DocServer) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"couchdb": "Welcome",
		"version": Version,
		"vendor":  map[string]string{"name": "dtxn"},
	})
}

func (s *DocServer) handleAllDBs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.DatabaseNames())
}

func handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metrics.WritePrometheus(w, true)
}

// --------------------------------------------------------------------------
// Database routes
// --------------------------------------------------------------------------

func (s *DocServer) handleCreateDB(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("db")
	_, created, err := s.CreateDatabase(name)
	switch {
	case err != nil:
		writeError(w, store.NewError(http.StatusBadRequest, "illegal_database_name", err.Error()))
	case !created:
		writeError(w, store.NewError(http.StatusPreconditionFailed, "file_exists",
			"The database could not be created, the file already exists."))
	default:
		writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
	}
}

func (s *DocServer) handleDBInfo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("db")
	st, ok := s.Database(name)
	if !ok {
		writeError(w, noDatabase())
		return
	}
	info, err := st.GetDBInfo()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"db_name":   name,
		"doc_count": info.DocCount,
		"engine":    info.DbType,
		"metadata":  info.Metadata,
	})
}

func (s *DocServer) handleDeleteDB(w http.ResponseWriter, r *http.Request) {
	if !s.DeleteDatabase(r.PathValue("db")) {
		writeError(w, noDatabase())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// --------------------------------------------------------------------------
// Document routes
// --------------------------------------------------------------------------

func (s *DocServer) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	st, ok := s.Database(r.PathValue("db"))
	if !ok {
		writeError(w, noDatabase())
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	d, err := st.Get(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *DocServer) handlePutDoc(w http.ResponseWriter, r *http.Request) {
	st, ok := s.Database(r.PathValue("db"))
	if !ok {
		writeError(w, noDatabase())
		return
	}
	id := r.PathValue("id")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, store.NewError(http.StatusRequestEntityTooLarge, store.NameTooLarge, "the request entity is too large"))
		return
	case err != nil:
		writeError(w, store.NewError(http.StatusBadRequest, store.NameBadRequest, err.Error()))
		return
	}
	d, err := doc.Decode(body)
	if err != nil {
		writeError(w, store.NewError(http.StatusBadRequest, store.NameBadRequest, "invalid UTF-8 JSON"))
		return
	}

	switch d.ID() {
	case "":
		d.SetID(id)
	case id:
	default:
		writeError(w, store.NewError(http.StatusBadRequest, store.NameBadRequest,
			"Document id must match the id in the url."))
		return
	}
	if rev := r.URL.Query().Get("rev"); rev != "" && !d.HasRev() {
		d.SetRev(rev)
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	rev, err := st.Put(ctx, d)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "id": id, "rev": rev})
}

func (s *DocServer) handleDeleteDoc(w http.ResponseWriter, r *http.Request) {
	st, ok := s.Database(r.PathValue("db"))
	if !ok {
		writeError(w, noDatabase())
		return
	}
	id := r.PathValue("id")
	rev := r.URL.Query().Get("rev")

	ctx, cancel := s.requestContext(r)
	defer cancel()

	if err := st.Delete(ctx, id, rev); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id, "rev": rev})
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (s *DocServer) requestContext(r *http.Request) (ctx context.Context, cancel context.CancelFunc) {
	if s.config.TimeoutSecond <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), time.Duration(s.config.TimeoutSecond)*time.Second)
}

func noDatabase() *store.Error {
	return store.NewError(http.StatusNotFound, store.NameNotFound, "Database does not exist.")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Errorf("failed to write response: %v", err)
	}
}

// writeError renders store errors with their status, anything else as 500
func writeError(w http.ResponseWriter, err error) {
	var se *store.Error
	if !errors.As(err, &se) {
		Logger.Errorf("request failed: %v", err)
		se = store.NewError(http.StatusInternalServerError, store.NameInternal, err.Error())
	}
	writeJSON(w, se.Status, se.Body())
}
