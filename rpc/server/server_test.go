package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/ValentinKolb/dTxn/rpc/common"
	httptransport "github.com/ValentinKolb/dTxn/rpc/transport/http"
)

func newTestServer(t *testing.T, cfg common.ServerConfig) (*DocServer, *httptest.Server) {
	t.Helper()
	if cfg.Engine == "" {
		cfg.Engine = common.EngineMaple
	}
	s := NewDocServer(cfg, httptransport.NewHttpServerTransport())
	if err := s.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func request(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	out := map[string]any{}
	_ = json.Unmarshal(data, &out)
	return resp.StatusCode, out
}

func TestDocumentRoutes(t *testing.T) {
	_, ts := newTestServer(t, common.ServerConfig{Databases: []string{"db"}})

	status, body := request(t, http.MethodGet, ts.URL+"/db/doc_a", "")
	if status != http.StatusNotFound || body["error"] != "not_found" {
		t.Fatalf("expected 404 not_found, got %d %v", status, body)
	}

	status, body = request(t, http.MethodPut, ts.URL+"/db/doc_a", `{"val":23}`)
	if status != http.StatusCreated || body["ok"] != true {
		t.Fatalf("expected 201 ok, got %d %v", status, body)
	}
	rev, _ := body["rev"].(string)

	status, body = request(t, http.MethodGet, ts.URL+"/db/doc_a", "")
	if status != http.StatusOK || body["_rev"] != rev || body["val"] != 23.0 {
		t.Fatalf("unexpected get result %d %v", status, body)
	}

	status, body = request(t, http.MethodPut, ts.URL+"/db/doc_a", `{"val":24}`)
	if status != http.StatusConflict || body["error"] != "conflict" {
		t.Errorf("expected 409 conflict for missing rev, got %d %v", status, body)
	}

	status, _ = request(t, http.MethodPut, ts.URL+"/db/doc_a", `{"_rev":"`+rev+`","val":24}`)
	if status != http.StatusCreated {
		t.Errorf("expected update with current rev to succeed, got %d", status)
	}

	status, body = request(t, http.MethodPut, ts.URL+"/db/doc_a", `{"_id":"other"}`)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for id mismatch, got %d %v", status, body)
	}

	status, _ = request(t, http.MethodPut, ts.URL+"/db/doc_a", `[1,2]`)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for non object body, got %d", status)
	}

	status, _ = request(t, http.MethodGet, ts.URL+"/nodb/doc_a", "")
	if status != http.StatusNotFound {
		t.Errorf("expected 404 for missing database, got %d", status)
	}
}

func TestBodySizeLimit(t *testing.T) {
	s, _ := newTestServer(t, common.ServerConfig{Databases: []string{"db"}})

	// padded builds a JSON document of exactly size bytes
	padded := func(size int) string {
		const frame = `{"pad":""}`
		return `{"pad":"` + strings.Repeat("x", size-len(frame)) + `"}`
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"at limit", padded(maxBodySize), http.StatusCreated, ""},
		{"over limit", padded(maxBodySize + 1), http.StatusRequestEntityTooLarge, "too_large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/db/big_"+strings.ReplaceAll(tt.name, " ", "_"), strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantError == "" {
				return
			}
			out := map[string]any{}
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
				t.Fatalf("invalid error body: %v", err)
			}
			if out["error"] != tt.wantError {
				t.Errorf("expected error %q, got %v", tt.wantError, out)
			}
		})
	}
}

func TestEncodedIDs(t *testing.T) {
	_, ts := newTestServer(t, common.ServerConfig{Databases: []string{"db"}})

	status, _ := request(t, http.MethodPut, ts.URL+"/db/a%2Fb%20c", `{}`)
	if status != http.StatusCreated {
		t.Fatalf("put failed: %d", status)
	}
	status, body := request(t, http.MethodGet, ts.URL+"/db/a%2Fb%20c", "")
	if status != http.StatusOK || body["_id"] != "a/b c" {
		t.Errorf("expected decoded id, got %d %v", status, body)
	}

	status, _ = request(t, http.MethodPut, ts.URL+"/db/_design/app", `{}`)
	if status != http.StatusCreated {
		t.Errorf("design document put failed: %d", status)
	}
}

func TestDeleteDoc(t *testing.T) {
	_, ts := newTestServer(t, common.ServerConfig{Databases: []string{"db"}})

	_, body := request(t, http.MethodPut, ts.URL+"/db/x", `{}`)
	rev := body["rev"].(string)

	status, _ := request(t, http.MethodDelete, ts.URL+"/db/x?rev=1-wrong", "")
	if status != http.StatusConflict {
		t.Errorf("expected 409 for stale delete, got %d", status)
	}
	status, _ = request(t, http.MethodDelete, ts.URL+"/db/x?rev="+rev, "")
	if status != http.StatusOK {
		t.Errorf("expected delete to succeed, got %d", status)
	}
	status, _ = request(t, http.MethodGet, ts.URL+"/db/x", "")
	if status != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", status)
	}
}

func TestDatabaseRoutes(t *testing.T) {
	s, ts := newTestServer(t, common.ServerConfig{})

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"create", http.MethodPut, "/users", http.StatusCreated},
		{"create again", http.MethodPut, "/users", http.StatusPreconditionFailed},
		{"info", http.MethodGet, "/users", http.StatusOK},
		{"info missing", http.MethodGet, "/nope", http.StatusNotFound},
		{"delete", http.MethodDelete, "/users", http.StatusOK},
		{"delete missing", http.MethodDelete, "/users", http.StatusNotFound},
		{"welcome", http.MethodGet, "/", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := request(t, tt.method, ts.URL+tt.path, "")
			if status != tt.status {
				t.Errorf("expected %d, got %d %v", tt.status, status, body)
			}
		})
	}

	_, _, _ = s.CreateDatabase("b")
	_, _, _ = s.CreateDatabase("a")
	resp, err := http.Get(ts.URL + "/_all_dbs")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var names []string
	_ = json.NewDecoder(resp.Body).Decode(&names)
	if strings.Join(names, ",") != "a,b" {
		t.Errorf("expected sorted database names, got %v", names)
	}

	if _, _, err := s.CreateDatabase("_bad"); err == nil {
		t.Errorf("expected invalid name to be rejected")
	}
}

func TestMetricsRoute(t *testing.T) {
	_, ts := newTestServer(t, common.ServerConfig{})
	resp, err := http.Get(ts.URL + "/_metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSnapshots(t *testing.T) {
	dir := t.TempDir()
	cfg := common.ServerConfig{Databases: []string{"db"}, SnapshotDir: dir}

	s, _ := newTestServer(t, cfg)
	st, _ := s.Database("db")
	if _, err := st.Put(context.Background(), doc.Document{"_id": "kept", "n": 1.0}); err != nil {
		t.Fatal(err)
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "db"+snapshotExt)); err != nil {
		t.Fatalf("expected snapshot file: %v", err)
	}

	restored, _ := newTestServer(t, common.ServerConfig{SnapshotDir: dir})
	st, ok := restored.Database("db")
	if !ok {
		t.Fatalf("expected database to be restored from snapshot")
	}
	d, err := st.Get(context.Background(), "kept")
	if err != nil || d["n"] != 1.0 {
		t.Errorf("expected restored document, got %v %v", d, err)
	}
}
