package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ValentinKolb/dTxn/rpc/common"
)

func TestClientDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/db/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not_found","reason":"missing"}`))
		default:
			w.Header().Set("X-Method", r.Method)
			_, _ = w.Write(body)
		}
	}))
	defer srv.Close()

	tr := NewHttpClientTransport()
	if err := tr.Connect(common.ClientConfig{Endpoints: []string{srv.URL}, TimeoutSecond: 5, RetryCount: 2}); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	defer tr.Close()
	ctx := context.Background()

	tests := []struct {
		name       string
		method     string
		uri        string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"relative put echoes body", http.MethodPut, "/db/doc", `{"_id":"doc"}`, 200, `{"_id":"doc"}`},
		{"absolute uri", http.MethodGet, srv.URL + "/db/doc", "", 200, ""},
		{"status is not an error", http.MethodGet, "/db/missing", "", 404, `{"error":"not_found","reason":"missing"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body []byte
			if tt.body != "" {
				body = []byte(tt.body)
			}
			status, resp, err := tr.Do(ctx, tt.method, tt.uri, body)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if status != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, status)
			}
			if string(resp) != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, resp)
			}
		})
	}
}

func TestClientErrors(t *testing.T) {
	tr := NewHttpClientTransport()
	if _, _, err := tr.Do(context.Background(), http.MethodGet, "/x", nil); err == nil {
		t.Errorf("expected error before Connect")
	}

	_ = tr.Connect(common.ClientConfig{TimeoutSecond: 1, RetryCount: 1})
	_, _, err := tr.Do(context.Background(), http.MethodGet, "/x", nil)
	if err == nil || !strings.Contains(err.Error(), "no endpoint") {
		t.Errorf("expected missing endpoint error, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	h := loggerMiddleware(metricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("expected status to pass through, got %d", rec.Code)
	}
}
