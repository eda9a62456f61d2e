package txn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dTxn/lib/db"
	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/ValentinKolb/dTxn/rpc/common"
	"github.com/ValentinKolb/dTxn/rpc/server"
	httptransport "github.com/ValentinKolb/dTxn/rpc/transport/http"
)

// remoteEnv is a document server with database "db" and a connected client transport
type remoteEnv struct {
	url string
	cfg Config
	// conflicts makes the next n PUT requests fail with 409
	conflicts atomic.Int32
	// failPuts makes every PUT fail with 500
	failPuts atomic.Bool
	puts     atomic.Int32
}

func newRemoteEnv(t *testing.T) *remoteEnv {
	t.Helper()

	s := server.NewDocServer(common.ServerConfig{
		Databases: []string{"db"},
		Engine:    common.EngineMaple,
	}, httptransport.NewHttpServerTransport())
	if err := s.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	env := &remoteEnv{}
	handler := s.Handler()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && strings.Count(r.URL.EscapedPath(), "/") > 1 {
			env.puts.Add(1)
			if env.failPuts.Load() {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal_server_error","reason":"boom"}`))
				return
			}
			if env.conflicts.Add(-1) >= 0 {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"conflict","reason":"Document update conflict."}`))
				return
			}
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	tr := httptransport.NewHttpClientTransport()
	if err := tr.Connect(common.ClientConfig{Endpoints: []string{ts.URL}, TimeoutSecond: 5, RetryCount: 1}); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })

	env.url = ts.URL
	env.cfg = DefaultConfig().With(
		WithCouch(ts.URL, "db"),
		WithTransport(tr),
		WithDelay(time.Millisecond),
	)
	return env
}

func (env *remoteEnv) seed(t *testing.T, id, body string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPut, env.url+"/db/"+EncodeID(id), strings.NewReader(body))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seeding %s failed: %d", id, resp.StatusCode)
	}
	env.puts.Add(-1)
}

func TestRemoteUpdate(t *testing.T) {
	env := newRemoteEnv(t)
	env.seed(t, "doc_a", `{"val":23}`)

	res, err := Do(context.Background(), Request{ID: "doc_a"}, addThree, env.cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Doc["val"] != 26.0 || res.Fetches != 1 || res.Stores != 1 {
		t.Errorf("unexpected result %+v", res)
	}
	if db.RevGeneration(res.Doc.Rev()) != 2 {
		t.Errorf("expected the second revision, got %s", res.Doc.Rev())
	}

	// read back through a no-op transaction
	res, err = Do(context.Background(), Request{URI: env.url + "/db/doc_a"}, noop, env.cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Doc["val"] != 26.0 || res.Stores != 0 {
		t.Errorf("expected the stored document without a write, got %+v", res)
	}
}

func TestRemoteCreateEncodedID(t *testing.T) {
	env := newRemoteEnv(t)

	res, err := Do(context.Background(), Request{ID: "user/1 a"}, func(_ context.Context, d doc.Document) (doc.Document, error) {
		d["name"] = "ada"
		return nil, nil
	}, env.cfg.With(WithCreate(true)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsCreate || res.Doc.ID() != "user/1 a" {
		t.Errorf("expected a create of the decoded id, got %+v", res)
	}

	res, err = Do(context.Background(), Request{URL: env.url + "/db/user%2F1%20a"}, noop, env.cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Doc["name"] != "ada" {
		t.Errorf("expected the created document, got %v", res.Doc)
	}
}

func TestRemoteConflict(t *testing.T) {
	env := newRemoteEnv(t)
	env.seed(t, "doc_a", `{"val":1}`)
	env.conflicts.Store(2)

	res, err := Do(context.Background(), Request{ID: "doc_a"}, addThree, env.cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Tries != 3 || env.puts.Load() != 3 {
		t.Errorf("expected 3 tries and puts, got %d / %d", res.Tries, env.puts.Load())
	}
	if res.Doc["val"] != 4.0 {
		t.Errorf("expected val 4, got %v", res.Doc["val"])
	}
}

func TestRemoteErrors(t *testing.T) {
	env := newRemoteEnv(t)
	env.seed(t, "doc_a", `{"val":1}`)

	t.Run("not found", func(t *testing.T) {
		_, err := Do(context.Background(), Request{ID: "nope"}, noop, env.cfg)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		env.failPuts.Store(true)
		defer env.failPuts.Store(false)

		res, err := Do(context.Background(), Request{ID: "doc_a"}, addThree, env.cfg)
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("expected a StatusError, got %v", err)
		}
		if se.Status != http.StatusInternalServerError || se.Name != "internal_server_error" || se.Reason != "boom" {
			t.Errorf("unexpected status error %+v", se)
		}
		if res.Tries != 1 {
			t.Errorf("server errors must not be retried, got %d tries", res.Tries)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		tr := httptransport.NewHttpClientTransport()
		_ = tr.Connect(common.ClientConfig{TimeoutSecond: 1, RetryCount: 1})
		cfg := DefaultConfig().With(WithTransport(tr))

		_, err := Do(context.Background(), Request{URI: "http://127.0.0.1:1/db/x"}, noop, cfg)
		if err == nil {
			t.Fatalf("expected a transport error")
		}
		var se *StatusError
		if errors.As(err, &se) {
			t.Errorf("transport errors carry no status, got %v", se)
		}
	})
}
