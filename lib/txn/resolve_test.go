package txn

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dTxn/lib/db"
	"github.com/ValentinKolb/dTxn/lib/db/engines/maple"
	"github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/ValentinKolb/dTxn/lib/store/lstore"
)

func TestResolve(t *testing.T) {
	remote := DefaultConfig()
	withDefaults := DefaultConfig().With(WithCouch("http://couch:5984/", "defdb"))
	embedded := DefaultConfig().With(WithStore(lstore.NewLocalStore(func() db.DocDB { return maple.NewMapleDB(nil) })))

	tests := []struct {
		name    string
		req     Request
		cfg     Config
		wantURI string
		wantID  string
		wantErr error
	}{
		{"missing", Request{}, remote, "", "", ErrMissingLocator},
		{"uri", Request{URI: "http://couch/db/doc_a"}, remote, "http://couch/db/doc_a", "doc_a", nil},
		{"url alias", Request{URL: "http://couch/db/a%2Fb"}, remote, "http://couch/db/a%2Fb", "a/b", nil},
		{"uri and id clash", Request{URI: "http://couch/db/x", ID: "x"}, remote, "", "", ErrClashingLocator},
		{"uri and couch clash", Request{URL: "http://couch/db/x", Couch: "http://couch"}, remote, "", "", ErrClashingLocator},
		{"uri and doc clash", Request{URI: "http://couch/db/x", Doc: doc.New("x")}, remote, "", "", ErrClashingLocator},
		{"couch db id", Request{Couch: "http://couch", DB: "db", ID: "doc_a"}, remote, "http://couch/db/doc_a", "doc_a", nil},
		{"incomplete", Request{Couch: "http://couch", ID: "doc_a"}, remote, "", "", ErrIncompleteLocator},
		{"id only uses defaults", Request{ID: "doc_a"}, withDefaults, "http://couch:5984/defdb/doc_a", "doc_a", nil},
		{"defaults ignored for uri", Request{URI: "http://other/db/y"}, withDefaults, "http://other/db/y", "y", nil},
		{"id is encoded", Request{Couch: "http://couch", DB: "db", ID: "a/b c"}, remote, "http://couch/db/a%2Fb%20c", "a/b c", nil},
		{"design doc prefix kept", Request{Couch: "http://couch", DB: "db", ID: "_design/app"}, remote, "http://couch/db/_design/app", "_design/app", nil},
		{"preloaded doc gives id", Request{Doc: doc.Document{"_id": "p"}}, withDefaults, "http://couch:5984/defdb/p", "p", nil},
		{"preloaded doc without id", Request{Doc: doc.Document{"x": 1.0}}, withDefaults, "", "", ErrMissingID},
		{"preloaded doc id clash", Request{ID: "a", Doc: doc.New("b")}, withDefaults, "", "", ErrClashingLocator},
		{"embedded id", Request{ID: "a/b c"}, embedded, "", "a/b c", nil},
		{"embedded uri", Request{URI: "http://couch/db/x"}, embedded, "", "", ErrURIDisallowed},
		{"embedded needs id", Request{}, embedded, "", "", ErrMissingLocator},
		{"embedded couch without id", Request{Couch: "http://couch", DB: "db"}, embedded, "", "", ErrMissingLocator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := Resolve(tt.req, tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if !errors.Is(err, ErrInvalidRequest) {
					t.Errorf("expected %v to wrap ErrInvalidRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if loc.URI != tt.wantURI {
				t.Errorf("expected uri %q, got %q", tt.wantURI, loc.URI)
			}
			if loc.ID != tt.wantID {
				t.Errorf("expected id %q, got %q", tt.wantID, loc.ID)
			}
		})
	}
}

func TestEncodeID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a b", "a%20b"},
		{"a/b", "a%2Fb"},
		{"_design/x y", "_design/x%20y"},
		{"_local/cfg", "_local/cfg"},
		{"user:1", "user:1"},
	}
	for _, tt := range tests {
		if got := EncodeID(tt.in); got != tt.want {
			t.Errorf("EncodeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
