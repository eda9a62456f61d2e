package txn

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ValentinKolb/dTxn/lib/doc"
)

// --------------------------------------------------------------------------
// Request and Locator
// --------------------------------------------------------------------------

// Request addresses the document of a transaction. Exactly one of the forms
// URI/URL, Couch/DB/ID (Couch and DB may come from the Config) or a preloaded
// Doc must be used. A preloaded Doc provides the id and still needs Couch and
// DB for the remote backend.
type Request struct {
	URI string
	URL string

	Couch string
	DB    string
	ID    string

	// Doc is used instead of the first fetch
	Doc doc.Document

	// Name labels the transaction in logs and events (default: the operation's function name)
	Name string
}

// Locator is the resolved address of a document
type Locator struct {
	// URI is the full document uri (remote backend only)
	URI string
	// ID is the decoded document id
	ID string
	// Embedded is set for the embedded backend
	Embedded bool
}

func (l Locator) String() string {
	if l.Embedded {
		return l.ID
	}
	return l.URI
}

// --------------------------------------------------------------------------
// Resolver
// --------------------------------------------------------------------------

// Resolve validates the addressing of req and returns the canonical locator.
// It never performs I/O.
func Resolve(req Request, cfg Config) (Locator, error) {
	id := req.ID
	if req.Doc != nil {
		docID := req.Doc.ID()
		if docID == "" {
			return Locator{}, fmt.Errorf("%w: preloaded %w", ErrInvalidRequest, ErrMissingID)
		}
		if id != "" && id != docID {
			return Locator{}, fmt.Errorf("%w: id %q differs from doc._id %q", ErrClashingLocator, id, docID)
		}
		id = docID
	}

	uri := req.URI
	if uri == "" {
		uri = req.URL
	}
	hasURI := uri != ""
	hasCouch := req.Couch != "" || req.DB != "" || id != ""

	if cfg.Embedded || cfg.Store != nil {
		if hasURI {
			return Locator{}, ErrURIDisallowed
		}
		if id == "" {
			return Locator{}, fmt.Errorf("%w: the embedded backend needs an id", ErrMissingLocator)
		}
		return Locator{ID: id, Embedded: true}, nil
	}

	switch {
	case !hasURI && !hasCouch:
		return Locator{}, ErrMissingLocator
	case hasURI && hasCouch:
		return Locator{}, ErrClashingLocator
	case hasURI:
		docID, err := uriToID(uri)
		if err != nil {
			return Locator{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		return Locator{URI: uri, ID: docID}, nil
	}

	couch := firstNonEmpty(req.Couch, cfg.Couch)
	db := firstNonEmpty(req.DB, cfg.DB)
	if couch == "" || db == "" || id == "" {
		return Locator{}, ErrIncompleteLocator
	}

	return Locator{
		URI: strings.TrimRight(couch, "/") + "/" + db + "/" + EncodeID(id),
		ID:  id,
	}, nil
}

// EncodeID percent-encodes a document id for use in a uri path.
// The slash after the _design and _local prefixes is kept.
func EncodeID(id string) string {
	for _, prefix := range []string{"_design/", "_local/"} {
		if rest, ok := strings.CutPrefix(id, prefix); ok {
			return prefix + url.PathEscape(rest)
		}
	}
	return url.PathEscape(id)
}

// uriToID returns the decoded last path segment of a document uri
func uriToID(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	path := u.EscapedPath()
	segment := path[strings.LastIndex(path, "/")+1:]
	if segment == "" {
		return "", fmt.Errorf("uri %q has no document id", uri)
	}
	return url.PathUnescape(segment)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
