package doc

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Field Names
// --------------------------------------------------------------------------

const (
	FieldID        = "_id"
	FieldRev       = "_rev"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// --------------------------------------------------------------------------
// Document Type
// --------------------------------------------------------------------------

// Document is a JSON object with an identity and an optional revision.
type Document map[string]any

// New returns a document containing only the given id.
func New(id string) Document {
	return Document{FieldID: id}
}

// ID returns the identity of the document or "" if it has none.
func (d Document) ID() string {
	return d.stringField(FieldID)
}

// Rev returns the revision token of the document or "" if it has none.
func (d Document) Rev() string {
	return d.stringField(FieldRev)
}

// HasRev reports whether the document carries a revision token.
func (d Document) HasRev() bool {
	return d.Rev() != ""
}

// SetID overwrites the identity of the document.
func (d Document) SetID(id string) {
	d[FieldID] = id
}

// SetRev overwrites the revision of the document. An empty rev removes the field.
func (d Document) SetRev(rev string) {
	if rev == "" {
		delete(d, FieldRev)
		return
	}
	d[FieldRev] = rev
}

func (d Document) stringField(name string) string {
	if d == nil {
		return ""
	}
	s, _ := d[name].(string)
	return s
}

// String renders the document as JSON. Invalid documents render their Go representation.
func (d Document) String() string {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(d))
	}
	return string(b)
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Decode parses a JSON object into a document.
func Decode(data []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if d == nil {
		return nil, fmt.Errorf("decode document: not a JSON object")
	}
	return d, nil
}

// Encode serializes the document as JSON.
func (d Document) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// --------------------------------------------------------------------------
// Deep Copy
// --------------------------------------------------------------------------

// Clone returns a deep copy of the document. Nested maps and slices are copied,
// values of other types are copied through a JSON round trip.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneMap(d)
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case nil, string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return val
	case Document:
		return Document(cloneMap(val))
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return val
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			return val
		}
		return out
	}
}
