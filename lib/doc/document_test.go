package doc

import (
	"reflect"
	"testing"
)

// TestCloneIsDeep tests that mutating a clone never touches the original
func TestCloneIsDeep(t *testing.T) {
	orig := Document{
		"_id":    "doc_a",
		"_rev":   "1-abc",
		"val":    23.0,
		"nested": map[string]any{"list": []any{1.0, "two"}},
	}

	clone := orig.Clone()
	clone["val"] = 26.0
	clone["nested"].(map[string]any)["list"].([]any)[0] = 99.0

	if orig["val"] != 23.0 {
		t.Errorf("original val changed to %v", orig["val"])
	}
	if got := orig["nested"].(map[string]any)["list"].([]any)[0]; got != 1.0 {
		t.Errorf("original nested list changed to %v", got)
	}
}

// TestAccessors tests the _id and _rev helpers
func TestAccessors(t *testing.T) {
	d := New("doc_a")
	if d.ID() != "doc_a" {
		t.Errorf("ID() = %q, want doc_a", d.ID())
	}
	if d.HasRev() {
		t.Errorf("new document should not have a revision")
	}

	d.SetRev("2-xyz")
	if d.Rev() != "2-xyz" {
		t.Errorf("Rev() = %q, want 2-xyz", d.Rev())
	}

	d.SetRev("")
	if _, ok := d[FieldRev]; ok {
		t.Errorf("SetRev(\"\") should remove the field")
	}

	var nilDoc Document
	if nilDoc.ID() != "" || nilDoc.Rev() != "" {
		t.Errorf("nil document should have empty accessors")
	}
}

// TestDecode tests decoding of valid and invalid JSON
func TestDecode(t *testing.T) {
	d, err := Decode([]byte(`{"_id":"x","n":1}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d.ID() != "x" || d["n"] != 1.0 {
		t.Errorf("unexpected document %v", d)
	}

	for _, in := range []string{`[1,2]`, `null`, `{`} {
		if _, err := Decode([]byte(in)); err == nil {
			t.Errorf("Decode(%s) should fail", in)
		}
	}
}

// TestDiff tests field level comparison
func TestDiff(t *testing.T) {
	tests := []struct {
		name   string
		before Document
		after  Document
		fields []string
	}{
		{
			name:   "identical",
			before: Document{"_id": "a", "val": 1.0},
			after:  Document{"_id": "a", "val": 1.0},
			fields: []string{},
		},
		{
			name:   "numeric types compare by value",
			before: Document{"val": 26.0},
			after:  Document{"val": 26},
			fields: []string{},
		},
		{
			name:   "meta fields are ignored",
			before: Document{"_id": "a", "_rev": "1-a"},
			after:  Document{"_id": "b"},
			fields: []string{},
		},
		{
			name:   "added removed modified",
			before: Document{"a": 1.0, "b": "x"},
			after:  Document{"a": 2.0, "c": true},
			fields: []string{"a", "b", "c"},
		},
		{
			name:   "nested change",
			before: Document{"n": map[string]any{"x": 1.0}},
			after:  Document{"n": map[string]any{"x": 2.0}},
			fields: []string{"n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := Diff(tt.before, tt.after)
			if len(tt.fields) == 0 {
				if !changes.Empty() {
					t.Errorf("Diff() = %v, want no changes", changes)
				}
				return
			}
			if !reflect.DeepEqual(changes.Fields(), tt.fields) {
				t.Errorf("Diff() fields = %v, want %v", changes.Fields(), tt.fields)
			}
		})
	}
}

// TestDiffKinds tests that each change carries the right kind
func TestDiffKinds(t *testing.T) {
	changes := Diff(Document{"a": 1.0, "b": 1.0}, Document{"a": 2.0, "c": 1.0})
	want := map[string]ChangeKind{"a": ChangeModified, "b": ChangeRemoved, "c": ChangeAdded}
	for _, ch := range changes {
		if want[ch.Field] != ch.Kind {
			t.Errorf("field %s: kind %s, want %s", ch.Field, ch.Kind, want[ch.Field])
		}
	}
}
