package doc

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// ChangeKind describes how a top-level field changed between two documents.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeRemoved
	ChangeModified
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeModified:
		return "modified"
	default:
		return "unknown"
	}
}

// Change is a single field difference.
type Change struct {
	Field string
	Kind  ChangeKind
	Old   any
	New   any
}

// Changes is the result of Diff, ordered by field name.
type Changes []Change

// Empty reports whether no field changed.
func (c Changes) Empty() bool {
	return len(c) == 0
}

// Fields returns the names of all changed fields.
func (c Changes) Fields() []string {
	out := make([]string, len(c))
	for i, ch := range c {
		out[i] = ch.Field
	}
	return out
}

func (c Changes) String() string {
	parts := make([]string, len(c))
	for i, ch := range c {
		parts[i] = ch.Kind.String() + " " + ch.Field
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Diff compares two documents field by field. The identity and revision
// fields are not compared since the transaction engine restores both.
// Values are compared by their JSON encoding so 26 and 26.0 are equal.
func Diff(before, after Document) Changes {
	var changes Changes

	for k, old := range before {
		if isMetaField(k) {
			continue
		}
		cur, ok := after[k]
		if !ok {
			changes = append(changes, Change{Field: k, Kind: ChangeRemoved, Old: old})
			continue
		}
		if !jsonEqual(old, cur) {
			changes = append(changes, Change{Field: k, Kind: ChangeModified, Old: old, New: cur})
		}
	}
	for k, cur := range after {
		if isMetaField(k) {
			continue
		}
		if _, ok := before[k]; !ok {
			changes = append(changes, Change{Field: k, Kind: ChangeAdded, New: cur})
		}
	}

	sort.Slice(changes, func(i, j int) bool { return changes[i].Field < changes[j].Field })
	return changes
}

func isMetaField(k string) bool {
	return k == FieldID || k == FieldRev
}

func jsonEqual(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ab, bb)
}
