package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NextRev returns the revision following prev. Revisions have the form
// "<generation>-<32 hex digits>"; the generation starts at 1 for new documents.
func NextRev(prev string) string {
	return fmt.Sprintf("%d-%s", RevGeneration(prev)+1, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// RevGeneration returns the generation number of a revision, or 0 for an
// empty or malformed revision.
func RevGeneration(rev string) int {
	prefix, _, ok := strings.Cut(rev, "-")
	if !ok {
		return 0
	}
	gen, err := strconv.Atoi(prefix)
	if err != nil || gen < 0 {
		return 0
	}
	return gen
}

// CheckWrite decides whether a write naming rev may replace the stored state.
// exists and current describe what is stored under the id right now.
func CheckWrite(exists bool, current, rev string) error {
	switch {
	case !exists && rev != "":
		return ErrConflict
	case exists && rev != current:
		return ErrConflict
	default:
		return nil
	}
}
