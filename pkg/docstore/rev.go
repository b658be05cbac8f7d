package docstore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NextRev returns the revision that follows prev. Revisions look like
// "<generation>-<random suffix>"; the generation starts at 1.
func NextRev(prev string) string {
	return fmt.Sprintf("%d-%s", RevGeneration(prev)+1, strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}

// RevGeneration returns the numeric prefix of rev, or 0 when rev is empty
// or malformed.
func RevGeneration(rev string) uint64 {
	head, _, ok := strings.Cut(rev, "-")
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(head, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
