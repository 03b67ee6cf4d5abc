package store

import (
	"fmt"
	"sort"

	"github.com/refscreen/refscreen/internal/record"
)

// DuplicateOriginError reports an origin token attached to more than one
// current record: an unresolved double-merge. It is a data-integrity defect
// and is never auto-repaired.
type DuplicateOriginError struct {
	Token string
	IDs   []string
}

func (e *DuplicateOriginError) Error() string {
	return fmt.Sprintf("origin %s attached to multiple records: %v", e.Token, e.IDs)
}

// CheckOriginConsistency verifies that no two distinct current records share
// an origin token. Returns the first violating token (smallest token, ids
// sorted) so failures are reproducible.
func CheckOriginConsistency(records []*record.Record) error {
	owners := make(map[string][]string)
	for _, r := range records {
		for _, o := range r.Origins {
			owners[o] = append(owners[o], r.ID)
		}
	}

	var violations []string
	for token, ids := range owners {
		if len(ids) > 1 {
			violations = append(violations, token)
		}
	}
	if len(violations) == 0 {
		return nil
	}
	sort.Strings(violations)
	ids := owners[violations[0]]
	sort.Strings(ids)
	return &DuplicateOriginError{Token: violations[0], IDs: ids}
}
