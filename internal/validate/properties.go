package validate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/refscreen/refscreen/internal/gitrepo"
	"github.com/refscreen/refscreen/internal/record"
	"github.com/refscreen/refscreen/internal/store"
)

// ValidateProperties verifies repository-level structural invariants at the
// target commit (HEAD when empty):
//
//   - traceability: every current record carries at least one well-formed
//     origin token, and no token is shared by two distinct records;
//   - completeness: no record is stuck in an intermediate state once any
//     record has passed dedup.
//
// Findings are reported per property, not raised as errors: they are the
// engine's designed output.
func (e *Engine) ValidateProperties(targetCommit string) (Properties, error) {
	var records []*record.Record
	var err error
	if targetCommit == "" {
		records, err = store.LoadRecords(filepath.Join(e.repoRoot, e.recordsPath))
	} else {
		var snap *gitrepo.Snapshot
		snap, err = gitrepo.SnapshotAt(e.repoRoot, e.recordsPath, targetCommit)
		if err == nil {
			for _, id := range snap.IDs() {
				r, _ := snap.Get(id)
				records = append(records, r)
			}
		}
	}
	if err != nil {
		return Properties{}, err
	}

	props := Properties{Traceability: true, Completeness: true}

	for _, r := range records {
		if len(r.Origins) == 0 {
			props.Traceability = false
			props.Issues = append(props.Issues, fmt.Sprintf("record %s has no origin", r.ID))
		}
		for _, o := range r.Origins {
			if !wellFormedOrigin(o) {
				props.Traceability = false
				props.Issues = append(props.Issues, fmt.Sprintf("record %s: malformed origin %q", r.ID, o))
			}
		}
	}
	if err := store.CheckOriginConsistency(records); err != nil {
		props.Traceability = false
		props.Issues = append(props.Issues, err.Error())
	}

	anyProcessed := false
	for _, r := range records {
		if r.Status == record.StatusProcessed {
			anyProcessed = true
			break
		}
	}
	if anyProcessed {
		for _, r := range records {
			if !r.BeyondDedup() {
				props.Completeness = false
				props.Issues = append(props.Issues, fmt.Sprintf("record %s stuck in %s", r.ID, r.Status))
			}
		}
	}

	return props, nil
}

// wellFormedOrigin checks the "<source-name>/<source-local-id>" shape.
func wellFormedOrigin(token string) bool {
	name, local, ok := strings.Cut(token, "/")
	return ok && name != "" && local != ""
}
