package gitrepo

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/refscreen/refscreen/internal/record"
	"github.com/refscreen/refscreen/internal/store"
)

// Snapshot is an immutable view of the record set pinned to a commit.
// Lookup returns clones, so callers can never mutate historical state.
type Snapshot struct {
	CommitSHA string
	records   map[string]*record.Record
	order     []string
}

// Len returns the number of records in the snapshot.
func (s *Snapshot) Len() int { return len(s.order) }

// IDs returns the record ids in snapshot file order.
func (s *Snapshot) IDs() []string {
	return append([]string(nil), s.order...)
}

// Get returns a copy of the record with the given id.
func (s *Snapshot) Get(id string) (*record.Record, bool) {
	r, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// ByOrigin returns copies of the records carrying the given origin token.
func (s *Snapshot) ByOrigin(token string) []*record.Record {
	var out []*record.Record
	for _, id := range s.order {
		if s.records[id].HasOrigin(token) {
			out = append(out, s.records[id].Clone())
		}
	}
	return out
}

func newSnapshot(sha string, recs []*record.Record) *Snapshot {
	s := &Snapshot{CommitSHA: sha, records: make(map[string]*record.Record, len(recs))}
	for _, r := range recs {
		if _, ok := s.records[r.ID]; ok {
			continue
		}
		s.records[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	return s
}

// SnapshotAt reconstructs the record set as it existed at the given commit.
func SnapshotAt(repoRoot, recordsPath, commitRef string) (*Snapshot, error) {
	sha, err := ValidateCommit(repoRoot, commitRef)
	if err != nil {
		return nil, err
	}
	data, err := ShowAt(repoRoot, sha, recordsPath)
	if err != nil {
		return nil, err
	}
	recs, err := store.ParseRecords(data)
	if err != nil {
		return nil, fmt.Errorf("parsing records at %s: %w", commitRef, err)
	}
	return newSnapshot(sha, recs), nil
}

// PriorSnapshot reconstructs the record set immediately preceding the target
// commit: walking commits touching the record store newest-first, it takes
// the content of the first commit after the target. This is "the state
// before the change being validated".
func PriorSnapshot(repoRoot, recordsPath, targetCommit string) (*Snapshot, error) {
	targetSHA, err := ValidateCommit(repoRoot, targetCommit)
	if err != nil {
		return nil, err
	}
	commits, err := CommitsTouching(repoRoot, recordsPath)
	if err != nil {
		return nil, err
	}

	foundTarget := false
	for _, c := range commits {
		if c.SHA == targetSHA {
			foundTarget = true
			continue
		}
		if !foundTarget {
			continue
		}
		return SnapshotAt(repoRoot, recordsPath, c.SHA)
	}
	if !foundTarget {
		return nil, fmt.Errorf("commit %s did not touch %s: %w", targetCommit, recordsPath, ErrCommitNotFound)
	}
	// Target is the first commit touching the store: prior state is empty.
	return newSnapshot("", nil), nil
}

// LatestSnapshot reconstructs the record set at the most recent commit
// touching the record store. When no commit has touched it yet the
// snapshot is empty.
func LatestSnapshot(repoRoot, recordsPath string) (*Snapshot, error) {
	commits, err := CommitsTouching(repoRoot, recordsPath)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return newSnapshot("", nil), nil
	}
	return SnapshotAt(repoRoot, recordsPath, commits[0].SHA)
}

// ChangedRecords returns the records changed in the target commit, compared
// field-for-field against the prior snapshot. With an empty targetCommit all
// current working-tree records are considered changed.
func ChangedRecords(repoRoot, recordsPath, targetCommit string) ([]*record.Record, error) {
	if targetCommit == "" {
		recs, err := store.LoadRecords(filepath.Join(repoRoot, recordsPath))
		if err != nil {
			return nil, err
		}
		return recs, nil
	}

	target, err := SnapshotAt(repoRoot, recordsPath, targetCommit)
	if err != nil {
		return nil, err
	}
	prior, err := PriorSnapshot(repoRoot, recordsPath, targetCommit)
	if err != nil {
		return nil, err
	}

	var changed []*record.Record
	for _, id := range target.IDs() {
		cur, _ := target.Get(id)
		prev, ok := prior.Get(id)
		if !ok || !recordsEqual(cur, prev) {
			changed = append(changed, cur)
		}
	}
	return changed, nil
}

// recordsEqual compares two records by serialized content.
func recordsEqual(a, b *record.Record) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}
