package store

import (
	"path/filepath"
	"testing"

	"github.com/refscreen/refscreen/internal/record"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_RebuildAndLookup(t *testing.T) {
	c := openTestCache(t)
	if err := c.Rebuild(sampleRecords()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	id, err := c.IDByOrigin("ieee/7")
	if err != nil {
		t.Fatalf("origin lookup: %v", err)
	}
	if id != "Smith2020" {
		t.Errorf("IDByOrigin = %s, want Smith2020", id)
	}

	id, err = c.IDByOrigin("nowhere/0")
	if err != nil {
		t.Fatalf("origin lookup: %v", err)
	}
	if id != "" {
		t.Errorf("unknown origin resolved to %s", id)
	}
}

func TestCache_FingerprintLookup(t *testing.T) {
	c := openTestCache(t)
	recs := sampleRecords()
	if err := c.Rebuild(recs); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	fp, err := recs[1].Fingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	ids, err := c.IDsByFingerprint(fp)
	if err != nil {
		t.Fatalf("fingerprint lookup: %v", err)
	}
	if len(ids) != 1 || ids[0] != "Smith2020" {
		t.Errorf("IDsByFingerprint = %v, want [Smith2020]", ids)
	}

	ids, err = c.IDsByFingerprint("")
	if err != nil {
		t.Fatalf("empty fingerprint lookup: %v", err)
	}
	if ids != nil {
		t.Errorf("empty fingerprint should match nothing, got %v", ids)
	}
}

func TestCache_RebuildReplaces(t *testing.T) {
	c := openTestCache(t)
	if err := c.Rebuild(sampleRecords()); err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	if err := c.Rebuild([]*record.Record{
		{ID: "Only2022", Status: record.StatusImported, Origins: []string{"manual/1"}},
	}); err != nil {
		t.Fatalf("second rebuild: %v", err)
	}

	id, err := c.IDByOrigin("ieee/7")
	if err != nil {
		t.Fatalf("origin lookup: %v", err)
	}
	if id != "" {
		t.Errorf("stale origin survived rebuild: %s", id)
	}

	counts, err := c.StatusCounts()
	if err != nil {
		t.Fatalf("status counts: %v", err)
	}
	if counts[record.StatusImported] != 1 || len(counts) != 1 {
		t.Errorf("counts = %v, want {imported:1}", counts)
	}
}

func TestCache_SparseRecordIndexesWithoutFingerprint(t *testing.T) {
	c := openTestCache(t)
	err := c.Rebuild([]*record.Record{
		{ID: "Sparse1", Status: record.StatusImported, Title: "Only a Title"},
	})
	if err != nil {
		t.Fatalf("rebuild with sparse record: %v", err)
	}
	counts, err := c.StatusCounts()
	if err != nil {
		t.Fatalf("status counts: %v", err)
	}
	if counts[record.StatusImported] != 1 {
		t.Errorf("sparse record not indexed: %v", counts)
	}
}
