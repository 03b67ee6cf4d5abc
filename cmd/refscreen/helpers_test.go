package main

import (
	"os"
	"testing"

	"go.uber.org/zap"

	"github.com/refscreen/refscreen/internal/config"
	"github.com/refscreen/refscreen/internal/record"
)

func testRepoContext(t *testing.T) *repoContext {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(config.CachePath(dir), 0755); err != nil {
		t.Fatalf("mkdir cache: %v", err)
	}
	return &repoContext{Root: dir, Settings: config.DefaultSettings(), Log: zap.NewNop()}
}

func cachedRecord(id, origin string) *record.Record {
	return &record.Record{
		ID:        id,
		EntryType: "article",
		Status:    record.StatusProcessed,
		Title:     "Title " + id,
		Origins:   []string{origin},
	}
}

func TestOpenCache_FreshIndexAnswersLookups(t *testing.T) {
	rc := testRepoContext(t)
	records := []*record.Record{
		cachedRecord("A1", "dblp/1"),
		cachedRecord("B2", "ieee/7"),
	}

	cache, err := rc.openCache(records)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	id, err := cache.IDByOrigin("ieee/7")
	if err != nil {
		t.Fatalf("id by origin: %v", err)
	}
	if id != "B2" {
		t.Errorf("origin lookup = %q, want B2", id)
	}
	counts, err := cache.StatusCounts()
	if err != nil {
		t.Fatalf("status counts: %v", err)
	}
	if counts[record.StatusProcessed] != 2 {
		t.Errorf("counts = %v, want 2 processed", counts)
	}
}

func TestOpenCache_ResyncsDriftedIndex(t *testing.T) {
	rc := testRepoContext(t)
	stale := []*record.Record{cachedRecord("A1", "dblp/1")}

	cache, err := rc.openCache(stale)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	cache.Close()

	// The store grew since the index was built; reopening must resync.
	current := append(stale, cachedRecord("B2", "ieee/7"))
	cache, err = rc.openCache(current)
	if err != nil {
		t.Fatalf("reopen cache: %v", err)
	}
	defer cache.Close()

	id, err := cache.IDByOrigin("ieee/7")
	if err != nil {
		t.Fatalf("id by origin: %v", err)
	}
	if id != "B2" {
		t.Error("index not resynced with the record store")
	}
}
