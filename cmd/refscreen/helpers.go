package main

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/refscreen/refscreen/internal/config"
	"github.com/refscreen/refscreen/internal/feedlock"
	"github.com/refscreen/refscreen/internal/gitrepo"
	"github.com/refscreen/refscreen/internal/record"
	"github.com/refscreen/refscreen/internal/store"
)

// repoContext bundles everything a store-touching command needs.
type repoContext struct {
	Root     string
	Settings *config.Settings
	Log      *zap.Logger
}

// openRepo locates the repository and loads its settings, exiting on failure.
func openRepo() *repoContext {
	cwd, exitCode := getRepoRoot()
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	root, err := config.FindRepository(cwd)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	settings, err := config.Load(root)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return &repoContext{Root: root, Settings: settings, Log: newLogger()}
}

// withLock runs fn while holding the record store lock.
func (rc *repoContext) withLock(ctx context.Context, fn func() error) error {
	lock, err := feedlock.Acquire(ctx, config.LockPath(rc.Root), 30*time.Second)
	if err != nil {
		if errors.Is(err, feedlock.ErrTimeout) {
			exitWithError(ExitLocked, "%v", err)
		}
		return err
	}
	defer lock.Release()
	return fn()
}

// saveRecords writes the record store, refreshes the SQLite cache, and
// commits the result. The cache is ephemeral: a rebuild failure is logged,
// not fatal.
func (rc *repoContext) saveRecords(records []*record.Record, commitMsg string) (string, error) {
	store.SortByID(records)
	if err := store.WriteRecords(config.RecordsPath(rc.Root), records); err != nil {
		return "", err
	}
	rc.rebuildCache(records)

	sha, err := gitrepo.CommitFile(rc.Root, config.RecordsRelPath(), commitMsg)
	if err != nil {
		return "", err
	}
	return sha, nil
}

func (rc *repoContext) rebuildCache(records []*record.Record) {
	cache, err := store.OpenCache(config.DBPath(rc.Root))
	if err != nil {
		rc.Log.Warn("opening cache", zap.Error(err))
		return
	}
	defer cache.Close()
	if err := cache.Rebuild(records); err != nil {
		rc.Log.Warn("rebuilding cache", zap.Error(err))
	}
}

// openCache opens the SQLite index, resyncing it when it has drifted from
// the store. The JSONL file stays the source of truth; the cache only
// answers point lookups.
func (rc *repoContext) openCache(records []*record.Record) (*store.Cache, error) {
	cache, err := store.OpenCache(config.DBPath(rc.Root))
	if err != nil {
		return nil, err
	}
	counts, err := cache.StatusCounts()
	if err == nil {
		total := 0
		for _, n := range counts {
			total += n
		}
		if total == len(records) {
			return cache, nil
		}
	}
	if err := cache.Rebuild(records); err != nil {
		cache.Close()
		return nil, err
	}
	return cache, nil
}

// loadRecords reads the full record store.
func (rc *repoContext) loadRecords() []*record.Record {
	records, err := store.LoadRecords(config.RecordsPath(rc.Root))
	if err != nil {
		exitWithError(ExitDataError, "loading records: %v", err)
	}
	return records
}
