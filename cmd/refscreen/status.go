package main

import (
	"github.com/spf13/cobra"

	"github.com/refscreen/refscreen/internal/dedupe"
	"github.com/refscreen/refscreen/internal/gitrepo"
	"github.com/refscreen/refscreen/internal/record"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pipeline progress",
	Long: `Show how many records sit in each pipeline state, how many are
pending duplicate identification, and whether the record store has
uncommitted changes.`,
	RunE: runStatus,
}

// PipelineStatus reports record counts per state.
type PipelineStatus struct {
	Total        int                   `json:"total"`
	ByStatus     map[record.Status]int `json:"by_status"`
	PendingDedup int                   `json:"pending_dedup"`
	Dirty        bool                  `json:"dirty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	rc := openRepo()
	defer rc.Log.Sync()

	records := rc.loadRecords()

	cache, err := rc.openCache(records)
	if err != nil {
		exitWithError(ExitError, "opening cache: %v", err)
	}
	defer cache.Close()
	counts, err := cache.StatusCounts()
	if err != nil {
		exitWithError(ExitError, "counting statuses: %v", err)
	}

	status := PipelineStatus{
		Total:        len(records),
		ByStatus:     counts,
		PendingDedup: dedupe.BuildQueue(records).Pending(),
	}
	status.Dirty = gitrepo.IsDirty(rc.Root)

	if humanOutput {
		outputHuman("%d records\n", status.Total)
		for _, s := range []record.Status{
			record.StatusImported,
			record.StatusNeedsManualPreparation,
			record.StatusPrepared,
			record.StatusProcessed,
		} {
			if n := status.ByStatus[s]; n > 0 {
				outputHuman("  %-26s %d\n", s, n)
			}
		}
		outputHuman("pending dedup: %d\n", status.PendingDedup)
		if status.Dirty {
			outputHuman("record store has uncommitted changes\n")
		}
	} else {
		outputJSON(status)
	}
	return nil
}
