package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/refscreen/refscreen/internal/dedupe"
	"github.com/refscreen/refscreen/internal/merge"
)

var (
	dedupeForce   bool
	dedupeResolve bool
	dedupeDryRun  bool
)

func init() {
	dedupeCmd.Flags().BoolVar(&dedupeForce, "force", false, "Classify even when the pending batch exceeds the sample ceiling")
	dedupeCmd.Flags().BoolVar(&dedupeResolve, "resolve", false, "Interactively adjudicate potential duplicates")
	dedupeCmd.Flags().BoolVar(&dedupeDryRun, "dry-run", false, "Show decisions without applying them")
	rootCmd.AddCommand(dedupeCmd)
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Identify and merge duplicate records",
	Long: `Identify duplicates among pending records and merge them.

Each pending record is compared against all records already past dedup
plus the pending records before it. Pairs at or above the duplicate
threshold merge automatically; pairs in the gray zone between the two
thresholds are kept for adjudication (--resolve prompts for each).
Merging unions origin tokens, so every search result stays traceable
to exactly one living record.`,
	RunE: runDedupe,
}

// DedupeResult summarizes a dedup run.
type DedupeResult struct {
	Decisions []dedupe.Decision `json:"decisions"`
	Summary   merge.Summary     `json:"summary"`
	Commit    string            `json:"commit,omitempty"`
}

func runDedupe(cmd *cobra.Command, args []string) error {
	rc := openRepo()
	defer rc.Log.Sync()

	settings := rc.Settings.Dedupe
	if dedupeForce {
		settings.ForceOverride = true
	}
	classifier, err := dedupe.NewClassifier(rc.Settings.Endpoint, settings, rc.Log)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	var result DedupeResult
	err = rc.withLock(cmd.Context(), func() error {
		records := rc.loadRecords()

		decisions, err := classifier.Classify(cmd.Context(), records)
		if err != nil {
			return err
		}
		result.Decisions = decisions

		if dedupeDryRun {
			return nil
		}

		applier := merge.NewApplier(rc.Log)
		kept, summary, err := applier.Apply(records, decisions)
		if err != nil {
			return err
		}
		result.Summary = summary

		if dedupeResolve && summary.Potential > 0 {
			labeler := &merge.ConsoleLabeler{In: os.Stdin, Out: os.Stderr}
			kept, summary, err = applier.ResolvePotential(kept, decisions, labeler)
			if err != nil {
				return err
			}
			result.Summary.Merged += summary.Merged
			result.Summary.Rejected += summary.Rejected
			result.Summary.AlreadyApplied += summary.AlreadyApplied
			result.Summary.Potential = summary.Potential
		}

		sha, err := rc.saveRecords(kept, "refscreen dedupe")
		if err != nil {
			return err
		}
		result.Commit = sha
		return nil
	})
	var sizeErr *dedupe.SampleSizeError
	if errors.As(err, &sizeErr) {
		exitWithError(ExitSampleSize, "%v", err)
	}
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	rc.Log.Info("dedupe complete",
		zap.Int("decisions", len(result.Decisions)),
		zap.Int("merged", result.Summary.Merged),
		zap.Int("potential", result.Summary.Potential))

	if humanOutput {
		printDedupeHuman(result)
	} else {
		outputJSON(result)
	}
	return nil
}

func printDedupeHuman(result DedupeResult) {
	for _, d := range result.Decisions {
		switch d.Decision {
		case dedupe.Duplicate:
			outputHuman("%s -> %s  duplicate (%.4f)\n", d.ID, d.DuplicateOf, d.Similarity)
		case dedupe.PotentialDuplicate:
			outputHuman("%s ?? %s  potential (%.4f)\n", d.ID, d.DuplicateOf, d.Similarity)
		default:
			outputHuman("%s     no duplicate (max %.4f)\n", d.ID, d.Similarity)
		}
	}
	outputHuman("Merged %d, potential %d, kept apart %d\n",
		result.Summary.Merged, result.Summary.Potential, result.Summary.Rejected)
}
