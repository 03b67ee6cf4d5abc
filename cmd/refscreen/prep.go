package main

import (
	"errors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/refscreen/refscreen/internal/enrich"
	"github.com/refscreen/refscreen/internal/record"
)

var prepSkipEnrich bool

func init() {
	prepCmd.Flags().BoolVar(&prepSkipEnrich, "no-enrich", false, "Skip metadata enrichment")
	rootCmd.AddCommand(prepCmd)
}

var prepCmd = &cobra.Command{
	Use:   "prep",
	Short: "Prepare imported records",
	Long: `Prepare imported records for duplicate identification.

Each imported record is optionally enriched from Crossref (a candidate
is only applied when it passes the retrieval similarity gate), then
advanced to prepared, or to needs_manual_preparation when its masterdata
is too sparse to fingerprint. Records flagged for manual preparation
advance to prepared on a later run once their masterdata is complete.`,
	RunE: runPrep,
}

// PrepResult summarizes a preparation run.
type PrepResult struct {
	Prepared    int    `json:"prepared"`
	NeedsManual int    `json:"needs_manual"`
	Enriched    int    `json:"enriched"`
	Commit      string `json:"commit,omitempty"`
}

func runPrep(cmd *cobra.Command, args []string) error {
	rc := openRepo()
	defer rc.Log.Sync()
	_ = godotenv.Load()

	var enricher *enrich.Enricher
	if rc.Settings.Enrichment.Enabled && !prepSkipEnrich {
		var clientOpts []enrich.ClientOption
		if rc.Settings.Enrichment.Mailto != "" {
			clientOpts = append(clientOpts, enrich.WithMailto(rc.Settings.Enrichment.Mailto))
		}
		enricher = enrich.NewEnricher(
			enrich.NewClient(clientOpts...),
			rc.Log,
			enrich.WithRetrievalSimilarity(rc.Settings.Enrichment.RetrievalSimilarity),
		)
	}

	var result PrepResult
	err := rc.withLock(cmd.Context(), func() error {
		records := rc.loadRecords()

		changed := false
		for _, r := range records {
			if r.Status != record.StatusImported && r.Status != record.StatusNeedsManualPreparation {
				continue
			}

			if enricher != nil && r.Status == record.StatusImported {
				recEnriched, err := enricher.Enrich(cmd.Context(), r)
				if err != nil {
					return err
				}
				if recEnriched {
					result.Enriched++
				}
			}

			if _, err := r.Fingerprint(); err != nil {
				if !errors.Is(err, record.ErrFingerprintIncomplete) {
					return err
				}
				if r.Status == record.StatusImported {
					if err := r.Advance(record.StatusNeedsManualPreparation); err != nil {
						return err
					}
					changed = true
				}
				result.NeedsManual++
				continue
			}

			if err := r.Advance(record.StatusPrepared); err != nil {
				return err
			}
			result.Prepared++
			changed = true
		}

		if !changed {
			return nil
		}
		sha, err := rc.saveRecords(records, "refscreen prep")
		if err != nil {
			return err
		}
		result.Commit = sha
		return nil
	})
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	rc.Log.Info("preparation complete",
		zap.Int("prepared", result.Prepared),
		zap.Int("needs_manual", result.NeedsManual),
		zap.Int("enriched", result.Enriched))

	if humanOutput {
		outputHuman("Prepared %d records (%d enriched, %d need manual preparation)\n",
			result.Prepared, result.Enriched, result.NeedsManual)
	} else {
		outputJSON(result)
	}
	return nil
}
