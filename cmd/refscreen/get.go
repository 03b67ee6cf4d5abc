package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/refscreen/refscreen/internal/record"
	"github.com/refscreen/refscreen/internal/store"
)

var getDuplicates bool

func init() {
	getCmd.Flags().BoolVar(&getDuplicates, "duplicates", false, "Also list records sharing the record's identity fingerprint")
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <id-or-origin>",
	Short: "Get a single record by id or origin token",
	Long: `Get a single record by its id, or by an origin token
("<source>/<local-id>") resolved through the cache index.

Example:
  refscreen get Smith2020
  refscreen get dblp/conf/icis/Smith20
  refscreen get Smith2020 --duplicates`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

// GetResult is the record plus any fingerprint-sharing records.
type GetResult struct {
	Record     *record.Record   `json:"record"`
	SameWorkAs []*record.Record `json:"same_work_as,omitempty"`
}

func runGet(cmd *cobra.Command, args []string) error {
	rc := openRepo()
	defer rc.Log.Sync()

	records := rc.loadRecords()
	byID := store.IndexByID(records)

	cache, err := rc.openCache(records)
	if err != nil {
		exitWithError(ExitError, "opening cache: %v", err)
	}
	defer cache.Close()

	key := args[0]
	rec, ok := byID[key]
	if !ok {
		// Not an id: resolve as origin token through the index.
		id, err := cache.IDByOrigin(key)
		if err != nil {
			exitWithError(ExitError, "resolving origin: %v", err)
		}
		if id == "" {
			exitWithError(ExitError, "record not found: %s", key)
		}
		rec = byID[id]
		if rec == nil {
			exitWithError(ExitDataError, "origin %s resolves to unknown record %s", key, id)
		}
	}

	result := GetResult{Record: rec}
	if getDuplicates {
		fp, err := rec.Fingerprint()
		if err != nil && !errors.Is(err, record.ErrFingerprintIncomplete) {
			exitWithError(ExitError, "fingerprinting %s: %v", rec.ID, err)
		}
		ids, err := cache.IDsByFingerprint(fp)
		if err != nil {
			exitWithError(ExitError, "fingerprint lookup: %v", err)
		}
		for _, id := range ids {
			if id == rec.ID {
				continue
			}
			if other := byID[id]; other != nil {
				result.SameWorkAs = append(result.SameWorkAs, other)
			}
		}
	}

	if humanOutput {
		printRecordDetail(result)
	} else {
		outputJSON(result)
	}
	return nil
}

func printRecordDetail(result GetResult) {
	r := result.Record
	outputHuman("%s  [%s]\n", r.ID, r.Status)
	outputHuman("  %s\n", truncateString(r.Title, listTitleMaxLen))
	if r.Author != "" {
		outputHuman("  %s (%s)\n", r.Author, r.Year)
	}
	for _, o := range r.Origins {
		outputHuman("  origin: %s\n", o)
	}
	for _, other := range result.SameWorkAs {
		outputHuman("  same work as: %s\n", other.ID)
	}
}
