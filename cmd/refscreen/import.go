package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/refscreen/refscreen/internal/record"
	"github.com/refscreen/refscreen/internal/store"
)

var (
	importSource string
	importDryRun bool
)

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "", "Source name for origin tokens (e.g. dblp, wos)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Show what would be imported without writing")
	importCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import records from a search result file",
	Long: `Import records from a JSONL search result file.

Each record gains an origin token "<source>/<id>" tying it back to the
search result it came from, and enters the pipeline in the imported
state. Records whose origin token is already present in the store are
skipped, so re-importing an updated result file is safe.

Usage:
  refscreen import --source dblp results.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

// ImportResult summarizes an import operation.
type ImportResult struct {
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Commit   string `json:"commit,omitempty"`
}

func runImport(cmd *cobra.Command, args []string) error {
	rc := openRepo()
	defer rc.Log.Sync()

	data, err := os.ReadFile(args[0])
	if err != nil {
		exitWithError(ExitError, "reading file: %v", err)
	}
	incoming, err := store.ParseRecords(data)
	if err != nil {
		exitWithError(ExitDataError, "parsing %s: %v", args[0], err)
	}

	var result ImportResult
	err = rc.withLock(cmd.Context(), func() error {
		records := rc.loadRecords()
		known := make(map[string]bool)
		ids := make(map[string]bool)
		for _, r := range records {
			ids[r.ID] = true
			for _, o := range r.Origins {
				known[o] = true
			}
		}

		for i, in := range incoming {
			local := in.ID
			if local == "" {
				local = strconv.Itoa(i + 1)
			}
			token := importSource + "/" + local
			if known[token] {
				result.Skipped++
				continue
			}
			in.Origins = []string{token}
			in.Status = record.StatusImported
			in.ID = uniqueID(ids, importSource, local)
			ids[in.ID] = true
			known[token] = true
			records = append(records, in)
			result.Imported++
		}

		if importDryRun {
			return nil
		}
		if err := store.CheckOriginConsistency(records); err != nil {
			return err
		}
		sha, err := rc.saveRecords(records, fmt.Sprintf("refscreen import %s", importSource))
		if err != nil {
			return err
		}
		result.Commit = sha
		return nil
	})
	var originErr *store.DuplicateOriginError
	if errors.As(err, &originErr) {
		exitWithError(ExitDataError, "%v", err)
	}
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		outputHuman("Imported %d records from %s (%d skipped)\n", result.Imported, importSource, result.Skipped)
	} else {
		outputJSON(result)
	}
	return nil
}

// uniqueID derives a store-unique record id from the source-local id.
func uniqueID(taken map[string]bool, source, local string) string {
	id := local
	if taken[id] {
		id = source + "_" + local
	}
	for i := 2; taken[id]; i++ {
		id = source + "_" + local + "_" + strconv.Itoa(i)
	}
	return id
}
