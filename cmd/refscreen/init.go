package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/refscreen/refscreen/internal/config"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new refscreen repository",
	Long: `Initialize a new refscreen repository in the current directory.

Creates:
  .refscreen/
  ├── records.jsonl   # Empty file
  ├── settings.yaml   # Default settings
  └── cache/          # Empty directory (gitignored)`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root, exitCode := getRepoRoot()
	if exitCode != 0 {
		os.Exit(exitCode)
	}

	if config.IsRepository(root) {
		exitWithError(ExitError, "directory already contains a refscreen repository")
	}

	if err := os.MkdirAll(config.RefscreenPath(root), 0755); err != nil {
		exitWithError(ExitError, "creating .refscreen directory: %v", err)
	}
	if err := os.MkdirAll(config.CachePath(root), 0755); err != nil {
		exitWithError(ExitError, "creating cache directory: %v", err)
	}

	recordsFile, err := os.Create(config.RecordsPath(root))
	if err != nil {
		exitWithError(ExitError, "creating records.jsonl: %v", err)
	}
	recordsFile.Close()

	if err := config.DefaultSettings().Save(root); err != nil {
		exitWithError(ExitError, "creating settings.yaml: %v", err)
	}

	if humanOutput {
		outputHuman("Initialized refscreen repository in %s\n", root)
	} else {
		outputJSON(StatusResponse{Status: "initialized", Path: root})
	}
	return nil
}
