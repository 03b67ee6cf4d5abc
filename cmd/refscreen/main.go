// Package main provides the refscreen CLI entry point.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

// verbose enables debug-level logging
var verbose bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "refscreen",
	Short: "Git-versioned bibliographic record screening pipeline",
	Long: `refscreen manages bibliographic records through a review pipeline:
import, preparation, duplicate identification, and merge.

Records are stored in git-versionable JSONL format with an ephemeral
SQLite cache for fast lookups. Every operation commits its result, so
past preparation edits and merge decisions can be validated against
prior snapshots. All commands output JSON by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Version = Version
}

// newLogger builds the CLI logger. Logs go to stderr so stdout stays
// parseable.
func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

// getRepoRoot returns the working directory, or exits with an error.
func getRepoRoot() (string, int) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", outputError(ExitError, "getting current directory: %v", err)
	}

	// Check REFSCREEN_ROOT environment variable first
	if root := os.Getenv("REFSCREEN_ROOT"); root != "" {
		cwd = root
	}

	return cwd, 0
}
