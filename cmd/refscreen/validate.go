package main

import (
	"github.com/spf13/cobra"

	"github.com/refscreen/refscreen/internal/config"
	"github.com/refscreen/refscreen/internal/gitrepo"
	"github.com/refscreen/refscreen/internal/validate"
)

var (
	validateScope      string
	validateProperties bool
)

func init() {
	validateCmd.Flags().StringVar(&validateScope, "scope", "", "Validation scope: prepare, merge, all (default: inferred from the commit message)")
	validateCmd.Flags().BoolVar(&validateProperties, "properties", false, "Check repository-level invariants instead of re-scoring changes")
	rootCmd.AddCommand(validateCmd)
}

var validateCmd = &cobra.Command{
	Use:   "validate [commit]",
	Short: "Re-score past preparation edits and merge decisions",
	Long: `Re-score the changes a commit made to the record store.

Preparation scope compares each changed record against the prior
record carrying the same origin token; merge scope re-scores every
origin pair a merged record combines. Findings are ranked by
similarity descending, so the most suspicious change sits last.

With no commit argument the current working tree is validated against
the state before HEAD. Without --scope the scope is inferred from the
commit message.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

// ValidateResult is the ranked findings report.
type ValidateResult struct {
	Target   string             `json:"target,omitempty"`
	Findings []validate.Finding `json:"findings"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	rc := openRepo()
	defer rc.Log.Sync()

	target := ""
	if len(args) == 1 {
		sha, err := gitrepo.ValidateCommit(rc.Root, args[0])
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		target = sha
	}

	engine := validate.NewEngine(rc.Root, config.RecordsRelPath(), rc.Log)

	if validateProperties {
		props, err := engine.ValidateProperties(target)
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
		if humanOutput {
			outputHuman("traceability: %v\ncompleteness: %v\n", props.Traceability, props.Completeness)
			for _, issue := range props.Issues {
				outputHuman("  - %s\n", issue)
			}
		} else {
			outputJSON(props)
		}
		if !props.Traceability || !props.Completeness {
			exitWithError(ExitDataError, "repository invariants violated")
		}
		return nil
	}

	scope := validate.Scope(validateScope)
	if validateScope == "" {
		scope = validate.ScopeUnspecified
	}
	findings, err := engine.Validate(cmd.Context(), scope, target)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		printFindingsHuman(findings)
	} else {
		outputJSON(ValidateResult{Target: target, Findings: findings})
	}
	return nil
}

func printFindingsHuman(findings []validate.Finding) {
	if len(findings) == 0 {
		outputHuman("No findings.\n")
		return
	}
	for i, f := range findings {
		outputHuman("%d. [%.4f] %s / %s\n", i+1, f.Similarity, f.Prior.ID, f.Current.ID)
		outputHuman("   %s\n", truncateString(f.Prior.Title, listTitleMaxLen))
		outputHuman("   %s\n", truncateString(f.Current.Title, listTitleMaxLen))
	}
}
