// Package validate re-scores historical preparation edits and merge
// decisions against prior snapshots of the record store, ranking
// discrepancies for human review.
package validate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/refscreen/refscreen/internal/gitrepo"
	"github.com/refscreen/refscreen/internal/record"
	"github.com/refscreen/refscreen/internal/similarity"
)

// Scope selects which change class to validate.
type Scope string

const (
	ScopePrepare     Scope = "prepare"
	ScopeMerge       Scope = "merge"
	ScopeAll         Scope = "all"
	ScopeUnspecified Scope = "unspecified"
)

// Finding is one ranked validation triple: a prior record, the current
// record derived from it, and their similarity. Identical pairs
// (similarity 1) are never reported.
type Finding struct {
	Prior      *record.Record           `json:"prior"`
	Current    *record.Record           `json:"current"`
	Similarity float64                  `json:"similarity"`
	Details    []similarity.FieldDetail `json:"details,omitempty"`
}

// Properties is the result of repository-level invariant checks.
type Properties struct {
	Traceability bool     `json:"traceability"`
	Completeness bool     `json:"completeness"`
	Issues       []string `json:"issues,omitempty"`
}

// Engine validates commits against the versioned record store.
type Engine struct {
	repoRoot    string
	recordsPath string
	log         *zap.Logger
}

// NewEngine creates a validation engine for the repository at repoRoot.
func NewEngine(repoRoot, recordsPath string, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{repoRoot: repoRoot, recordsPath: recordsPath, log: log}
}

// Validate runs the requested validation scope against the target commit.
// An empty target commit validates the current working tree against the
// state before HEAD. ScopeUnspecified infers the scope from the target
// commit's message, falling back to ScopeAll.
func (e *Engine) Validate(ctx context.Context, scope Scope, targetCommit string) ([]Finding, error) {
	if scope == ScopeUnspecified || scope == "" {
		scope = e.inferScope(targetCommit)
		e.log.Info("inferred validation scope", zap.String("scope", string(scope)))
	}

	var findings []Finding
	if scope == ScopePrepare || scope == ScopeAll {
		f, err := e.ValidatePreparation(ctx, targetCommit)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f...)
	}
	if scope == ScopeMerge || scope == ScopeAll {
		f, err := e.ValidateMerges(ctx, targetCommit)
		if err != nil {
			return nil, err
		}
		findings = append(findings, f...)
	}
	if scope != ScopePrepare && scope != ScopeMerge && scope != ScopeAll {
		return nil, fmt.Errorf("unknown validation scope %q", scope)
	}
	sortFindings(findings)
	return findings, nil
}

// inferScope derives the scope from the target commit's message: commits
// produced by the preparation or dedupe operations name themselves.
func (e *Engine) inferScope(targetCommit string) Scope {
	ref := targetCommit
	if ref == "" {
		ref = "HEAD"
	}
	msg, err := gitrepo.CommitMessage(e.repoRoot, ref)
	if err != nil {
		return ScopeAll
	}
	switch {
	case strings.Contains(msg, "refscreen prep"):
		return ScopePrepare
	case strings.Contains(msg, "refscreen dedupe"):
		return ScopeMerge
	default:
		return ScopeAll
	}
}

// ValidatePreparation scores every record changed in the target commit
// against the prior record(s) carrying the same origin token, surfacing
// preparation edits that changed identity-bearing content.
func (e *Engine) ValidatePreparation(ctx context.Context, targetCommit string) ([]Finding, error) {
	changed, prior, err := e.loadChangeSet(targetCommit)
	if err != nil {
		return nil, err
	}

	perRecord := make([][]Finding, len(changed))
	g, gctx := errgroup.WithContext(ctx)
	for i, cur := range changed {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for _, origin := range cur.Origins {
				for _, prev := range prior.ByOrigin(origin) {
					res := similarity.Score(cur, prev)
					if res.Score < 1 {
						perRecord[i] = append(perRecord[i], Finding{
							Prior:      prev,
							Current:    cur,
							Similarity: res.Score,
							Details:    res.Details,
						})
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	findings := flatten(perRecord)
	sortFindings(findings)
	e.log.Info("preparation validation complete",
		zap.Int("changed", len(changed)),
		zap.Int("findings", len(findings)))
	return findings, nil
}

// ValidateMerges enumerates, for every changed record that is a merge
// result, all pairwise combinations of its origin tokens, resolves each
// origin to its prior standalone record, and scores each pair. A low score
// flags a likely incorrect merge.
func (e *Engine) ValidateMerges(ctx context.Context, targetCommit string) ([]Finding, error) {
	changed, prior, err := e.loadChangeSet(targetCommit)
	if err != nil {
		return nil, err
	}

	perRecord := make([][]Finding, len(changed))
	g, gctx := errgroup.WithContext(ctx)
	for i, cur := range changed {
		if !cur.IsMergeResult() {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			origins := cur.Origins
			for x := 0; x < len(origins); x++ {
				for y := x + 1; y < len(origins); y++ {
					first := prior.ByOrigin(origins[x])
					second := prior.ByOrigin(origins[y])
					if len(first) == 0 || len(second) == 0 {
						continue
					}
					res := similarity.Score(first[0], second[0])
					if res.Score < 1 {
						perRecord[i] = append(perRecord[i], Finding{
							Prior:      first[0],
							Current:    second[0],
							Similarity: res.Score,
							Details:    res.Details,
						})
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	findings := flatten(perRecord)
	sortFindings(findings)
	e.log.Info("merge validation complete",
		zap.Int("changed", len(changed)),
		zap.Int("findings", len(findings)))
	return findings, nil
}

// loadChangeSet resolves the changed records for the target commit and the
// snapshot immediately preceding it. The snapshot is computed once and read
// concurrently; it is never mutated.
func (e *Engine) loadChangeSet(targetCommit string) ([]*record.Record, *gitrepo.Snapshot, error) {
	changed, err := gitrepo.ChangedRecords(e.repoRoot, e.recordsPath, targetCommit)
	if err != nil {
		return nil, nil, err
	}
	priorRef := targetCommit
	if priorRef == "" {
		priorRef = "HEAD"
	}
	prior, err := gitrepo.PriorSnapshot(e.repoRoot, e.recordsPath, priorRef)
	if err != nil {
		// HEAD may not touch the record store at all (the last commit was
		// config or docs). The working tree is then validated against the
		// latest record-store state instead.
		if targetCommit == "" && errors.Is(err, gitrepo.ErrCommitNotFound) {
			prior, err = gitrepo.LatestSnapshot(e.repoRoot, e.recordsPath)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return changed, prior, nil
}

// sortFindings orders by similarity descending (closest-but-changed pairs
// first), with record ids as tie-breakers for reproducible reports.
func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Similarity != findings[j].Similarity {
			return findings[i].Similarity > findings[j].Similarity
		}
		if findings[i].Prior.ID != findings[j].Prior.ID {
			return findings[i].Prior.ID < findings[j].Prior.ID
		}
		return findings[i].Current.ID < findings[j].Current.ID
	})
}

func flatten(perRecord [][]Finding) []Finding {
	var out []Finding
	for _, f := range perRecord {
		out = append(out, f...)
	}
	return out
}
