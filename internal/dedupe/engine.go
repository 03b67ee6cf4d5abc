package dedupe

import (
	"context"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/refscreen/refscreen/internal/record"
	"github.com/refscreen/refscreen/internal/similarity"
)

// Engine is the incremental threshold classifier. Records are evaluated in
// strict queue order: already-processed records first as fixed context, then
// each pending record against everything admitted before it. Decisions about
// record i depend on records 0..i-1, so the outer loop is sequential;
// scoring one record against its comparison set fans out across workers.
type Engine struct {
	settings Settings
	log      *zap.Logger
	workers  int
}

// New creates an Engine, failing fast on invalid settings.
func New(settings Settings, log *zap.Logger) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{settings: settings, log: log, workers: runtime.NumCPU()}, nil
}

// Queue is the evaluation order for one dedup run: context records (already
// beyond dedup) first, then pending records, both in store iteration order.
type Queue struct {
	Records    []*record.Record
	ItemsStart int // index of the first pending record
}

// BuildQueue splits records into context and pending partitions, preserving
// the given order within each partition so a fixed store state always yields
// the same queue. Records awaiting manual preparation are excluded entirely.
func BuildQueue(records []*record.Record) Queue {
	var ctx, pending []*record.Record
	for _, r := range records {
		switch {
		case r.BeyondDedup():
			ctx = append(ctx, r)
		case r.EligibleForDedup():
			pending = append(pending, r)
		}
	}
	return Queue{Records: append(ctx, pending...), ItemsStart: len(ctx)}
}

// Pending returns the number of records awaiting classification.
func (q Queue) Pending() int {
	return len(q.Records) - q.ItemsStart
}

// Run classifies every pending record in the queue. Cancellation is checked
// between record evaluations; a cancelled run returns the decisions
// completed so far alongside the context error.
func (e *Engine) Run(ctx context.Context, records []*record.Record) ([]Decision, error) {
	queue := BuildQueue(records)

	if pending := queue.Pending(); pending > e.settings.SampleSizeCeiling && !e.settings.ForceOverride {
		return nil, &SampleSizeError{Pending: pending, Ceiling: e.settings.SampleSizeCeiling}
	}

	e.log.Info("incremental duplicate identification",
		zap.Int("context", queue.ItemsStart),
		zap.Int("pending", queue.Pending()))

	var decisions []Decision
	for i := queue.ItemsStart; i < len(queue.Records); i++ {
		if err := ctx.Err(); err != nil {
			return decisions, err
		}
		d, err := e.evaluate(ctx, queue.Records[:i], queue.Records[i])
		if err != nil {
			return decisions, err
		}
		e.log.Debug("classified record",
			zap.String("id", d.ID),
			zap.String("decision", string(d.Decision)),
			zap.Float64("similarity", d.Similarity),
			zap.String("duplicate_of", d.DuplicateOf))
		decisions = append(decisions, d)
	}
	return decisions, nil
}

// evaluate scores one pending record against the comparison set and
// classifies it by the configured thresholds.
func (e *Engine) evaluate(ctx context.Context, comparison []*record.Record, r *record.Record) (Decision, error) {
	// First record in an empty corpus: trivially accepted.
	if len(comparison) == 0 {
		return Decision{ID: r.ID, Similarity: 1, Decision: NoDuplicate}, nil
	}

	results := make([]similarity.Result, len(comparison))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for j, candidate := range comparison {
		g.Go(func() error {
			results[j] = similarity.Score(candidate, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Decision{}, err
	}

	// Deterministic argmax: strict > keeps the earliest-queued candidate on
	// an exact score tie, independent of worker completion order.
	best := 0
	for j := 1; j < len(results); j++ {
		if results[j].Score > results[best].Score {
			best = j
		}
	}
	maxScore := results[best].Score

	d := Decision{ID: r.ID, Similarity: maxScore}
	switch {
	case maxScore <= e.settings.NonDupThreshold:
		// No candidate exceeds the threshold: non-duplicate relative to the
		// whole comparison set.
		d.Decision = NoDuplicate
	case maxScore < e.settings.DupThreshold:
		d.Decision = PotentialDuplicate
		d.DuplicateOf = comparison[best].ID
		d.Details = results[best].Details
	default:
		d.Decision = Duplicate
		d.DuplicateOf = comparison[best].ID
		d.Details = results[best].Details
	}
	return d, nil
}
