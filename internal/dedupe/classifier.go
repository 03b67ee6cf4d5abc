package dedupe

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/refscreen/refscreen/internal/record"
	"github.com/refscreen/refscreen/internal/similarity"
)

// Classifier identifies duplicates among a record set. Implementations are
// selected by configuration tag; the engine above is the default.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, records []*record.Record) ([]Decision, error)
}

// Names of the built-in classifier endpoints.
const (
	EndpointSimple      = "simple"
	EndpointFingerprint = "fingerprint"
)

// Factory builds a classifier from settings.
type Factory func(settings Settings, log *zap.Logger) (Classifier, error)

var classifiers = map[string]Factory{}

// Register adds a classifier factory under the given endpoint tag.
func Register(endpoint string, f Factory) {
	classifiers[endpoint] = f
}

// NewClassifier instantiates the classifier registered under the endpoint tag.
func NewClassifier(endpoint string, settings Settings, log *zap.Logger) (Classifier, error) {
	f, ok := classifiers[endpoint]
	if !ok {
		return nil, fmt.Errorf("unknown dedupe endpoint %q (registered: %v)", endpoint, registeredEndpoints())
	}
	return f(settings, log)
}

func registeredEndpoints() []string {
	names := make([]string, 0, len(classifiers))
	for n := range classifiers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(EndpointSimple, func(settings Settings, log *zap.Logger) (Classifier, error) {
		e, err := New(settings, log)
		if err != nil {
			return nil, err
		}
		return &simpleClassifier{engine: e}, nil
	})
	Register(EndpointFingerprint, func(settings Settings, log *zap.Logger) (Classifier, error) {
		if err := settings.Validate(); err != nil {
			return nil, err
		}
		if log == nil {
			log = zap.NewNop()
		}
		return &fingerprintClassifier{log: log}, nil
	})
}

type simpleClassifier struct {
	engine *Engine
}

func (c *simpleClassifier) Name() string { return EndpointSimple }

func (c *simpleClassifier) Classify(ctx context.Context, records []*record.Record) ([]Decision, error) {
	return c.engine.Run(ctx, records)
}

// fingerprintClassifier is the cheap exact-match path: a pending record is a
// duplicate only when its normalized identity fingerprint equals an earlier
// queue member's. Records whose fingerprints cannot be computed are accepted
// unclassified rather than guessed at.
type fingerprintClassifier struct {
	log *zap.Logger
}

func (c *fingerprintClassifier) Name() string { return EndpointFingerprint }

func (c *fingerprintClassifier) Classify(ctx context.Context, records []*record.Record) ([]Decision, error) {
	queue := BuildQueue(records)

	var decisions []Decision
	for i := queue.ItemsStart; i < len(queue.Records); i++ {
		if err := ctx.Err(); err != nil {
			return decisions, err
		}
		r := queue.Records[i]
		d := Decision{ID: r.ID, Similarity: 1, Decision: NoDuplicate}
		for j := 0; j < i; j++ {
			if similarity.FingerprintMatch(queue.Records[j], r) == similarity.Yes {
				d = Decision{
					ID:          r.ID,
					DuplicateOf: queue.Records[j].ID,
					Similarity:  1,
					Decision:    Duplicate,
				}
				break
			}
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}
