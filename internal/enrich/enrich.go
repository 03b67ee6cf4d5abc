package enrich

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/refscreen/refscreen/internal/record"
	"github.com/refscreen/refscreen/internal/similarity"
)

const (
	// SourceName labels provenance entries for fields this package sets.
	SourceName = "crossref"

	// DefaultRetrievalSimilarity is the minimum score a retrieved candidate
	// must reach against the record before any of its fields are applied.
	DefaultRetrievalSimilarity = 0.85
)

// Enricher fills gaps in record masterdata from a metadata source. A
// candidate is only applied when it scores at or above the retrieval
// similarity gate, so a failed or implausible lookup leaves the record
// untouched.
type Enricher struct {
	client    *Client
	threshold float64
	log       *zap.Logger
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithRetrievalSimilarity overrides the candidate acceptance threshold.
func WithRetrievalSimilarity(threshold float64) EnricherOption {
	return func(e *Enricher) {
		e.threshold = threshold
	}
}

// NewEnricher creates an Enricher backed by the given client.
func NewEnricher(client *Client, log *zap.Logger, opts ...EnricherOption) *Enricher {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Enricher{client: client, threshold: DefaultRetrievalSimilarity, log: log}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich looks the record up by DOI when one is present, otherwise by
// bibliographic search on title and author, and fills empty comparable
// fields from the best candidate. It reports whether the record changed.
// Lookup failures are non-fatal: the record is returned unchanged.
func (e *Enricher) Enrich(ctx context.Context, r *record.Record) (bool, error) {
	work, err := e.retrieve(ctx, r)
	if err != nil {
		// Context cancellation stops the batch; every other failure is a
		// connector problem and degrades to "record unchanged".
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, fmt.Errorf("enriching %s: %w", r.ID, err)
		}
		if errors.Is(err, ErrNotFound) {
			e.log.Debug("no enrichment candidate", zap.String("id", r.ID))
		} else {
			e.log.Warn("enrichment lookup failed",
				zap.String("id", r.ID),
				zap.Error(err))
		}
		return false, nil
	}
	if work == nil {
		return false, nil
	}

	candidate := workToRecord(work)
	res := similarity.Score(restrictToShared(r, candidate))
	if res.Score < e.threshold {
		e.log.Debug("candidate below retrieval gate",
			zap.String("id", r.ID),
			zap.String("doi", work.DOI),
			zap.Float64("similarity", res.Score))
		return false, nil
	}

	changed := applyCandidate(r, candidate)
	if changed {
		e.log.Info("record enriched",
			zap.String("id", r.ID),
			zap.String("doi", work.DOI),
			zap.Float64("similarity", res.Score))
	}
	return changed, nil
}

func (e *Enricher) retrieve(ctx context.Context, r *record.Record) (*Work, error) {
	if r.DOI != "" {
		return e.client.GetWork(ctx, r.DOI)
	}
	if r.Title == "" {
		return nil, nil
	}
	query := r.Title
	if r.Author != "" {
		query += " " + r.Author
	}
	works, err := e.client.SearchWorks(ctx, query, DefaultSearchRows)
	if err != nil {
		return nil, err
	}
	if len(works) == 0 {
		return nil, nil
	}
	return works[0], nil
}

// restrictToShared trims both records to the fields populated on both
// sides. The gate asks whether the candidate describes the same work, not
// whether it is more complete, so candidate-only fields must not drag the
// score down before they are applied.
func restrictToShared(r, candidate *record.Record) (*record.Record, *record.Record) {
	a, b := *r, *candidate
	trim := func(x, y *string) {
		if *x == "" || *y == "" {
			*x, *y = "", ""
		}
	}
	trim(&a.Title, &b.Title)
	trim(&a.Author, &b.Author)
	trim(&a.Year, &b.Year)
	trim(&a.Journal, &b.Journal)
	trim(&a.Booktitle, &b.Booktitle)
	trim(&a.Volume, &b.Volume)
	trim(&a.Number, &b.Number)
	trim(&a.Pages, &b.Pages)
	trim(&a.DOI, &b.DOI)
	return &a, &b
}

// workToRecord maps a Crossref work onto the comparable record shape so the
// similarity engine can score it against the local record.
func workToRecord(w *Work) *record.Record {
	r := &record.Record{
		EntryType: entryType(w.Type),
		DOI:       w.DOI,
		Author:    w.Authors(),
		Year:      w.Year(),
		Volume:    w.Volume,
		Number:    w.Issue,
		Pages:     w.Page,
	}
	if len(w.Title) > 0 {
		r.Title = w.Title[0]
	}
	if len(w.ContainerTitle) > 0 {
		switch r.EntryType {
		case "inproceedings", "incollection", "proceedings":
			r.Booktitle = w.ContainerTitle[0]
		default:
			r.Journal = w.ContainerTitle[0]
		}
	}
	return r
}

func entryType(crossrefType string) string {
	switch crossrefType {
	case "proceedings-article":
		return "inproceedings"
	case "book-chapter":
		return "incollection"
	case "book", "monograph":
		return "book"
	default:
		return "article"
	}
}

// applyCandidate fills empty comparable fields from the candidate and
// records provenance for each field it sets. Populated fields are never
// overwritten: curation beats retrieval.
func applyCandidate(r *record.Record, candidate *record.Record) bool {
	changed := false
	fill := func(field string, dst *string, src string) {
		if *dst != "" || src == "" {
			return
		}
		*dst = src
		if r.MasterdataProvenance == nil {
			r.MasterdataProvenance = make(map[string]record.Provenance)
		}
		r.MasterdataProvenance[field] = record.Provenance{Source: SourceName}
		changed = true
	}

	fill("title", &r.Title, candidate.Title)
	fill("author", &r.Author, candidate.Author)
	fill("year", &r.Year, candidate.Year)
	fill("journal", &r.Journal, candidate.Journal)
	fill("booktitle", &r.Booktitle, candidate.Booktitle)
	fill("volume", &r.Volume, candidate.Volume)
	fill("number", &r.Number, candidate.Number)
	fill("pages", &r.Pages, candidate.Pages)
	fill("doi", &r.DOI, candidate.DOI)
	return changed
}
