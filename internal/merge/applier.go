// Package merge applies dedup decisions to the corpus: merging duplicate
// pairs, advancing lifecycle status, and routing potential duplicates to an
// interactive resolver.
package merge

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/refscreen/refscreen/internal/dedupe"
	"github.com/refscreen/refscreen/internal/record"
)

// Summary counts the outcomes of applying one batch of decisions.
type Summary struct {
	Merged         int `json:"merged"`
	Potential      int `json:"potential"`
	Rejected       int `json:"rejected"`
	AlreadyApplied int `json:"already_applied"`
}

// Applier applies dedup decisions to records.
type Applier struct {
	log *zap.Logger
}

// NewApplier creates an Applier.
func NewApplier(log *zap.Logger) *Applier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Applier{log: log}
}

// Apply consumes a batch of decisions, merging duplicates and advancing
// non-duplicates to processed. Potential duplicates are left untouched for
// interactive resolution. Returns the surviving record set.
//
// Re-applying a decision whose pair already shares an origin token is a
// warning no-op, so applying the same batch twice cannot double-merge.
func (a *Applier) Apply(records []*record.Record, decisions []dedupe.Decision) ([]*record.Record, Summary, error) {
	byID := make(map[string]*record.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	retired := make(map[string]bool)
	var sum Summary

	for _, d := range decisions {
		switch d.Decision {
		case dedupe.NoDuplicate:
			r, ok := byID[d.ID]
			if !ok {
				return nil, sum, fmt.Errorf("decision references unknown record %s", d.ID)
			}
			if err := r.Advance(record.StatusProcessed); err != nil {
				return nil, sum, err
			}
			sum.Rejected++

		case dedupe.PotentialDuplicate:
			// Not merged until a human labels it.
			sum.Potential++

		case dedupe.Duplicate:
			applied, err := a.mergePair(byID, retired, d.ID, d.DuplicateOf)
			if err != nil {
				return nil, sum, err
			}
			if applied {
				sum.Merged++
			} else {
				sum.AlreadyApplied++
			}

		default:
			return nil, sum, fmt.Errorf("unknown decision %q for record %s", d.Decision, d.ID)
		}
	}

	var kept []*record.Record
	for _, r := range records {
		if !retired[r.ID] {
			kept = append(kept, r)
		}
	}
	return kept, sum, nil
}

// mergePair merges the record pair, the lexicographically smaller id
// surviving. Returns false when the merge was already applied.
func (a *Applier) mergePair(byID map[string]*record.Record, retired map[string]bool, idA, idB string) (bool, error) {
	ra, okA := byID[idA]
	rb, okB := byID[idB]
	if !okA || !okB {
		return false, fmt.Errorf("merge references unknown record pair %s / %s", idA, idB)
	}

	if retired[idA] || retired[idB] || ra.SharesOrigin(rb) {
		a.log.Warn("merge already applied",
			zap.String("id_a", idA),
			zap.String("id_b", idB))
		return false, nil
	}

	survivor, absorbed := ra, rb
	if rb.ID < ra.ID {
		survivor, absorbed = rb, ra
	}

	mergeInto(survivor, absorbed)
	if err := survivor.Advance(record.StatusProcessed); err != nil {
		return false, err
	}
	retired[absorbed.ID] = true

	a.log.Info("merged duplicate",
		zap.String("survivor", survivor.ID),
		zap.String("retired", absorbed.ID),
		zap.Strings("origins", survivor.Origins))
	return true, nil
}

// mergeInto folds absorbed into survivor: origins are unioned, fields and
// provenance propagate only where the incoming side is more authoritative
// or the survivor has no value.
func mergeInto(survivor, absorbed *record.Record) {
	survivor.AddOrigins(absorbed.Origins...)

	copyField := func(field string, dst *string, src string) {
		if src == "" {
			return
		}
		if *dst == "" || incomingWins(survivor.MasterdataProvenance[field], absorbed.MasterdataProvenance[field]) {
			*dst = src
			setProvenance(&survivor.MasterdataProvenance, field, absorbed.MasterdataProvenance[field])
		}
	}

	copyField("title", &survivor.Title, absorbed.Title)
	copyField("author", &survivor.Author, absorbed.Author)
	copyField("year", &survivor.Year, absorbed.Year)
	copyField("journal", &survivor.Journal, absorbed.Journal)
	copyField("booktitle", &survivor.Booktitle, absorbed.Booktitle)
	copyField("volume", &survivor.Volume, absorbed.Volume)
	copyField("number", &survivor.Number, absorbed.Number)
	copyField("pages", &survivor.Pages, absorbed.Pages)
	copyField("doi", &survivor.DOI, absorbed.DOI)

	keys := make([]string, 0, len(absorbed.Fields))
	for key := range absorbed.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		src := absorbed.Fields[key]
		if src == "" {
			continue
		}
		if survivor.Fields == nil {
			survivor.Fields = make(map[string]string)
		}
		if survivor.Fields[key] == "" || incomingWins(survivor.DataProvenance[key], absorbed.DataProvenance[key]) {
			survivor.Fields[key] = src
			setProvenance(&survivor.DataProvenance, key, absorbed.DataProvenance[key])
		}
	}
}

// incomingWins reports whether the incoming field value should replace an
// existing one: only when its provenance source is strictly more
// authoritative. Otherwise the existing value and its note are preserved.
func incomingWins(existing, incoming record.Provenance) bool {
	return authority(incoming) > authority(existing)
}

// authority ranks provenance sources. Manual curation outranks automated
// feeds; a verified DOI registry outranks an unverified scrape.
func authority(p record.Provenance) int {
	switch p.Source {
	case "manual":
		return 3
	case "doi.org", "crossref":
		return 2
	default:
		return 1
	}
}

func setProvenance(m *map[string]record.Provenance, field string, p record.Provenance) {
	if p == (record.Provenance{}) {
		return
	}
	if *m == nil {
		*m = make(map[string]record.Provenance)
	}
	(*m)[field] = p
}
