// Package similarity computes composite similarity scores between
// bibliographic records, with a per-field breakdown explaining the score.
package similarity

import (
	"math"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/refscreen/refscreen/internal/record"
)

// Fixed field weights. Title and author dominate; year, volume and number
// are exact-or-zero matches.
const (
	weightTitle     = 0.35
	weightAuthor    = 0.30
	weightYear      = 0.10
	weightContainer = 0.15
	weightVolume    = 0.04
	weightNumber    = 0.03
	weightPages     = 0.03

	// A verified DOI match floors the composite score above the default
	// duplicate threshold.
	doiMatchFloor = 0.97
)

// FieldDetail explains one field's contribution to a composite score.
type FieldDetail struct {
	Field string  `json:"field"`
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
}

// Result is the outcome of scoring an ordered record pair.
type Result struct {
	Score   float64       `json:"score"`
	Details []FieldDetail `json:"details"`
}

// Detail returns the detail entry for the named field, if present.
func (r Result) Detail(field string) (FieldDetail, bool) {
	for _, d := range r.Details {
		if d.Field == field {
			return d, true
		}
	}
	return FieldDetail{}, false
}

// Bigram Sorensen-Dice over normalized text. Tolerant of word-level noise
// in titles and venues, exact on identical strings.
var strMetric = metrics.NewSorensenDice()

// Score computes the composite similarity of two records in [0, 1].
//
// A field enters the comparison when at least one side has it; a field
// missing on one side scores zero, a field missing on both sides is skipped
// entirely (its weight is excluded from normalization), so Score(A, A) is
// always 1 regardless of which fields A carries. Pure: neither record is
// mutated.
func Score(a, b *record.Record) Result {
	type comparison struct {
		field  string
		va, vb string
		weight float64
		score  func(x, y string) float64
	}

	comparisons := []comparison{
		{"title", a.Title, b.Title, weightTitle, titleSim},
		{"author", a.Author, b.Author, weightAuthor, authorSim},
		{"year", a.Year, b.Year, weightYear, exactSim},
		{"container_title", a.ContainerTitle(), b.ContainerTitle(), weightContainer, textSim},
		{"volume", a.Volume, b.Volume, weightVolume, exactSim},
		{"number", a.Number, b.Number, weightNumber, exactSim},
		{"pages", a.Pages, b.Pages, weightPages, pagesSim},
	}

	var details []FieldDetail
	var weighted, totalWeight float64
	for _, c := range comparisons {
		if c.va == "" && c.vb == "" {
			continue
		}
		var sub float64
		if c.va != "" && c.vb != "" {
			sub = c.score(c.va, c.vb)
		}
		details = append(details, FieldDetail{Field: c.field, A: c.va, B: c.vb, Score: sub})
		weighted += c.weight * sub
		totalWeight += c.weight
	}

	var score float64
	if totalWeight > 0 {
		score = weighted / totalWeight
	}

	if a.DOI != "" && b.DOI != "" {
		doiScore := exactSim(normalizeDOI(a.DOI), normalizeDOI(b.DOI))
		details = append(details, FieldDetail{Field: "doi", A: a.DOI, B: b.DOI, Score: doiScore})
		if doiScore == 1 && score < doiMatchFloor {
			score = doiMatchFloor
		}
	}

	return Result{Score: round4(score), Details: details}
}

func titleSim(a, b string) float64 {
	return strutil.Similarity(normalizeText(a), normalizeText(b), strMetric)
}

func textSim(a, b string) float64 {
	return strutil.Similarity(normalizeText(a), normalizeText(b), strMetric)
}

// authorSim compares author lists order-independently by sorting name
// tokens before matching, so "Doe, J. and Smith, J." scores high against
// "Smith, J. and Doe, J.".
func authorSim(a, b string) float64 {
	return strutil.Similarity(tokenSort(a), tokenSort(b), strMetric)
}

func exactSim(a, b string) float64 {
	if strings.TrimSpace(a) == strings.TrimSpace(b) {
		return 1
	}
	return 0
}

// pagesSim compares page ranges after collapsing "--" vs "-" and spacing.
func pagesSim(a, b string) float64 {
	return exactSim(normalizePages(a), normalizePages(b))
}

func normalizeText(s string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(s) {
		switch {
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			b.WriteRune(c)
		case c == ' ' || c == '\t' || c == '\n':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func tokenSort(s string) string {
	tokens := strings.Fields(normalizeText(strings.ReplaceAll(s, " and ", " ")))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func normalizePages(s string) string {
	s = strings.ReplaceAll(s, "--", "-")
	return strings.Join(strings.Fields(s), "")
}

func normalizeDOI(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimPrefix(s, "https://doi.org/")
	s = strings.TrimPrefix(s, "http://dx.doi.org/")
	return s
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
