package merge

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/refscreen/refscreen/internal/dedupe"
	"github.com/refscreen/refscreen/internal/record"
	"github.com/refscreen/refscreen/internal/similarity"
)

// Label is a human adjudication of a potential duplicate pair.
type Label string

const (
	LabelDuplicate   Label = "duplicate"
	LabelNoDuplicate Label = "no_duplicate"
	LabelSkip        Label = "skip"
)

// Labeler adjudicates a potential duplicate pair. It is shown both full
// records and the per-field similarity details that produced the score.
type Labeler interface {
	Label(a, b *record.Record, details []similarity.FieldDetail) (Label, error)
}

// ResolvePotential routes each potential_duplicate decision through the
// labeler. An accepted pair is merged exactly like an automatic duplicate; a
// rejected pair advances the record to processed on its own. Skipped pairs
// stay untouched: an unlabelled potential duplicate is never merged.
func (a *Applier) ResolvePotential(records []*record.Record, decisions []dedupe.Decision, labeler Labeler) ([]*record.Record, Summary, error) {
	byID := make(map[string]*record.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	retired := make(map[string]bool)
	var sum Summary

	for _, d := range decisions {
		if d.Decision != dedupe.PotentialDuplicate {
			continue
		}
		ra, okA := byID[d.ID]
		rb, okB := byID[d.DuplicateOf]
		if !okA || !okB {
			// An earlier merge in this batch retired one side; the survivor
			// already carries its origins, so there is nothing left to label.
			a.log.Warn("skipping potential duplicate, record already retired",
				zap.String("id_a", d.ID),
				zap.String("id_b", d.DuplicateOf))
			sum.AlreadyApplied++
			continue
		}

		label, err := labeler.Label(ra, rb, d.Details)
		if err != nil {
			return nil, sum, fmt.Errorf("labelling %s / %s: %w", d.ID, d.DuplicateOf, err)
		}

		switch label {
		case LabelDuplicate:
			applied, err := a.mergePair(byID, retired, d.ID, d.DuplicateOf)
			if err != nil {
				return nil, sum, err
			}
			if applied {
				sum.Merged++
			} else {
				sum.AlreadyApplied++
			}
		case LabelNoDuplicate:
			if err := ra.Advance(record.StatusProcessed); err != nil {
				return nil, sum, err
			}
			sum.Rejected++
		case LabelSkip:
			sum.Potential++
		default:
			return nil, sum, fmt.Errorf("unknown label %q for pair %s / %s", label, d.ID, d.DuplicateOf)
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

// ConsoleLabeler prompts on a terminal, showing both records side by side
// with the field-level similarity breakdown.
type ConsoleLabeler struct {
	In  io.Reader
	Out io.Writer
}

// Label implements Labeler. Answers: y = duplicate, n = no duplicate,
// anything else = skip.
func (c *ConsoleLabeler) Label(a, b *record.Record, details []similarity.FieldDetail) (Label, error) {
	fmt.Fprintf(c.Out, "\nPotential duplicate: %s / %s\n", a.ID, b.ID)
	for _, d := range details {
		fmt.Fprintf(c.Out, "  %-16s %.2f\n    a: %s\n    b: %s\n", d.Field, d.Score, d.A, d.B)
	}
	fmt.Fprintf(c.Out, "Merge as duplicate? [y/n/s] ")

	reader := bufio.NewReader(c.In)
	answer, err := reader.ReadString('\n')
	if err != nil && answer == "" {
		return LabelSkip, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y":
		return LabelDuplicate, nil
	case "n":
		return LabelNoDuplicate, nil
	default:
		return LabelSkip, nil
	}
}
