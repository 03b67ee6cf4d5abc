package dedupe

import "github.com/refscreen/refscreen/internal/similarity"

// Classification is the outcome of evaluating one incoming record.
type Classification string

const (
	NoDuplicate        Classification = "no_duplicate"
	PotentialDuplicate Classification = "potential_duplicate"
	Duplicate          Classification = "duplicate"
)

// Decision records the classification of one record during a dedup run.
// DuplicateOf is empty for no_duplicate decisions. Details carries the
// per-field breakdown of the winning comparison so a human adjudicator or a
// validation report can see why.
type Decision struct {
	ID          string                   `json:"id"`
	DuplicateOf string                   `json:"duplicate_of,omitempty"`
	Similarity  float64                  `json:"similarity"`
	Decision    Classification           `json:"decision"`
	Details     []similarity.FieldDetail `json:"details,omitempty"`
}
