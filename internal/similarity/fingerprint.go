package similarity

import "github.com/refscreen/refscreen/internal/record"

// Tristate is the outcome of a fingerprint comparison.
type Tristate string

const (
	Yes     Tristate = "yes"
	No      Tristate = "no"
	Unknown Tristate = "unknown"
)

// FingerprintMatch compares the normalized identity fingerprints of two
// records for exact matching, the cheap path used by fast duplicate lookups.
// Returns Unknown when either side has too few fields to fingerprint.
func FingerprintMatch(a, b *record.Record) Tristate {
	fpA, err := a.Fingerprint()
	if err != nil {
		return Unknown
	}
	fpB, err := b.Fingerprint()
	if err != nil {
		return Unknown
	}
	if fpA == fpB {
		return Yes
	}
	return No
}
