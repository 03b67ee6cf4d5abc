package record

import (
	"errors"
	"strings"
	"unicode"
)

// ErrFingerprintIncomplete indicates too few fields are populated to build
// a usable identity fingerprint.
var ErrFingerprintIncomplete = errors.New("too few fields for fingerprint")

// Fingerprint returns a compact, normalized, order-independent serialization
// of the record's comparable fields, used for fast exact/near-exact duplicate
// lookup. Two records describing the same work normalize to the same
// fingerprint even when capitalization, punctuation or field noise differ.
//
// Requires title plus at least one of author or year; returns
// ErrFingerprintIncomplete otherwise.
func (r *Record) Fingerprint() (string, error) {
	if normalizeToken(r.Title) == "" {
		return "", ErrFingerprintIncomplete
	}
	if normalizeToken(r.Author) == "" && normalizeToken(r.Year) == "" {
		return "", ErrFingerprintIncomplete
	}

	parts := []string{
		normalizeToken(r.Author),
		normalizeToken(r.Year),
		normalizeToken(r.Title),
		normalizeToken(r.ContainerTitle()),
		normalizeToken(r.Volume),
		normalizeToken(r.Number),
	}
	return strings.Join(parts, "|"), nil
}

// normalizeToken lowercases s and strips everything but letters, digits and
// single spaces.
func normalizeToken(s string) string {
	var b strings.Builder
	lastSpace := true // trims leading spaces
	for _, c := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(c) || unicode.IsDigit(c):
			b.WriteRune(c)
			lastSpace = false
		case unicode.IsSpace(c) && !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}
