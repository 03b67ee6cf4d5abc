// Package dedupe implements incremental similarity-based duplicate
// identification for small record batches.
package dedupe

import "fmt"

// Default thresholds and limits for incremental duplicate identification.
const (
	DefaultNonDupThreshold   = 0.70
	DefaultDupThreshold      = 0.95
	DefaultSampleSizeCeiling = 20
)

// Settings configures the incremental threshold classifier.
//
// Record pairs scoring at or below NonDupThreshold are non-duplicates;
// pairs at or above DupThreshold are duplicates; everything between is a
// potential duplicate requiring human adjudication.
type Settings struct {
	NonDupThreshold   float64 `yaml:"merging_non_dup_threshold"`
	DupThreshold      float64 `yaml:"merging_dup_threshold"`
	SampleSizeCeiling int     `yaml:"sample_size_ceiling"`
	ForceOverride     bool    `yaml:"force_override"`
}

// DefaultSettings returns the default threshold configuration.
func DefaultSettings() Settings {
	return Settings{
		NonDupThreshold:   DefaultNonDupThreshold,
		DupThreshold:      DefaultDupThreshold,
		SampleSizeCeiling: DefaultSampleSizeCeiling,
	}
}

// Validate checks the configuration. Invalid thresholds are fatal at
// construction time, never clamped.
func (s Settings) Validate() error {
	if s.NonDupThreshold < 0 || s.NonDupThreshold > 1 {
		return fmt.Errorf("merging_non_dup_threshold %v outside [0,1]", s.NonDupThreshold)
	}
	if s.DupThreshold < 0 || s.DupThreshold > 1 {
		return fmt.Errorf("merging_dup_threshold %v outside [0,1]", s.DupThreshold)
	}
	if s.NonDupThreshold > s.DupThreshold {
		return fmt.Errorf("thresholds inverted: merging_non_dup_threshold %v > merging_dup_threshold %v",
			s.NonDupThreshold, s.DupThreshold)
	}
	if s.SampleSizeCeiling <= 0 {
		return fmt.Errorf("sample_size_ceiling must be positive, got %d", s.SampleSizeCeiling)
	}
	return nil
}

// SampleSizeError reports a pending batch exceeding the configured ceiling.
// Incremental threshold dedup is designed for small batches; larger samples
// need a different classifier or an explicit force override.
type SampleSizeError struct {
	Pending int
	Ceiling int
}

func (e *SampleSizeError) Error() string {
	return fmt.Sprintf("%d records pending dedup exceeds sample ceiling %d (use force override for small-sample classification anyway)",
		e.Pending, e.Ceiling)
}
