// Package config handles repository layout and settings for a refscreen
// review repository. All state lives under .refscreen/ in the project root;
// settings are stored as YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/refscreen/refscreen/internal/dedupe"
	"github.com/refscreen/refscreen/internal/enrich"
)

// Repository layout constants.
const (
	RefscreenDir = ".refscreen"
	SettingsFile = "settings.yaml"
	RecordsFile  = "records.jsonl"
	LockFile     = "records.lock"
	CacheDir     = "cache"
	DBFile       = "records.db"
)

// Settings is the repository configuration stored in
// .refscreen/settings.yaml.
type Settings struct {
	// Endpoint selects the dedupe classifier ("simple" by default).
	Endpoint string `yaml:"dedupe_endpoint"`

	// Dedupe configures the threshold classifier.
	Dedupe dedupe.Settings `yaml:"dedupe"`

	// Enrichment configures metadata retrieval during preparation.
	Enrichment EnrichmentSettings `yaml:"enrichment"`
}

// EnrichmentSettings configures metadata retrieval.
type EnrichmentSettings struct {
	Enabled             bool    `yaml:"enabled"`
	RetrievalSimilarity float64 `yaml:"retrieval_similarity"`
	Mailto              string  `yaml:"mailto,omitempty"`
}

// DefaultSettings returns the configuration written by `refscreen init`.
func DefaultSettings() *Settings {
	return &Settings{
		Endpoint: dedupe.EndpointSimple,
		Dedupe:   dedupe.DefaultSettings(),
		Enrichment: EnrichmentSettings{
			Enabled:             true,
			RetrievalSimilarity: enrich.DefaultRetrievalSimilarity,
		},
	}
}

// Validate checks the full configuration. Invalid settings are fatal at
// load time, never clamped or defaulted silently.
func (s *Settings) Validate() error {
	if s.Endpoint == "" {
		return errors.New("dedupe_endpoint must be set")
	}
	if err := s.Dedupe.Validate(); err != nil {
		return fmt.Errorf("dedupe: %w", err)
	}
	if s.Enrichment.RetrievalSimilarity < 0 || s.Enrichment.RetrievalSimilarity > 1 {
		return fmt.Errorf("enrichment.retrieval_similarity %v outside [0,1]",
			s.Enrichment.RetrievalSimilarity)
	}
	return nil
}

// RefscreenPath returns the path to the .refscreen directory from a root path.
func RefscreenPath(root string) string {
	return filepath.Join(root, RefscreenDir)
}

// SettingsPath returns the path to settings.yaml from a root path.
func SettingsPath(root string) string {
	return filepath.Join(root, RefscreenDir, SettingsFile)
}

// RecordsPath returns the path to records.jsonl from a root path.
func RecordsPath(root string) string {
	return filepath.Join(root, RefscreenDir, RecordsFile)
}

// RecordsRelPath is the records file path relative to the repository root,
// as git sees it.
func RecordsRelPath() string {
	return filepath.Join(RefscreenDir, RecordsFile)
}

// LockPath returns the path to the record store lock file from a root path.
func LockPath(root string) string {
	return filepath.Join(root, RefscreenDir, LockFile)
}

// CachePath returns the path to the cache directory from a root path.
func CachePath(root string) string {
	return filepath.Join(root, RefscreenDir, CacheDir)
}

// DBPath returns the path to the SQLite cache from a root path.
func DBPath(root string) string {
	return filepath.Join(root, RefscreenDir, CacheDir, DBFile)
}

// IsRepository checks if the given path contains a refscreen repository.
func IsRepository(root string) bool {
	info, err := os.Stat(RefscreenPath(root))
	return err == nil && info.IsDir()
}

// FindRepository walks up from the given path to find a refscreen
// repository. Returns the repository root path or an error if not found.
func FindRepository(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", errors.New("not in a refscreen repository (no .refscreen directory found)")
		}
		abs = parent
	}
}

// Load reads and validates settings from the repository at the given root.
// A missing settings file yields the defaults.
func Load(root string) (*Settings, error) {
	data, err := os.ReadFile(SettingsPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	cfg := DefaultSettings()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", SettingsPath(root), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", SettingsPath(root), err)
	}
	return cfg, nil
}

// Save writes settings to the repository at the given root.
func (s *Settings) Save(root string) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.WriteFile(SettingsPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}
