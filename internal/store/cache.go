package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/refscreen/refscreen/internal/record"
)

// Cache is the ephemeral SQLite index over the JSONL corpus. It exists only
// to answer point lookups (by id, origin token, fingerprint) without
// rescanning the file; Rebuild drops and repopulates it wholesale.
type Cache struct {
	db *sql.DB
}

// OpenCache opens or creates the SQLite cache at the given path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createCacheSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func createCacheSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		entry_type TEXT,
		status TEXT NOT NULL,
		title TEXT,
		doi TEXT,
		fingerprint TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_fingerprint ON records(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_records_doi ON records(doi);
	CREATE TABLE IF NOT EXISTS origins (
		token TEXT PRIMARY KEY,
		record_id TEXT NOT NULL REFERENCES records(id)
	);
	CREATE INDEX IF NOT EXISTS idx_origins_record ON origins(record_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Rebuild replaces the cache contents with an index over the given records.
func (c *Cache) Rebuild(records []*record.Record) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM origins`); err != nil {
		return fmt.Errorf("clearing origins: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM records`); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}

	insRec, err := tx.Prepare(`INSERT INTO records (id, entry_type, status, title, doi, fingerprint) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer insRec.Close()

	insOrigin, err := tx.Prepare(`INSERT OR REPLACE INTO origins (token, record_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing origin insert: %w", err)
	}
	defer insOrigin.Close()

	for _, r := range records {
		// Fingerprint is best-effort: sparse records index without one.
		fp, err := r.Fingerprint()
		if err != nil && !errors.Is(err, record.ErrFingerprintIncomplete) {
			return fmt.Errorf("fingerprinting %s: %w", r.ID, err)
		}
		if _, err := insRec.Exec(r.ID, r.EntryType, string(r.Status), r.Title, r.DOI, fp); err != nil {
			return fmt.Errorf("indexing record %s: %w", r.ID, err)
		}
		for _, o := range r.Origins {
			if _, err := insOrigin.Exec(o, r.ID); err != nil {
				return fmt.Errorf("indexing origin %s: %w", o, err)
			}
		}
	}

	return tx.Commit()
}

// IDByOrigin returns the id of the record carrying the given origin token,
// or "" if no record does.
func (c *Cache) IDByOrigin(token string) (string, error) {
	var id string
	err := c.db.QueryRow(`SELECT record_id FROM origins WHERE token = ?`, token).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up origin %s: %w", token, err)
	}
	return id, nil
}

// IDsByFingerprint returns the ids of records whose fingerprint matches,
// ordered by id for determinism.
func (c *Cache) IDsByFingerprint(fp string) ([]string, error) {
	if fp == "" {
		return nil, nil
	}
	rows, err := c.db.Query(`SELECT id FROM records WHERE fingerprint = ? ORDER BY id`, fp)
	if err != nil {
		return nil, fmt.Errorf("looking up fingerprint: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning fingerprint row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StatusCounts returns the number of records per status.
func (c *Cache) StatusCounts() (map[record.Status]int, error) {
	rows, err := c.db.Query(`SELECT status, COUNT(*) FROM records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[record.Status]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("scanning status row: %w", err)
		}
		counts[record.Status(s)] = n
	}
	return counts, rows.Err()
}
