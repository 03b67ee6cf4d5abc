// Package store persists the record corpus as git-versionable JSONL with an
// ephemeral SQLite cache for indexed lookups. The JSONL file is the source
// of truth; the cache can be rebuilt from it at any time.
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/refscreen/refscreen/internal/record"
)

// MaxLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxLineCapacity = 1024 * 1024

// ParseRecords parses JSONL content into records, preserving file order.
func ParseRecords(data []byte) ([]*record.Record, error) {
	var records []*record.Record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	buf := make([]byte, MaxLineCapacity)
	scanner.Buffer(buf, MaxLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var r record.Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		records = append(records, &r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning records: %w", err)
	}
	return records, nil
}

// LoadRecords reads all records from a JSONL file. A missing file yields an
// empty corpus, not an error.
func LoadRecords(path string) ([]*record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return ParseRecords(data)
}

// LoadRecordsByStatus reads records filtered to the given statuses.
// An empty filter returns everything.
func LoadRecordsByStatus(path string, statuses ...record.Status) ([]*record.Record, error) {
	records, err := LoadRecords(path)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return records, nil
	}
	var filtered []*record.Record
	for _, r := range records {
		for _, s := range statuses {
			if r.Status == s {
				filtered = append(filtered, r)
				break
			}
		}
	}
	return filtered, nil
}

// WriteRecords writes records to a JSONL file in the given order.
// Callers wanting canonical output sort with SortByID first.
func WriteRecords(path string, records []*record.Record) error {
	var buf bytes.Buffer
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding record %s: %w", r.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing records: %w", err)
	}
	return nil
}

// SortByID sorts records by ID for deterministic output.
func SortByID(records []*record.Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
}

// IndexByID builds an id -> record map. Duplicate ids keep the first
// occurrence; the consistency check reports them separately.
func IndexByID(records []*record.Record) map[string]*record.Record {
	m := make(map[string]*record.Record, len(records))
	for _, r := range records {
		if _, ok := m[r.ID]; !ok {
			m[r.ID] = r
		}
	}
	return m
}
