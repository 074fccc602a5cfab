// Package storage caches ADS lookups in SQLite so repeated runs do not spend
// the daily API quota on papers already resolved.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Cache wraps a SQLite database holding search and export results.
type Cache struct {
	db  *sql.DB
	now func() time.Time
}

// CacheStats counts cached rows.
type CacheStats struct {
	Lookups int `json:"lookups"`
	Entries int `json:"entries"`
}

// OpenCache opens or creates the cache database at path, creating its
// directory if needed.
func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Cache{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		-- Identifier (DOI or arXiv ID) to bibcodes found by search
		CREATE TABLE IF NOT EXISTS lookups (
			identifier TEXT PRIMARY KEY,
			bibcodes_json TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		);

		-- Exported BibTeX entry per bibcode
		CREATE TABLE IF NOT EXISTS entries (
			bibcode TEXT PRIMARY KEY,
			entry TEXT NOT NULL,
			fetched_at INTEGER NOT NULL
		);
	`

	_, err := db.Exec(schema)
	return err
}

// identifierKey folds case so DOI spellings share a row.
func identifierKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// GetBibcodes returns the cached bibcodes for identifier and whether a row existed.
func (c *Cache) GetBibcodes(identifier string) ([]string, bool, error) {
	var raw string
	err := c.db.QueryRow(`SELECT bibcodes_json FROM lookups WHERE identifier = ?`, identifierKey(identifier)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying lookup %s: %w", identifier, err)
	}

	var bibcodes []string
	if err := json.Unmarshal([]byte(raw), &bibcodes); err != nil {
		return nil, false, fmt.Errorf("decoding lookup %s: %w", identifier, err)
	}
	return bibcodes, true, nil
}

// PutBibcodes stores the bibcodes found for identifier, replacing any earlier row.
func (c *Cache) PutBibcodes(identifier string, bibcodes []string) error {
	raw, err := json.Marshal(bibcodes)
	if err != nil {
		return fmt.Errorf("encoding lookup %s: %w", identifier, err)
	}
	_, err = c.db.Exec(`
		INSERT INTO lookups (identifier, bibcodes_json, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET bibcodes_json = excluded.bibcodes_json, fetched_at = excluded.fetched_at
	`, identifierKey(identifier), string(raw), c.now().Unix())
	if err != nil {
		return fmt.Errorf("storing lookup %s: %w", identifier, err)
	}
	return nil
}

// GetBibTeX returns the cached BibTeX entry for bibcode and whether it existed.
func (c *Cache) GetBibTeX(bibcode string) (string, bool, error) {
	var entry string
	err := c.db.QueryRow(`SELECT entry FROM entries WHERE bibcode = ?`, bibcode).Scan(&entry)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("querying entry %s: %w", bibcode, err)
	}
	return entry, true, nil
}

// PutBibTeX stores the BibTeX entry for bibcode, replacing any earlier row.
func (c *Cache) PutBibTeX(bibcode, entry string) error {
	_, err := c.db.Exec(`
		INSERT INTO entries (bibcode, entry, fetched_at) VALUES (?, ?, ?)
		ON CONFLICT(bibcode) DO UPDATE SET entry = excluded.entry, fetched_at = excluded.fetched_at
	`, bibcode, entry, c.now().Unix())
	if err != nil {
		return fmt.Errorf("storing entry %s: %w", bibcode, err)
	}
	return nil
}

// Clear removes every cached row.
func (c *Cache) Clear() error {
	if _, err := c.db.Exec("DELETE FROM lookups"); err != nil {
		return fmt.Errorf("clearing lookups table: %w", err)
	}
	if _, err := c.db.Exec("DELETE FROM entries"); err != nil {
		return fmt.Errorf("clearing entries table: %w", err)
	}
	return nil
}

// Stats counts the cached rows.
func (c *Cache) Stats() (CacheStats, error) {
	var s CacheStats
	if err := c.db.QueryRow("SELECT COUNT(*) FROM lookups").Scan(&s.Lookups); err != nil {
		return s, fmt.Errorf("counting lookups: %w", err)
	}
	if err := c.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&s.Entries); err != nil {
		return s, fmt.Errorf("counting entries: %w", err)
	}
	return s, nil
}
