package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// MatchCache persists resolved cross-catalog track identities so
// repeated migrations skip redundant search calls. Track identity is
// stable, unlike playlist contents, so caching it does not break the
// re-fetch-everything rule the flows rely on.
type MatchCache struct {
	db *sql.DB
}

const matchCacheSchema = `
CREATE TABLE IF NOT EXISTS track_matches (
	source_id   TEXT PRIMARY KEY,
	target_id   TEXT NOT NULL,
	title       TEXT,
	artist      TEXT,
	resolved_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

// OpenMatchCache opens (creating if needed) a sqlite-backed match cache.
func OpenMatchCache(path string) (*MatchCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open match cache: %w", err)
	}

	if _, err := db.Exec(matchCacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create match cache schema: %w", err)
	}

	return &MatchCache{db: db}, nil
}

// Lookup returns the cached target-catalog ID for a source-catalog
// track, if one was resolved before.
func (c *MatchCache) Lookup(sourceID string) (string, bool, error) {
	var targetID string
	err := c.db.QueryRow(
		"SELECT target_id FROM track_matches WHERE source_id = ?", sourceID,
	).Scan(&targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("match cache lookup failed: %w", err)
	}
	return targetID, true, nil
}

// Store records a resolved identity. Re-storing an already cached
// source ID is a no-op.
func (c *MatchCache) Store(sourceID, targetID, title, artist string) error {
	_, err := c.db.Exec(
		"INSERT INTO track_matches (source_id, target_id, title, artist) VALUES (?, ?, ?, ?) ON CONFLICT(source_id) DO NOTHING",
		sourceID, targetID, title, artist,
	)
	if err != nil {
		return fmt.Errorf("match cache store failed: %w", err)
	}
	return nil
}

func (c *MatchCache) Close() error {
	return c.db.Close()
}
