// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides full-text search over saved chat sessions.
//
// The index is derived state: it is rebuilt from the history store and can
// be deleted at any time without data loss. SQLite with FTS5 backs the
// search; the history key-value store stays the single source of truth.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lingualens/lingualens-tui/internal/history"
)

// Schema is the SQLite schema for the session search index.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    date TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    scene TEXT,
    model TEXT
);

CREATE INDEX IF NOT EXISTS idx_sessions_date ON sessions(date);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    content,
    content='messages',
    content_rowid='id',
    tokenize='unicode61'
);

CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.id, old.content);
END;
`

// Result is one search hit.
type Result struct {
	SessionID string
	Date      string
	Timestamp int64
	Scene     string
	Model     string
	Snippet   string
}

// Index is a SQLite-backed full-text index over sessions.
type Index struct {
	db *sql.DB
}

// DefaultPath returns the index location, ~/.lingualens/index.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".lingualens", "index.db"), nil
}

// Open opens (creating if needed) the index at the given path.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	// SQLite supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Rebuild replaces the entire index with the given history snapshot.
func (ix *Index) Rebuild(groups []history.DayGroup) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin rebuild: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}

	insSession, err := tx.Prepare(`INSERT INTO sessions (id, date, timestamp, scene, model) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insSession.Close()

	insMessage, err := tx.Prepare(`INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insMessage.Close()

	for _, g := range groups {
		for _, s := range g.Sessions {
			if _, err := insSession.Exec(s.ID, s.Date, s.Timestamp, s.Scene, s.Model); err != nil {
				return fmt.Errorf("failed to index session %s: %w", s.ID, err)
			}
			for _, m := range s.Messages {
				if m.Content == "" {
					continue
				}
				if _, err := insMessage.Exec(s.ID, m.Role, m.Content); err != nil {
					return fmt.Errorf("failed to index message in %s: %w", s.ID, err)
				}
			}
		}
	}

	return tx.Commit()
}

// Search returns sessions whose messages match the query, best match
// first, at most one result per session.
func (ix *Index) Search(query string, limit int) ([]Result, error) {
	q := ftsQuery(query)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := ix.db.Query(`
		SELECT s.id, s.date, s.timestamp, s.scene, s.model,
		       snippet(messages_fts, 0, '', '', '…', 12) AS snip,
		       min(rank) AS best
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		JOIN sessions s ON s.id = m.session_id
		WHERE messages_fts MATCH ?
		GROUP BY s.id
		ORDER BY best
		LIMIT ?`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		var r Result
		var best float64
		if err := rows.Scan(&r.SessionID, &r.Date, &r.Timestamp, &r.Scene, &r.Model, &r.Snippet, &best); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns the number of indexed sessions.
func (ix *Index) Count() (int, error) {
	var n int
	err := ix.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

// ftsQuery turns free text into a safe FTS5 query: each term quoted and
// AND-ed, so user input cannot inject FTS syntax.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, `""`)
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " AND ")
}
