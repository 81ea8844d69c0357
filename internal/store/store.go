// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists papers and curated author profiles in SQLite.
// The schema is versioned; Open applies pending migrations in order.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-digest/pkg/types"
)

// Store manages the paper database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the SQLite database at path and migrates it to
// the latest schema version. The parent directory is created if needed.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers; SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migration is one schema step. Steps run inside a transaction and are
// recorded in schema_version.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{1, "base schema", migrateBase},
	{2, "user score", migrateUserScore},
	{3, "author index", migrateAuthorIndex},
}

// SchemaVersion returns the highest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(v.Int64), nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating schema_version: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", m.version, err)
		}
		if err := m.apply(ctx, tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
			m.version, formatTime(time.Now()),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
		s.logger.Info("applied migration", "version", m.version, "name", m.name)
	}
	return nil
}

func migrateBase(ctx context.Context, tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			abstract TEXT NOT NULL DEFAULT '',
			authors TEXT NOT NULL DEFAULT '[]',
			primary_category TEXT NOT NULL DEFAULT '',
			categories TEXT NOT NULL DEFAULT '[]',
			published TEXT NOT NULL,
			pdf_url TEXT NOT NULL DEFAULT '',
			main_affiliation TEXT,
			affiliations TEXT,
			score INTEGER,
			score_reason TEXT,
			score_details TEXT,
			summary TEXT,
			notified_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_published ON papers(published)`,
		`CREATE TABLE IF NOT EXISTS author_profiles (
			name TEXT PRIMARY KEY,
			bio TEXT NOT NULL DEFAULT '',
			website TEXT NOT NULL DEFAULT '',
			affiliation TEXT NOT NULL DEFAULT '',
			is_important INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func migrateUserScore(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `ALTER TABLE papers ADD COLUMN user_score INTEGER`); err != nil {
		return fmt.Errorf("adding user_score: %w", err)
	}
	return nil
}

// migrateAuthorIndex creates the per-author rows used for ranking and
// backfills them from the authors column, normalizing names on the way.
func migrateAuthorIndex(ctx context.Context, tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS paper_authors (
			paper_id TEXT NOT NULL REFERENCES papers(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			PRIMARY KEY (paper_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_paper_authors_name ON paper_authors(name)`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, authors FROM papers`)
	if err != nil {
		return fmt.Errorf("reading authors: %w", err)
	}
	type row struct {
		id      string
		authors []string
	}
	var pending []row
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("scanning authors: %w", err)
		}
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			slog.Warn("unreadable author list, clearing", "paper", id, "err", err)
		}
		pending = append(pending, row{id: id, authors: types.NormalizeAuthors(names)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, r := range pending {
		if _, err := tx.ExecContext(ctx, `UPDATE papers SET authors = ? WHERE id = ?`, mustJSON(r.authors), r.id); err != nil {
			return fmt.Errorf("rewriting authors of %s: %w", r.id, err)
		}
		if err := insertAuthors(ctx, tx, r.id, r.authors); err != nil {
			return err
		}
	}
	return nil
}

func insertAuthors(ctx context.Context, tx *sql.Tx, paperID string, authors []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_authors WHERE paper_id = ?`, paperID); err != nil {
		return fmt.Errorf("clearing authors of %s: %w", paperID, err)
	}
	for i, name := range authors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO paper_authors (paper_id, position, name) VALUES (?, ?, ?)`,
			paperID, i, name,
		); err != nil {
			return fmt.Errorf("inserting author of %s: %w", paperID, err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// mustJSON encodes v, which is always a string slice or a plain struct.
func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
