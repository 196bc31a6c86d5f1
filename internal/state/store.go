// Package state persists per-user tagnav state in a SQLite database:
// preferences such as the "don't ask again" answer for the missing-tool
// prompt, and the registry of workspaces the daemon keeps indexed.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS preferences (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS workspaces (
    path TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    added_at INTEGER NOT NULL,
    last_indexed INTEGER,
    watch_enabled INTEGER NOT NULL DEFAULT 1
);
`

// Preference keys.
const (
	// KeyAskForGlobal is true until the user picks "Don't show again" on the
	// missing-tool prompt.
	KeyAskForGlobal = "ask_for_global_available"
)

// Store is the user state database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the state database at path. ":memory:" gives a
// private in-memory store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}
	// One connection: SQLite has a single writer, and each :memory:
	// connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting WAL mode: %w", err)
		}
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	var version int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
		if err != nil {
			return fmt.Errorf("setting schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	if version < schemaVersion {
		if _, err := db.Exec("UPDATE schema_version SET version = ?", schemaVersion); err != nil {
			return fmt.Errorf("updating schema version: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Bool reads a boolean preference, returning def when it was never set.
func (s *Store) Bool(key string, def bool) (bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("reading preference %s: %w", key, err)
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return def, fmt.Errorf("preference %s: %w", key, err)
	}
	return b, nil
}

// SetBool stores a boolean preference.
func (s *Store) SetBool(key string, value bool) error {
	_, err := s.db.Exec(
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, strconv.FormatBool(value))
	if err != nil {
		return fmt.Errorf("writing preference %s: %w", key, err)
	}
	return nil
}

// Reset removes a preference so its default applies again.
func (s *Store) Reset(key string) error {
	if _, err := s.db.Exec("DELETE FROM preferences WHERE key = ?", key); err != nil {
		return fmt.Errorf("resetting preference %s: %w", key, err)
	}
	return nil
}

// AskForToolAvailability reports whether the missing-tool prompt may be
// shown. Read errors fall back to asking.
func (s *Store) AskForToolAvailability() bool {
	ask, err := s.Bool(KeyAskForGlobal, true)
	if err != nil {
		return true
	}
	return ask
}

// SetAskForToolAvailability persists the prompt preference.
func (s *Store) SetAskForToolAvailability(ask bool) error {
	return s.SetBool(KeyAskForGlobal, ask)
}
