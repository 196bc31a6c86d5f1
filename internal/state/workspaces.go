package state

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// DefaultMaxWorkspaces caps the number of registered workspaces.
const DefaultMaxWorkspaces = 50

// ErrWorkspaceNotFound is returned for paths that were never registered.
var ErrWorkspaceNotFound = errors.New("workspace not found")

// Workspace is a registered workspace root.
type Workspace struct {
	Path         string     `json:"path"`
	Name         string     `json:"name"`
	AddedAt      time.Time  `json:"added_at"`
	LastIndexed  *time.Time `json:"last_indexed,omitempty"`
	WatchEnabled bool       `json:"watch_enabled"`
}

// AddWorkspace registers a workspace root. Registering the same path twice
// is a no-op.
func (s *Store) AddWorkspace(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("getting absolute path: %w", err)
	}

	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM workspaces WHERE path = ?", absPath).Scan(&exists); err != nil {
		return fmt.Errorf("checking workspace: %w", err)
	}
	if exists > 0 {
		return nil
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM workspaces").Scan(&count); err != nil {
		return fmt.Errorf("counting workspaces: %w", err)
	}
	if count >= DefaultMaxWorkspaces {
		return fmt.Errorf("maximum number of workspaces (%d) reached", DefaultMaxWorkspaces)
	}

	_, err = s.db.Exec(
		"INSERT INTO workspaces (path, name, added_at, watch_enabled) VALUES (?, ?, ?, 1)",
		absPath, filepath.Base(absPath), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("adding workspace: %w", err)
	}
	return nil
}

// RemoveWorkspace unregisters a workspace root.
func (s *Store) RemoveWorkspace(path string) error {
	return s.updateWorkspace(path, "DELETE FROM workspaces WHERE path = ?")
}

// SetLastIndexed records that the workspace index was just refreshed.
func (s *Store) SetLastIndexed(path string) error {
	return s.updateWorkspace(path, "UPDATE workspaces SET last_indexed = ? WHERE path = ?", time.Now().Unix())
}

// SetWatchEnabled turns background re-indexing on or off for a workspace.
func (s *Store) SetWatchEnabled(path string, enabled bool) error {
	return s.updateWorkspace(path, "UPDATE workspaces SET watch_enabled = ? WHERE path = ?", enabled)
}

func (s *Store) updateWorkspace(path, query string, args ...any) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("getting absolute path: %w", err)
	}
	res, err := s.db.Exec(query, append(args, absPath)...)
	if err != nil {
		return fmt.Errorf("updating workspace %s: %w", absPath, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrWorkspaceNotFound, path)
	}
	return nil
}

// Workspace returns one registered workspace.
func (s *Store) Workspace(path string) (*Workspace, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	list, err := s.queryWorkspaces("WHERE path = ?", absPath)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, path)
	}
	return &list[0], nil
}

// Workspaces lists all registered workspaces ordered by path.
func (s *Store) Workspaces() ([]Workspace, error) {
	return s.queryWorkspaces("")
}

// WatchedWorkspaces lists workspaces with watching enabled.
func (s *Store) WatchedWorkspaces() ([]Workspace, error) {
	return s.queryWorkspaces("WHERE watch_enabled = 1")
}

func (s *Store) queryWorkspaces(where string, args ...any) ([]Workspace, error) {
	rows, err := s.db.Query(
		"SELECT path, name, added_at, last_indexed, watch_enabled FROM workspaces "+where+" ORDER BY path",
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying workspaces: %w", err)
	}
	defer rows.Close()

	var out []Workspace
	for rows.Next() {
		var (
			w           Workspace
			addedAt     int64
			lastIndexed sql.NullInt64
		)
		if err := rows.Scan(&w.Path, &w.Name, &addedAt, &lastIndexed, &w.WatchEnabled); err != nil {
			return nil, fmt.Errorf("scanning workspace: %w", err)
		}
		w.AddedAt = time.Unix(addedAt, 0)
		if lastIndexed.Valid {
			t := time.Unix(lastIndexed.Int64, 0)
			w.LastIndexed = &t
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
