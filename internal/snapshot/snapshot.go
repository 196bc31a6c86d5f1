// Package snapshot materializes unsaved editor buffers on disk so the tag
// tools, which only read files, can index what the user currently sees.
package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"tagnav/internal/logging"
)

// StagingPrefix starts every staging file name.
const StagingPrefix = "GTEMP-"

// Document is an open source document as the client sees it.
type Document struct {
	Path      string // absolute path of the saved file
	Workspace string // workspace root; empty when the file is opened alone
	Dirty     bool   // unsaved changes exist
	Text      string // full current text; only read when Dirty
}

// Base returns the directory whose index answers queries about d: the
// workspace root if there is one, otherwise the file's own directory.
func (d Document) Base() string {
	if d.Workspace != "" {
		return d.Workspace
	}
	return filepath.Dir(d.Path)
}

// Snapshot is the path a query should actually read.
type Snapshot struct {
	OriginalPath     string
	MaterializedPath string

	// Degraded is set when a dirty buffer could not be written and the
	// last-saved file is used instead.
	Degraded bool
}

// Materialized reports whether the query reads a staging file.
func (s Snapshot) Materialized() bool {
	return s.MaterializedPath != s.OriginalPath
}

// Options configures a Resolver.
type Options struct {
	StagingDir string // hidden directory name under the base, default ".tagnav"
	PerFile    bool   // snapshot dirty buffers (file navigation mode)
	Logger     *slog.Logger
}

// Resolver decides which path a query reads and writes staging files.
// Safe for concurrent use; each document has its own staging file.
type Resolver struct {
	stagingDir string
	perFile    bool
	logger     *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	if opts.StagingDir == "" {
		opts.StagingDir = ".tagnav"
	}
	return &Resolver{
		stagingDir: opts.StagingDir,
		perFile:    opts.PerFile,
		logger:     logging.OrNop(opts.Logger),
	}
}

// StagingDir returns the staging directory used for documents under base.
func (r *Resolver) StagingDir(base string) string {
	return filepath.Join(base, r.stagingDir)
}

// StagingPath returns the fixed staging file for doc. The name is keyed by
// the document path and keeps its extension so the indexer picks the same
// parser as for the real file.
func (r *Resolver) StagingPath(doc Document) string {
	key := strconv.FormatUint(xxhash.Sum64String(doc.Path), 16)
	return filepath.Join(r.StagingDir(doc.Base()), StagingPrefix+key+filepath.Ext(doc.Path))
}

// IsStaging reports whether path names a staging file.
func IsStaging(path string) bool {
	base := filepath.Base(path)
	return len(base) > len(StagingPrefix) && base[:len(StagingPrefix)] == StagingPrefix
}

// Resolve returns the path to query for doc. Clean documents, and every
// document in workspace navigation, resolve to their real path. A dirty
// document has its current text written to its staging file, replacing the
// previous snapshot. A write failure is logged and falls back to the real
// path with Degraded set.
func (r *Resolver) Resolve(doc Document) (Snapshot, error) {
	if doc.Path == "" {
		return Snapshot{}, errors.New("document has no path")
	}
	snap := Snapshot{OriginalPath: doc.Path, MaterializedPath: doc.Path}
	if !doc.Dirty || !r.perFile {
		return snap, nil
	}

	path := r.StagingPath(doc)
	if err := r.write(path, doc.Text); err != nil {
		r.logger.Warn("snapshot failed, using saved file", "path", doc.Path, "error", err)
		snap.Degraded = true
		return snap, nil
	}
	r.logger.Debug("snapshot written", "path", doc.Path, "staging", path)
	snap.MaterializedPath = path
	return snap, nil
}

func (r *Resolver) write(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
