// Package tags manages the GNU GLOBAL tag database of a directory: deciding
// between full builds, incremental updates and single-file updates, and
// tracking whether the tools are installed at all.
package tags

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// MarkerName is the file whose presence means a directory is indexed.
	MarkerName = "GTAGS"

	// ManifestName is the file list handed to gtags for single-file updates.
	ManifestName = "GLIST"
)

// Store answers questions about the on-disk index of a base directory.
type Store struct{}

// MarkerPath returns the index marker path for basePath.
func (Store) MarkerPath(basePath string) string {
	return filepath.Join(basePath, MarkerName)
}

// Exists reports whether basePath holds an index.
func (s Store) Exists(basePath string) bool {
	info, err := os.Stat(s.MarkerPath(basePath))
	return err == nil && !info.IsDir()
}

// WriteManifest writes a one-entry file list naming fileName into basePath
// and returns its path.
func (Store) WriteManifest(basePath, fileName string) (string, error) {
	path := filepath.Join(basePath, ManifestName)
	if err := os.WriteFile(path, []byte(fileName+"\n"), 0644); err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	return path, nil
}
