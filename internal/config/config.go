// Package config loads tagnav settings from defaults, an optional
// per-workspace .tagnav.toml, and TAGNAV_* environment variables, in that
// order of precedence (env wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the optional workspace config file.
const FileName = ".tagnav.toml"

// NavigationMode selects how dirty buffers are handled and which lookups
// are offered.
type NavigationMode string

const (
	// NavigationFile queries a single file; unsaved buffers are snapshotted
	// and indexed on their own (default).
	NavigationFile NavigationMode = "file"

	// NavigationWorkspace queries the whole workspace index; enables
	// definition and reference lookups.
	NavigationWorkspace NavigationMode = "workspace"
)

// Config holds navigation and indexing settings.
type Config struct {
	Navigation    NavigationMode `toml:"navigation"`
	Gtags         string         `toml:"gtags"`  // index build executable
	Global        string         `toml:"global"` // query/update executable
	StagingDir    string         `toml:"staging_dir"`
	WatchPatterns []string       `toml:"watch_patterns"`
	DebounceMs    int            `toml:"debounce_ms"`
	StateDB       string         `toml:"state_db"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Navigation:    NavigationFile,
		Gtags:         "gtags",
		Global:        "global",
		StagingDir:    ".tagnav",
		WatchPatterns: []string{"**/*.{cp,Cp,odc,pas,mod,Mod}"},
		DebounceMs:    500,
		StateDB:       filepath.Join(DefaultConfigDir(), "state.db"),
	}
}

// DefaultConfigDir returns the per-user config directory.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tagnav")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tagnav")
}

// Load builds the configuration for a workspace. workspace may be empty,
// in which case no config file is read.
func Load(workspace string) (Config, error) {
	cfg := Default()
	if workspace != "" {
		if err := cfg.MergeFile(filepath.Join(workspace, FileName)); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// MergeFile overlays the keys present in a TOML file. A missing file is not
// an error.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays TAGNAV_* environment variables.
//   - TAGNAV_NAVIGATION: "file" or "workspace"
//   - TAGNAV_GTAGS, TAGNAV_GLOBAL: executable names or paths
//   - TAGNAV_STAGING_DIR: hidden snapshot directory name
//   - TAGNAV_WATCH_PATTERNS: comma-separated doublestar globs
//   - TAGNAV_DEBOUNCE_MS: daemon debounce in milliseconds
//   - TAGNAV_STATE_DB: path of the user state database
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TAGNAV_NAVIGATION"); v != "" {
		switch strings.ToLower(v) {
		case "workspace", "project":
			c.Navigation = NavigationWorkspace
		case "file":
			c.Navigation = NavigationFile
		}
	}
	if v := os.Getenv("TAGNAV_GTAGS"); v != "" {
		c.Gtags = v
	}
	if v := os.Getenv("TAGNAV_GLOBAL"); v != "" {
		c.Global = v
	}
	if v := os.Getenv("TAGNAV_STAGING_DIR"); v != "" {
		c.StagingDir = v
	}
	if v := os.Getenv("TAGNAV_WATCH_PATTERNS"); v != "" {
		var patterns []string
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
		c.WatchPatterns = patterns
	}
	if v := os.Getenv("TAGNAV_DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			c.DebounceMs = ms
		}
	}
	if v := os.Getenv("TAGNAV_STATE_DB"); v != "" {
		c.StateDB = v
	}
}

// Validate rejects settings the rest of the system cannot work with.
func (c Config) Validate() error {
	switch c.Navigation {
	case NavigationFile, NavigationWorkspace:
	default:
		return fmt.Errorf("invalid navigation mode %q (want %q or %q)", c.Navigation, NavigationFile, NavigationWorkspace)
	}
	if c.Gtags == "" || c.Global == "" {
		return fmt.Errorf("gtags and global executables must be set")
	}
	if c.StagingDir == "" || filepath.IsAbs(c.StagingDir) || strings.ContainsRune(c.StagingDir, filepath.Separator) {
		return fmt.Errorf("staging_dir must be a single relative directory name, got %q", c.StagingDir)
	}
	// gtags skips dot directories; a visible one would index the snapshots.
	if !strings.HasPrefix(c.StagingDir, ".") || c.StagingDir == "." || c.StagingDir == ".." {
		return fmt.Errorf("staging_dir must be a hidden directory name starting with '.', got %q", c.StagingDir)
	}
	return nil
}

// PerFile reports whether dirty buffers are snapshotted per file.
func (c Config) PerFile() bool {
	return c.Navigation == NavigationFile
}

// String returns a short description for logs.
func (c Config) String() string {
	return fmt.Sprintf("navigation=%s gtags=%s global=%s", c.Navigation, c.Gtags, c.Global)
}
