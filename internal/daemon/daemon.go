// Package daemon keeps the tag databases of registered workspaces fresh in
// the background. It watches source files and runs an incremental update
// shortly after they stop changing.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	ignore "github.com/sabhiram/go-gitignore"

	"tagnav/internal/config"
	"tagnav/internal/logging"
	"tagnav/internal/snapshot"
	"tagnav/internal/state"
)

// Registry is the persistent list of watched workspaces. *state.Store
// implements it.
type Registry interface {
	AddWorkspace(path string) error
	RemoveWorkspace(path string) error
	SetLastIndexed(path string) error
	WatchedWorkspaces() ([]state.Workspace, error)
}

// Indexer refreshes the index of a workspace. *tags.Manager implements it.
type Indexer interface {
	EnsureIndex(ctx context.Context, basePath string, forceUpdate bool) (bool, error)
}

// Daemon manages background file watching and indexing
type Daemon struct {
	registry Registry
	indexer  Indexer
	cfg      Config
	watcher  *fsnotify.Watcher

	indexQueue  chan string
	debounceMap map[string]*time.Timer
	debounceMu  sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
	logger    *slog.Logger
	logFile   *os.File
	logOnce   sync.Once
}

// Status represents the current state of the daemon
type Status struct {
	Running           bool      `json:"running"`
	PID               int       `json:"pid"`
	StartedAt         time.Time `json:"started_at"`
	WatchedWorkspaces int       `json:"watched_workspaces"`
	TotalWatches      int       `json:"total_watches"`
}

// Config holds daemon configuration
type Config struct {
	Debounce   time.Duration
	Patterns   []string // doublestar globs, relative to the workspace root
	StagingDir string   // snapshot directory name, never watched
	LogPath    string
	PIDPath    string
	SocketPath string
}

// DefaultConfig returns the daemon configuration derived from cfg.
func DefaultConfig(cfg config.Config) Config {
	dir := config.DefaultConfigDir()
	return Config{
		Debounce:   time.Duration(cfg.DebounceMs) * time.Millisecond,
		Patterns:   cfg.WatchPatterns,
		StagingDir: cfg.StagingDir,
		LogPath:    filepath.Join(dir, "daemon.log"),
		PIDPath:    filepath.Join(dir, "daemon.pid"),
		SocketPath: DefaultSocketPath(),
	}
}

// New creates a daemon. When cfg.LogPath is set the daemon logs there;
// otherwise it uses logger.
func New(reg Registry, indexer Indexer, cfg Config, logger *slog.Logger) (*Daemon, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	for _, p := range cfg.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid watch pattern %q", p)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	var logFile *os.File
	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0755); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to create log dir: %w", err)
		}
		logFile, err = os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logCfg := logging.LoadConfigFromEnv("tagnav-daemon")
		logCfg.Output = logFile
		logger = logging.New(logCfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		registry:    reg,
		indexer:     indexer,
		cfg:         cfg,
		watcher:     watcher,
		indexQueue:  make(chan string, 100),
		debounceMap: make(map[string]*time.Timer),
		ctx:         ctx,
		cancel:      cancel,
		startedAt:   time.Now(),
		logger:      logging.OrNop(logger),
		logFile:     logFile,
	}, nil
}

// Run starts the daemon and blocks until a signal, Stop, or an IPC "stop".
func (d *Daemon) Run() error {
	d.logger.Info("daemon starting")

	if d.cfg.PIDPath != "" {
		if err := os.WriteFile(d.cfg.PIDPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer os.Remove(d.cfg.PIDPath)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	d.watchAllWorkspaces()

	ipcServer, err := NewIPCServer(d.cfg.SocketPath, d, d.logger)
	if err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	defer ipcServer.Close()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); ipcServer.Serve(d.ctx) }()
	go func() { defer wg.Done(); d.indexWorker() }()
	go func() { defer wg.Done(); d.watcherLoop() }()

	d.logger.Info("daemon started", "pid", os.Getpid(), "socket", d.cfg.SocketPath)

	select {
	case sig := <-sigChan:
		d.logger.Info("received signal", "signal", sig)
	case <-d.ctx.Done():
		d.logger.Info("stop requested")
	}

	d.logger.Info("daemon shutting down")
	d.shutdown()
	ipcServer.Close()
	wg.Wait()
	d.logger.Info("daemon stopped")
	d.closeLog()
	return nil
}

// Stop signals the daemon to shut down
func (d *Daemon) Stop() {
	d.cancel()
}

// Close stops the daemon and releases the watcher and log file.
func (d *Daemon) Close() error {
	err := d.shutdown()
	d.closeLog()
	return err
}

// shutdown cancels pending work and closes the watcher. The log file stays
// open for the goroutines still draining.
func (d *Daemon) shutdown() error {
	d.cancel()

	d.debounceMu.Lock()
	for ws, timer := range d.debounceMap {
		timer.Stop()
		delete(d.debounceMap, ws)
	}
	d.debounceMu.Unlock()

	return d.watcher.Close()
}

func (d *Daemon) closeLog() {
	d.logOnce.Do(func() {
		if d.logFile != nil {
			d.logFile.Close()
		}
	})
}

// Status returns the current daemon status
func (d *Daemon) Status() Status {
	workspaces, err := d.registry.WatchedWorkspaces()
	if err != nil {
		d.logger.Warn("listing workspaces failed", "error", err)
	}
	return Status{
		Running:           d.ctx.Err() == nil,
		PID:               os.Getpid(),
		StartedAt:         d.startedAt,
		WatchedWorkspaces: len(workspaces),
		TotalWatches:      len(d.watcher.WatchList()),
	}
}

func (d *Daemon) watchAllWorkspaces() {
	workspaces, err := d.registry.WatchedWorkspaces()
	if err != nil {
		d.logger.Error("listing workspaces failed", "error", err)
		return
	}
	d.logger.Info("watching workspaces", "count", len(workspaces))

	for _, ws := range workspaces {
		if err := d.watchWorkspace(ws.Path); err != nil {
			d.logger.Error("failed to watch workspace", "path", ws.Path, "error", err)
		}
	}
}

// maxWatchesPerWorkspace limits file watchers to prevent file descriptor exhaustion
const maxWatchesPerWorkspace = 1000

// watchWorkspace adds watches for all directories in a workspace
func (d *Daemon) watchWorkspace(root string) error {
	count := 0
	var limitReached bool
	gi := loadGitignore(root)

	err := filepath.WalkDir(root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && d.skipDir(root, path, gi) {
			return filepath.SkipDir
		}
		if count >= maxWatchesPerWorkspace {
			if !limitReached {
				d.logger.Warn("reached max watches limit", "limit", maxWatchesPerWorkspace, "workspace", root)
				limitReached = true
			}
			return filepath.SkipDir
		}
		if err := d.watcher.Add(path); err != nil {
			d.logger.Debug("watch failed", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
	d.logger.Debug("added watches", "count", count, "workspace", root)
	return err
}

func (d *Daemon) skipDir(root, path string, gi *ignore.GitIgnore) bool {
	name := filepath.Base(path)
	if name == d.cfg.StagingDir || isIgnoredDir(name) {
		return true
	}
	if gi != nil {
		if rel, err := filepath.Rel(root, path); err == nil && gi.MatchesPath(rel+"/") {
			return true
		}
	}
	return false
}

// unwatchWorkspace removes watches for a workspace
func (d *Daemon) unwatchWorkspace(root string) {
	for _, path := range d.watcher.WatchList() {
		if path == root || isSubpath(path, root) {
			d.watcher.Remove(path)
		}
	}
}

func (d *Daemon) watcherLoop() {
	for {
		select {
		case <-d.ctx.Done():
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			d.handleEvent(event)
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Error("watcher error", "error", err)
		}
	}
}

// handleEvent processes a file system event with debouncing
func (d *Daemon) handleEvent(event fsnotify.Event) {
	workspace := d.findWorkspaceForPath(event.Name)
	if workspace == "" {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !d.skipDir(workspace, event.Name, nil) {
				d.watcher.Add(event.Name)
			}
			return
		}
	}

	if !d.matches(workspace, event.Name) {
		return
	}
	d.schedule(workspace)
}

// schedule (re)starts the debounce timer of a workspace.
func (d *Daemon) schedule(workspace string) {
	d.debounceMu.Lock()
	defer d.debounceMu.Unlock()

	if timer, ok := d.debounceMap[workspace]; ok {
		timer.Stop()
	}
	d.debounceMap[workspace] = time.AfterFunc(d.cfg.Debounce, func() {
		d.debounceMu.Lock()
		delete(d.debounceMap, workspace)
		d.debounceMu.Unlock()

		select {
		case d.indexQueue <- workspace:
			d.logger.Debug("queued reindex", "workspace", workspace)
		default:
			d.logger.Warn("index queue full, skipping", "workspace", workspace)
		}
	})
}

// matches reports whether a changed file should trigger a reindex.
func (d *Daemon) matches(workspace, path string) bool {
	rel, err := filepath.Rel(workspace, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, d.cfg.StagingDir+"/") || isTagFile(filepath.Base(rel)) || snapshot.IsStaging(path) {
		return false
	}
	if len(d.cfg.Patterns) == 0 {
		return true
	}
	for _, pattern := range d.cfg.Patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// findWorkspaceForPath returns the innermost workspace containing path.
func (d *Daemon) findWorkspaceForPath(path string) string {
	workspaces, err := d.registry.WatchedWorkspaces()
	if err != nil {
		d.logger.Warn("listing workspaces failed", "error", err)
		return ""
	}
	var best string
	for _, ws := range workspaces {
		if isSubpath(path, ws.Path) && len(ws.Path) > len(best) {
			best = ws.Path
		}
	}
	return best
}

func (d *Daemon) indexWorker() {
	for {
		select {
		case <-d.ctx.Done():
			return
		case workspace := <-d.indexQueue:
			d.runIndex(workspace)
		}
	}
}

func (d *Daemon) runIndex(workspace string) {
	d.logger.Info("indexing", "workspace", workspace)

	ok, err := d.indexer.EnsureIndex(d.ctx, workspace, true)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			d.logger.Error("index failed", "workspace", workspace, "error", err)
		}
		return
	}
	if !ok {
		d.logger.Warn("index not updated", "workspace", workspace)
		return
	}

	d.logger.Info("index completed", "workspace", workspace)
	if err := d.registry.SetLastIndexed(workspace); err != nil {
		d.logger.Error("failed to update registry", "error", err)
	}
}

// AddWorkspace registers and starts watching a workspace.
func (d *Daemon) AddWorkspace(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := d.registry.AddWorkspace(abs); err != nil {
		return err
	}
	if err := d.watchWorkspace(abs); err != nil {
		return err
	}
	return d.TriggerReindex(abs)
}

// RemoveWorkspace stops watching and unregisters a workspace.
func (d *Daemon) RemoveWorkspace(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	d.unwatchWorkspace(abs)
	return d.registry.RemoveWorkspace(abs)
}

// TriggerReindex queues a workspace for immediate reindexing
func (d *Daemon) TriggerReindex(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	select {
	case d.indexQueue <- abs:
		return nil
	default:
		return fmt.Errorf("index queue full")
	}
}

// isIgnoredDir returns true if the directory should be skipped
func isIgnoredDir(name string) bool {
	switch name {
	case ".git", ".svn", ".hg", ".idea", ".vscode", "node_modules", ".cache":
		return true
	}
	return false
}

// isTagFile reports files written by the tag tools themselves.
func isTagFile(name string) bool {
	switch name {
	case "GTAGS", "GRTAGS", "GPATH", "GSYMS", "GLIST":
		return true
	}
	return false
}

// isSubpath returns true if child is strictly under parent
func isSubpath(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// loadGitignore loads gitignore patterns from local .gitignore and global ~/.gitignore
func loadGitignore(root string) *ignore.GitIgnore {
	var patterns []string
	if home, err := os.UserHomeDir(); err == nil {
		patterns = append(patterns, readIgnoreFile(filepath.Join(home, ".gitignore"))...)
	}
	patterns = append(patterns, readIgnoreFile(filepath.Join(root, ".gitignore"))...)

	if len(patterns) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(patterns...)
}

func readIgnoreFile(path string) []string {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var patterns []string
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
