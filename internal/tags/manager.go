package tags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"tagnav/internal/logging"
	"tagnav/internal/notify"
	"tagnav/internal/process"
)

type operation int

const (
	opBuild operation = iota
	opUpdate
	opSingleFile
)

func (op operation) String() string {
	switch op {
	case opBuild:
		return "build"
	case opUpdate:
		return "update"
	default:
		return "file"
	}
}

// Options configures a Manager.
type Options struct {
	Gtags    string // build executable, default "gtags"
	Global   string // query/update executable, default "global"
	Notifier notify.Notifier
	Logger   *slog.Logger
}

// Manager keeps tag databases fresh.
//
// Failures of the tools are never returned as errors: they are logged,
// surfaced as informational notices, and reported as "not ready" (false).
// The only errors returned are context errors from callers that gave up.
type Manager struct {
	runner   process.Runner
	avail    *Availability
	store    Store
	gtags    string
	global   string
	notifier notify.Notifier
	logger   *slog.Logger
	group    singleflight.Group
}

// NewManager creates a Manager running tools through runner and consulting
// avail before every invocation.
func NewManager(runner process.Runner, avail *Availability, opts Options) *Manager {
	if opts.Gtags == "" {
		opts.Gtags = "gtags"
	}
	if opts.Global == "" {
		opts.Global = "global"
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}
	return &Manager{
		runner:   runner,
		avail:    avail,
		gtags:    opts.Gtags,
		global:   opts.Global,
		notifier: opts.Notifier,
		logger:   logging.OrNop(opts.Logger),
	}
}

// Store returns the index store the manager checks.
func (m *Manager) Store() Store {
	return m.store
}

// EnsureIndex makes sure basePath has a usable index and reports whether it
// does. A missing index is always fully built; an existing one is updated
// incrementally only when forceUpdate is set, and otherwise left alone.
func (m *Manager) EnsureIndex(ctx context.Context, basePath string, forceUpdate bool) (bool, error) {
	return m.ensure(ctx, basePath, forceUpdate, false)
}

// Generate is the user-triggered form of EnsureIndex: on success it tells
// the user the tags were updated.
func (m *Manager) Generate(ctx context.Context, basePath string, update bool) (bool, error) {
	return m.ensure(ctx, basePath, update, true)
}

func (m *Manager) ensure(ctx context.Context, basePath string, forceUpdate, announce bool) (bool, error) {
	op := opUpdate
	switch {
	case !m.store.Exists(basePath):
		op = opBuild
	case !forceUpdate:
		m.logger.Debug("index present, skipping build", "base", basePath)
		return true, nil
	}

	ok, err := m.do(ctx, op, basePath, "")
	if ok && announce {
		m.notifier.Info("The tags were updated")
	}
	return ok, err
}

// UpdateSingleFile indexes only fileName, scoped to the directory that
// contains it, by handing gtags a one-line manifest.
func (m *Manager) UpdateSingleFile(ctx context.Context, fileName string) (bool, error) {
	absFile, err := filepath.Abs(fileName)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", fileName, err)
	}
	return m.do(ctx, opSingleFile, filepath.Dir(absFile), absFile)
}

// do runs op once per (op, base, file) even with concurrent callers; each
// caller still stops waiting when its own context ends.
func (m *Manager) do(ctx context.Context, op operation, basePath, file string) (bool, error) {
	if m.avail != nil && !m.avail.Available() {
		return false, nil
	}

	key := op.String() + "\x00" + basePath + "\x00" + file
	ch := m.group.DoChan(key, func() (any, error) {
		return m.invoke(context.WithoutCancel(ctx), op, basePath, file)
	})

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
		return res.Val.(bool), nil
	}
}

func (m *Manager) invoke(ctx context.Context, op operation, basePath, file string) (bool, error) {
	var (
		name   string
		args   []string
		status string
	)
	switch op {
	case opBuild:
		name, status = m.gtags, "Generating tags..."
	case opUpdate:
		name, args, status = m.global, []string{"--update"}, "Updating tags..."
	case opSingleFile:
		manifest, err := m.store.WriteManifest(basePath, file)
		if err != nil {
			m.logger.Error("single-file update failed", "file", file, "error", err)
			m.notifier.Info("Some error occurred: " + err.Error())
			return false, nil
		}
		name, args, status = m.gtags, []string{"--accept-dotfiles", "-f", manifest}, "Indexing file..."
	}

	dismiss := m.notifier.Status(status)
	defer dismiss()

	m.logger.Debug("running tag tool", "op", op.String(), "tool", name, "args", args, "base", basePath)
	res, runErr := m.runner.Run(ctx, name, args, basePath)
	err := process.Check(name, res, runErr)

	var failed *process.ToolFailedError
	switch {
	case err == nil:
		m.logger.Info("tags ready", "op", op.String(), "base", basePath)
		return true, nil
	case process.IsNotFound(err):
		if m.avail != nil {
			m.avail.ReportMissing(ctx)
		}
		return false, nil
	case errors.As(err, &failed):
		m.logger.Warn("tag tool failed", "op", op.String(), "base", basePath, "error", err)
		m.notifier.Info("Some error occurred: " + err.Error())
		return false, nil
	default:
		return false, err
	}
}
