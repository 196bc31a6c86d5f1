package cmd

import (
	"fmt"
	"log/slog"

	"tagnav/internal/config"
	"tagnav/internal/logging"
	"tagnav/internal/notify"
	"tagnav/internal/process"
	"tagnav/internal/query"
	"tagnav/internal/snapshot"
	"tagnav/internal/state"
	"tagnav/internal/tags"
)

// app is the wired component graph shared by the commands.
type app struct {
	root     string
	cfg      config.Config
	logger   *slog.Logger
	store    *state.Store
	runner   process.Runner
	avail    *tags.Availability
	manager  *tags.Manager
	executor *query.Executor
}

// newApp loads configuration for the workspace and wires every component.
// interactive controls whether the missing-tool prompt may read stdin.
func newApp(interactive bool) (*app, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if navigationFlag != "" {
		cfg.Navigation = config.NavigationMode(navigationFlag)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger := logging.Default("tagnav")
	logger.Debug("configuration loaded", "workspace", root, "config", cfg.String())

	store, err := state.Open(cfg.StateDB)
	if err != nil {
		return nil, fmt.Errorf("opening state: %w", err)
	}

	console := notify.NewConsole(logger)
	if !interactive {
		console.Interactive = &interactive
	}

	runner := process.ExecRunner{}
	avail := tags.NewAvailability(cfg.Global, store, console, logger)
	manager := tags.NewManager(runner, avail, tags.Options{
		Gtags:    cfg.Gtags,
		Global:   cfg.Global,
		Notifier: console,
		Logger:   logger,
	})
	resolver := snapshot.NewResolver(snapshot.Options{
		StagingDir: cfg.StagingDir,
		PerFile:    cfg.PerFile(),
		Logger:     logger,
	})
	executor := query.NewExecutor(runner, manager, resolver, query.Options{
		Global:       cfg.Global,
		Availability: avail,
		Notifier:     console,
		Logger:       logger,
	})

	return &app{
		root:     root,
		cfg:      cfg,
		logger:   logger,
		store:    store,
		runner:   runner,
		avail:    avail,
		manager:  manager,
		executor: executor,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
