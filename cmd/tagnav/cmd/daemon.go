package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"tagnav/internal/daemon"
)

var (
	foreground bool
	noWatch    bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the background re-index daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon (runs until stopped)",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE:  runDaemonStatus,
}

var daemonAddCmd = &cobra.Command{
	Use:   "add [DIR]",
	Short: "Watch a workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDaemonWorkspace(daemon.ActionAdd),
}

var daemonRemoveCmd = &cobra.Command{
	Use:   "remove [DIR]",
	Short: "Stop watching a workspace",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDaemonWorkspace(daemon.ActionRemove),
}

var daemonReindexCmd = &cobra.Command{
	Use:   "reindex [DIR]",
	Short: "Update a workspace's tags now",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDaemonWorkspace(daemon.ActionReindex),
}

var daemonListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered workspaces",
	RunE:  runDaemonList,
}

func init() {
	daemonStartCmd.Flags().BoolVar(&foreground, "foreground", false, "Log to stderr instead of the daemon log file")
	daemonAddCmd.Flags().BoolVar(&noWatch, "no-watch", false, "Register the workspace without background re-indexing")
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonStatusCmd, daemonAddCmd, daemonRemoveCmd, daemonReindexCmd, daemonListCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := daemon.DefaultConfig(a.cfg)
	client := daemon.NewIPCClient(cfg.SocketPath)
	if client.IsRunning() {
		return errors.New("daemon is already running")
	}
	if foreground {
		cfg.LogPath = ""
	}

	d, err := daemon.New(a.store, a.manager, cfg, a.logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "daemon listening on %s\n", cfg.SocketPath)
	return d.Run()
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	client := daemon.NewIPCClient(daemon.DefaultSocketPath())
	if !client.IsRunning() {
		return errors.New("daemon is not running")
	}
	if err := client.Stop(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "daemon stopped")
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	status, err := daemon.NewIPCClient(daemon.DefaultSocketPath()).Status()
	if err != nil {
		return fmt.Errorf("daemon is not running: %w", err)
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// runDaemonWorkspace sends a workspace action to the running daemon. With
// no daemon, add and remove still update the registry so the next start
// picks them up.
func runDaemonWorkspace(action string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		dir, err := workspaceRoot()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			if dir, err = filepath.Abs(args[0]); err != nil {
				return err
			}
		}

		if action == daemon.ActionAdd && noWatch {
			return addUnwatched(cmd, dir)
		}

		client := daemon.NewIPCClient(daemon.DefaultSocketPath())
		if client.IsRunning() {
			resp, err := client.Send(daemon.Command{Action: action, Path: dir})
			if err != nil {
				return err
			}
			if resp.Status != "ok" {
				return errors.New(resp.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		}

		store, err := openState()
		if err != nil {
			return err
		}
		defer store.Close()

		switch action {
		case daemon.ActionAdd:
			err = store.AddWorkspace(dir)
		case daemon.ActionRemove:
			err = store.RemoveWorkspace(dir)
		default:
			return errors.New("daemon is not running")
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (daemon not running)\n", action, dir)
		return nil
	}
}

// addUnwatched registers dir in the state database with watching off, so a
// running daemon never picks it up.
func addUnwatched(cmd *cobra.Command, dir string) error {
	store, err := openState()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.AddWorkspace(dir); err != nil {
		return err
	}
	if err := store.SetWatchEnabled(dir, false); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added %s (not watched)\n", dir)
	return nil
}

func runDaemonList(cmd *cobra.Command, args []string) error {
	store, err := openState()
	if err != nil {
		return err
	}
	defer store.Close()

	workspaces, err := store.Workspaces()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, ws := range workspaces {
		indexed := "never"
		if ws.LastIndexed != nil {
			indexed = ws.LastIndexed.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "%s\twatch=%t\tindexed=%s\n", ws.Path, ws.WatchEnabled, indexed)
	}
	return nil
}
