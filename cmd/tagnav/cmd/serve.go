package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tagnav/internal/mcp"
	"tagnav/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve navigation tools over MCP on stdin/stdout",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// stdin carries the protocol, so prompts cannot read from it.
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.avail.Probe(ctx, a.runner, a.root)

	server := mcp.NewServer("tagnav", version, a.logger)
	tools.RegisterAll(server, tools.Deps{
		Navigator: a.executor,
		Generator: a.manager,
		Root:      a.root,
		Mode:      a.cfg.Navigation,
	})

	a.logger.Info("starting MCP server", "workspace", a.root, "navigation", a.cfg.Navigation, "tools", server.Tools())
	return server.Run(ctx)
}
