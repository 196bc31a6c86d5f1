package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	workspaceFlag  string
	navigationFlag string
)

var rootCmd = &cobra.Command{
	Use:          "tagnav",
	Short:        "tagnav - source navigation backed by GNU GLOBAL",
	Long:         "Builds and queries GNU GLOBAL tag databases and turns their output into typed symbol records.",
	Version:      version,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "Workspace root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&navigationFlag, "navigation", "", `Navigation mode, "file" or "workspace" (overrides config)`)

	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(defCmd)
	rootCmd.AddCommand(refsCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(updateFileCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(prefsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(daemonCmd)
}

// workspaceRoot returns the absolute workspace root.
func workspaceRoot() (string, error) {
	dir := workspaceFlag
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}
	return filepath.Abs(dir)
}
