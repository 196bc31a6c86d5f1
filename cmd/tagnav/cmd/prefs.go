package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tagnav/internal/config"
	"tagnav/internal/state"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or reset stored preferences",
	RunE:  runPrefsShow,
}

var prefsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Show the missing-tool prompt again",
	RunE:  runPrefsReset,
}

func init() {
	prefsCmd.AddCommand(prefsResetCmd)
}

func openState() (*state.Store, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	return state.Open(cfg.StateDB)
}

func runPrefsShow(cmd *cobra.Command, args []string) error {
	store, err := openState()
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "state: %s\n%s: %t\n", store.Path(), state.KeyAskForGlobal, store.AskForToolAvailability())
	return nil
}

func runPrefsReset(cmd *cobra.Command, args []string) error {
	store, err := openState()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Reset(state.KeyAskForGlobal); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "preferences reset")
	return nil
}
