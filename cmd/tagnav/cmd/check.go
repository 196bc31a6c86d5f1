package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the tag tools are installed",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if !a.avail.Probe(cmd.Context(), a.runner, a.root) {
		return fmt.Errorf("%s is not available", a.cfg.Global)
	}
	fmt.Fprintf(out, "%s is available\n", a.cfg.Global)
	fmt.Fprintf(out, "navigation: %s\n", a.cfg.Navigation)
	fmt.Fprintf(out, "index: %t\n", a.manager.Store().Exists(a.root))
	return nil
}
