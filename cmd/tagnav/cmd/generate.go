package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate [DIR]",
	Short: "Build the tag database if it does not exist",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGenerate(false),
}

var updateCmd = &cobra.Command{
	Use:   "update [DIR]",
	Short: "Build the tag database, or update it incrementally",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runGenerate(true),
}

var updateFileCmd = &cobra.Command{
	Use:   "update-file FILE",
	Short: "Index a single file into the tag database of its directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpdateFile,
}

func runGenerate(update bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		base := a.root
		if len(args) == 1 {
			if base, err = filepath.Abs(args[0]); err != nil {
				return err
			}
		}

		ok, err := a.manager.Generate(cmd.Context(), base, update)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("tags not generated for %s", base)
		}
		return nil
	}
}

func runUpdateFile(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ok, err := a.manager.UpdateSingleFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s was not indexed", args[0])
	}
	return nil
}
