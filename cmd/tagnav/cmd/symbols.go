package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"tagnav/internal/config"
	"tagnav/internal/snapshot"
)

var readStdin bool

var symbolsCmd = &cobra.Command{
	Use:   "symbols FILE",
	Short: "List the symbols declared in a file",
	Long:  "Lists the symbols declared in FILE. With --stdin the unsaved buffer is read from standard input and indexed on its own.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbols,
}

var defCmd = &cobra.Command{
	Use:   "def WORD",
	Short: "Find where WORD is declared (workspace navigation)",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup(false),
}

var refsCmd = &cobra.Command{
	Use:   "refs WORD",
	Short: "Find where WORD is used (workspace navigation)",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup(true),
}

func init() {
	symbolsCmd.Flags().BoolVar(&readStdin, "stdin", false, "Read the current (unsaved) text of FILE from stdin")
	for _, c := range []*cobra.Command{symbolsCmd, defCmd, refsCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "Print records as JSON")
	}
}

func runSymbols(cmd *cobra.Command, args []string) error {
	a, err := newApp(!readStdin)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.document(args[0])
	if err != nil {
		return err
	}
	if readStdin {
		text, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		doc.Dirty, doc.Text = true, string(text)
	}

	records, err := a.executor.DocumentSymbols(cmd.Context(), doc)
	if err != nil {
		return err
	}
	return printRecords(cmd.OutOrStdout(), records)
}

func runLookup(references bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.Navigation != config.NavigationWorkspace {
			return fmt.Errorf("%s needs workspace navigation (set navigation = %q in %s or pass --navigation workspace)",
				cmd.Name(), config.NavigationWorkspace, config.FileName)
		}

		doc := snapshot.Document{Path: a.root, Workspace: a.root}
		lookup := a.executor.Definitions
		if references {
			lookup = a.executor.References
		}
		records, err := lookup(cmd.Context(), doc, args[0])
		if err != nil {
			return err
		}
		return printRecords(cmd.OutOrStdout(), records)
	}
}

// document describes a file argument, inside the workspace when it lies
// under the workspace root.
func (a *app) document(path string) (snapshot.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return snapshot.Document{}, err
	}
	doc := snapshot.Document{Path: abs}
	if rel, err := filepath.Rel(a.root, abs); err == nil && filepath.IsLocal(rel) {
		doc.Workspace = a.root
	}
	return doc, nil
}
