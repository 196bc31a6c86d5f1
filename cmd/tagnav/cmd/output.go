package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"tagnav/internal/symbols"
)

var jsonOutput bool

// printRecords writes records as JSON or in the tag tool's line format.
func printRecords(w io.Writer, records []symbols.Record) error {
	if jsonOutput {
		if records == nil {
			records = []symbols.Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	for _, r := range records {
		if _, err := fmt.Fprintln(w, r.Format()); err != nil {
			return err
		}
	}
	return nil
}
