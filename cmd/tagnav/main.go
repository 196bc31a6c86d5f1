// tagnav provides source navigation for Component Pascal and other
// languages indexed by GNU GLOBAL.
package main

import (
	"os"

	"tagnav/cmd/tagnav/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
