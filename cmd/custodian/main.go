// Command custodian catalogs digital evidence with a chain of custody.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/custodian/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
