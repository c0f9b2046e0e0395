// Command offset runs the carbon credit record ledger.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/offset/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if !cli.IsReported(err) && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
