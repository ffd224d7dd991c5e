package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/fable/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "fable:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
