// Package main is the entry point for the foodcsp CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/roach88/foodcsp/internal/cli"
	"github.com/roach88/foodcsp/internal/ir"
)

// Build information injected via ldflags at build time.
var (
	version = ir.EngineVersion
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := cli.NewRootCommand()
	root.Version = fmt.Sprintf("%s (commit: %s, record schema %s)", version, commit, ir.SchemaVersion)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
