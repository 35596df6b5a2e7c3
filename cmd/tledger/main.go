package main

import (
	"context"
	"fmt"
	"os"

	app "github.com/valter-silva-au/taskledger/internal"
	"github.com/valter-silva-au/taskledger/internal/cli"
)

// Set by ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	basePath := app.ResolveBasePath()

	a, err := app.NewApp(context.Background(), basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing tledger: %v\n", err)
		os.Exit(cli.ExitFatal)
	}

	runErr := cli.Execute()
	if err := a.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(cli.ExitCode(runErr))
	}
}
