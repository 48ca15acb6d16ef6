// Package main provides the entry point for the assetsync CLI tool.
package main

import (
	"os"

	"github.com/bcgov/bcparks-asset-sync/cmd/assetsync/app"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	application, err := app.New(version, commit, date)
	if err != nil {
		app.ExitOnError(err)
	}

	// Context cancelled on SIGINT/SIGTERM for graceful shutdown.
	ctx, cancel := app.Context()
	defer cancel()

	if err := application.Execute(ctx, os.Args[1:]); err != nil {
		app.ExitOnError(err)
	}
}
