// Package main is the entry point for the mns CLI.
package main

import (
	"os"

	"github.com/mrz1836/mns/internal/cli"
)

// Set at build time via -ldflags.
//
//nolint:gochecknoglobals // link-time variables
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	cli.SetBuildInfo(version, commit, date)
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
