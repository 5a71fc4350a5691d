// Package main is the entry point for coursedesk-cli.
package main

import (
	"context"
	"os"

	"github.com/coursedesk/coursedesk/internal/cli"
)

// Set at build time via ldflags.
var (
	version   = "dev"
	commit    = ""
	buildTime = ""
)

func main() {
	err := cli.Execute(context.Background(), os.Args[1:], cli.Options{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1) //nolint:forbidigo // CLI must report failure to the shell
	}
}
