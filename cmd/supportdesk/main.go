// Package main is the entry point for the supportdesk server and CLI.
package main

import (
	"os"

	"github.com/shindakun/supportdesk/internal/version"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = version.GetFullVersion()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
