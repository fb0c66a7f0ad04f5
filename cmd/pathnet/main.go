// Package main provides the entry point for pathnet.
//
// pathnet replays connection traces against the connection registry,
// inspects checkpoint files and manages configuration.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/pathnet-go/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
