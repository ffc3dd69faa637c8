// Command fseditor serves a browser file editor over HTTP on top of a
// configurable storage backend.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	app := &cli.App{
		Name:    "fseditor",
		Usage:   "HTTP file editor for embedded-style storage",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the configuration file (default: $XDG_CONFIG_HOME/fseditor/config.yaml)",
				EnvVars: []string{"FSEDITOR_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			startCommand(),
			initCommand(),
			chipIDCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
