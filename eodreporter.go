package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/susylPearl/eod-auto-reporter/cmd"
	"github.com/susylPearl/eod-auto-reporter/internal/logging"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "eodreporter",
		Usage:   "Aggregate your daily GitHub, ClickUp, and Slack activity into an end-of-day Slack report",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   "eodreporter.toml",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (trace, debug, info, warn, error)",
				Value: "info",
			},
		},
		Before: func(c *cli.Context) error {
			logging.Setup(c.String("log-level"))
			return nil
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.ReportCommand(),
			cmd.NoteCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
