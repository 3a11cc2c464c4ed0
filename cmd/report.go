package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
	"github.com/susylPearl/eod-auto-reporter/internal/pipeline"
	"github.com/susylPearl/eod-auto-reporter/internal/summary"
)

// ReportCommand returns the report command
func ReportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Run one report now",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Print the plain-text report instead of posting to Slack",
			},
			&cli.StringFlag{
				Name:  "date",
				Usage: "Report on `DATE` (YYYY-MM-DD) instead of today; implies --dry-run",
			},
		},
		Action: runReport,
	}
}

func runReport(c *cli.Context) error {
	a, err := loadApp(c)
	if err != nil {
		return err
	}

	if c.Bool("dry-run") || c.String("date") != "" {
		return runDry(c, a)
	}

	run, err := a.pipe.RunOnce(c.Context, pipeline.TriggerManual)
	if err != nil {
		return err
	}

	for source, msg := range run.Errors {
		log.Warn().Str("source", source).Str("error", msg).Msg("source failed")
	}
	switch run.Outcome {
	case pipeline.OutcomeDelivered:
		fmt.Println("Report delivered")
	case pipeline.OutcomeSkippedUnavailable:
		fmt.Println("Skipped: you look unavailable today (OOO status)")
	case pipeline.OutcomeSkippedNoActivity:
		fmt.Println("Skipped: no activity found for today")
	case pipeline.OutcomeFailed:
		return fmt.Errorf("delivery failed: %s", run.Error)
	}
	return nil
}

// runDry aggregates and formats without gating or delivering.
func runDry(c *cli.Context, a *app) error {
	window := activity.DayWindow(time.Now())
	if dateArg := c.String("date"); dateArg != "" {
		parsed, err := time.Parse("2006-01-02", dateArg)
		if err != nil {
			return fmt.Errorf("invalid --date %q: use YYYY-MM-DD", dateArg)
		}
		// A backdated report covers the whole day, not midnight-to-now.
		window = activity.DateWindow(parsed)
	}

	daily := a.aggregator.Aggregate(c.Context, window, a.store.ManualUpdates())
	for source, msg := range daily.Errors {
		log.Warn().Str("source", source).Str("error", msg).Msg("source failed")
	}

	report := summary.Build(daily, summary.Options{MaxCommitsPerRepo: a.cfg.Report.MaxCommitsPerRepo})
	fmt.Println(report.PlainText())
	return nil
}
