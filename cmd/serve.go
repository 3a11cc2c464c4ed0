package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/susylPearl/eod-auto-reporter/internal/api"
	"github.com/susylPearl/eod-auto-reporter/internal/scheduler"
)

// ServeCommand returns the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the scheduler and the HTTP API until interrupted",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override the API port",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	a, err := loadApp(c)
	if err != nil {
		return err
	}

	port := a.cfg.API.Port
	if c.Int("port") != 0 {
		port = c.Int("port")
	}

	schedule, err := scheduler.New(
		a.cfg.Schedule.Hour,
		a.cfg.Schedule.Minute,
		a.cfg.Schedule.Weekdays,
		a.cfg.Schedule.Timezone,
	)
	if err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	runner := scheduler.NewRunner(schedule, a.pipe)

	closeWatch, err := a.store.Watch()
	if err != nil {
		return fmt.Errorf("failed to watch manual updates: %w", err)
	}
	defer closeWatch()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Time("next_run", runner.Next()).
		Msg("scheduler armed")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		runner.Start(ctx)
		return nil
	})
	g.Go(func() error {
		server := api.NewServer(port, a.pipe, a.aggregator, a.store.ManualUpdates, runner)
		return server.Start(ctx)
	})
	return g.Wait()
}
