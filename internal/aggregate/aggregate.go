package aggregate

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
)

// Source fetches one day of activity from a single collaboration tool.
type Source interface {
	// ID returns the stable source identifier (activity.SourceGitHub etc.).
	ID() string
	// Fetch returns the source's contribution for the window. Exactly one
	// field of the result is populated.
	Fetch(ctx context.Context, window activity.Window) (Result, error)
}

// Result holds the output of a single source fetch.
type Result struct {
	Code  *activity.CodeActivity // code-hosting sources
	Tasks *activity.TaskActivity // task-tracker sources
	Chat  *activity.ChatActivity // chat sources
}

// Aggregator fans out to the enabled sources and merges their results
// into a single composite snapshot.
type Aggregator struct {
	sources []Source
	timeout time.Duration
}

// New creates an aggregator over the given sources. perSourceTimeout
// bounds each individual fetch; zero means no bound beyond ctx.
func New(perSourceTimeout time.Duration, sources ...Source) *Aggregator {
	return &Aggregator{sources: sources, timeout: perSourceTimeout}
}

// Aggregate fetches from every source concurrently and returns the
// composite snapshot for the window. A failing source is recorded in
// Errors and leaves its snapshot absent; Aggregate itself never fails.
// Manual updates are copied in order, verbatim.
func (a *Aggregator) Aggregate(ctx context.Context, window activity.Window, manual []string) *activity.Daily {
	daily := &activity.Daily{
		Date:          window.Start.Format("2006-01-02"),
		ManualUpdates: append([]string(nil), manual...),
		Errors:        map[string]string{},
	}

	// Each goroutine writes only its own slot; results are merged in
	// source order afterwards so output does not depend on completion
	// order.
	results := make([]Result, len(a.sources))
	errs := make([]error, len(a.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		i, src := i, src
		g.Go(func() error {
			fctx := gctx
			if a.timeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(gctx, a.timeout)
				defer cancel()
			}
			results[i], errs[i] = src.Fetch(fctx, window)
			return nil
		})
	}
	_ = g.Wait() // goroutines report failures via errs, never abort the group

	for i, src := range a.sources {
		if errs[i] != nil {
			log.Warn().Str("source", src.ID()).Err(errs[i]).Msg("source fetch failed")
			daily.Errors[src.ID()] = errs[i].Error()
			continue
		}
		merge(daily, results[i])
	}

	log.Info().
		Str("date", daily.Date).
		Int("sources", len(a.sources)).
		Int("failed", len(daily.Errors)).
		Msg("activity aggregated")
	return daily
}

func merge(daily *activity.Daily, res Result) {
	switch {
	case res.Code != nil:
		daily.Code = res.Code
	case res.Tasks != nil:
		daily.Tasks = res.Tasks
	case res.Chat != nil:
		daily.Chat = res.Chat
	}
}
