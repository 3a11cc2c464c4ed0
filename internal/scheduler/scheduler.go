package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/susylPearl/eod-auto-reporter/internal/pipeline"
)

// misfireGrace is how late a tick may fire and still count: if the
// process was suspended past the scheduled time by more than this, the
// tick is dropped and the next one is awaited.
const misfireGrace = time.Hour

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// Schedule fires the EOD pipeline at a fixed local time on selected
// weekdays.
type Schedule struct {
	Hour     int
	Minute   int
	Weekdays map[time.Weekday]bool
	Location *time.Location
}

// New builds a schedule. An empty weekday list means Monday through
// Friday, matching the usual working week.
func New(hour, minute int, weekdays []string, timezone string) (*Schedule, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	days := map[time.Weekday]bool{}
	if len(weekdays) == 0 {
		for d := time.Monday; d <= time.Friday; d++ {
			days[d] = true
		}
	} else {
		for _, name := range weekdays {
			d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
			if !ok {
				return nil, fmt.Errorf("invalid weekday %q", name)
			}
			days[d] = true
		}
	}

	return &Schedule{Hour: hour, Minute: minute, Weekdays: days, Location: loc}, nil
}

// NextFire returns the first scheduled time strictly after from.
func (s *Schedule) NextFire(from time.Time) time.Time {
	t := from.In(s.Location)
	candidate := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, s.Location)
	for !candidate.After(t) || !s.Weekdays[candidate.Weekday()] {
		candidate = candidate.AddDate(0, 0, 1)
		candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), s.Hour, s.Minute, 0, 0, s.Location)
	}
	return candidate
}

// Runner drives the pipeline from the schedule.
type Runner struct {
	schedule *Schedule
	pipe     *pipeline.Pipeline
}

func NewRunner(schedule *Schedule, pipe *pipeline.Pipeline) *Runner {
	return &Runner{schedule: schedule, pipe: pipe}
}

// Next returns the upcoming fire time, for status reporting.
func (r *Runner) Next() time.Time {
	return r.schedule.NextFire(time.Now())
}

// Start blocks until ctx is cancelled, triggering a pipeline run at
// every scheduled tick. A tick that lands while a manual run is still
// active is rejected by the pipeline's single-run guard and logged,
// not queued.
func (r *Runner) Start(ctx context.Context) {
	log.Info().
		Str("next", r.Next().Format(time.RFC3339)).
		Msgf("scheduler started, report fires at %02d:%02d %s", r.schedule.Hour, r.schedule.Minute, r.schedule.Location)

	for {
		fireAt := r.schedule.NextFire(time.Now())
		timer := time.NewTimer(time.Until(fireAt))

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("scheduler stopped")
			return
		case now := <-timer.C:
			if now.Sub(fireAt) > misfireGrace {
				log.Warn().Time("scheduled", fireAt).Msg("missed tick beyond grace window, skipping")
				continue
			}
			run, err := r.pipe.RunOnce(ctx, pipeline.TriggerScheduled)
			if errors.Is(err, pipeline.ErrAlreadyRunning) {
				log.Warn().Msg("scheduled tick rejected: a run is already in progress")
				continue
			}
			if err != nil {
				log.Error().Err(err).Msg("scheduled run failed to start")
				continue
			}
			log.Info().Str("run_id", run.ID).Str("outcome", string(run.Outcome)).Msg("scheduled run finished")
		}
	}
}
