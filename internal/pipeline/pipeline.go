package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
	"github.com/susylPearl/eod-auto-reporter/internal/aggregate"
	"github.com/susylPearl/eod-auto-reporter/internal/summary"
)

// ErrAlreadyRunning is returned to a trigger that arrives while a run
// is still in flight. Triggers are rejected, never queued.
var ErrAlreadyRunning = errors.New("pipeline run already in progress")

// Gate reports whether the tracked person is currently unavailable
// (away status), in which case the run is skipped.
type Gate interface {
	IsUnavailable(ctx context.Context) (bool, error)
}

// Deliverer posts the formatted report to its destination.
type Deliverer interface {
	Deliver(ctx context.Context, plainText string, blocks []map[string]any) error
}

// Summarizer generates optional AI text for the report. A nil
// Summarizer disables the feature entirely.
type Summarizer interface {
	ChannelDigest(ctx context.Context, channel string, messages []activity.Message) (string, error)
	Narrative(ctx context.Context, daily *activity.Daily) (string, error)
}

// Trigger identifies what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Outcome is the terminal result of a run.
type Outcome string

const (
	OutcomeDelivered          Outcome = "delivered"
	OutcomeSkippedUnavailable Outcome = "skipped-unavailable"
	OutcomeSkippedNoActivity  Outcome = "skipped-no-activity"
	OutcomeFailed             Outcome = "failed"
)

// Pipeline states, in execution order.
const (
	StateIdle        = "idle"
	StateGating      = "gating"
	StateAggregating = "aggregating"
	StateFormatting  = "formatting"
	StateDelivering  = "delivering"
)

// Run records one pipeline execution for status reporting. Errors
// holds the per-source fetch failures collected during aggregation;
// a populated map with outcome delivered is a normal partial-failure
// run, not an error state.
type Run struct {
	ID         string            `json:"id"`
	Trigger    Trigger           `json:"trigger"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
	Outcome    Outcome           `json:"outcome,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
	Error      string            `json:"error,omitempty"` // delivery failure detail
}

// Status is the caller-facing view of the orchestrator.
type Status struct {
	Running bool   `json:"running"`
	State   string `json:"state"`
	LastRun *Run   `json:"last_run,omitempty"`
}

// Pipeline sequences gate -> aggregate -> format -> deliver and owns
// the single-run guard shared by scheduled and manual triggers.
type Pipeline struct {
	aggregator *aggregate.Aggregator
	gate       Gate
	deliverer  Deliverer
	summarizer Summarizer
	manual     func() []string // manual updates, read at run start
	opts       summary.Options

	now func() time.Time

	running atomic.Bool
	state   atomic.Value // string

	mu      sync.Mutex
	lastRun *Run
}

// New wires a pipeline. summarizer may be nil; manual may be nil when
// no manual-update store is configured.
func New(agg *aggregate.Aggregator, gate Gate, del Deliverer, summarizer Summarizer, manual func() []string, opts summary.Options) *Pipeline {
	p := &Pipeline{
		aggregator: agg,
		gate:       gate,
		deliverer:  del,
		summarizer: summarizer,
		manual:     manual,
		opts:       opts,
		now:        time.Now,
	}
	p.state.Store(StateIdle)
	return p
}

// TriggerNow accepts a trigger synchronously and executes the run in
// the background. It returns the accepted run record, or
// ErrAlreadyRunning when a run is still in flight.
func (p *Pipeline) TriggerNow(ctx context.Context, trigger Trigger) (*Run, error) {
	run, err := p.accept(trigger)
	if err != nil {
		return nil, err
	}
	go p.execute(ctx, run)
	snapshot := *run
	return &snapshot, nil
}

// RunOnce executes a run synchronously, for CLI and scheduler callers
// that want the terminal outcome.
func (p *Pipeline) RunOnce(ctx context.Context, trigger Trigger) (*Run, error) {
	run, err := p.accept(trigger)
	if err != nil {
		return nil, err
	}
	p.execute(ctx, run)
	return run, nil
}

// Status reports whether a run is active and the last terminal run.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	var last *Run
	if p.lastRun != nil {
		cp := *p.lastRun
		last = &cp
	}
	return Status{
		Running: p.running.Load(),
		State:   p.state.Load().(string),
		LastRun: last,
	}
}

func (p *Pipeline) accept(trigger Trigger) (*Run, error) {
	if !p.running.CompareAndSwap(false, true) {
		log.Warn().Str("trigger", string(trigger)).Msg("trigger rejected: run already in progress")
		return nil, ErrAlreadyRunning
	}
	run := &Run{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: p.now(),
	}
	log.Info().Str("run_id", run.ID).Str("trigger", string(trigger)).Msg("pipeline run accepted")
	return run, nil
}

func (p *Pipeline) execute(ctx context.Context, run *Run) {
	defer func() {
		run.FinishedAt = p.now()
		p.state.Store(StateIdle)
		p.mu.Lock()
		p.lastRun = run
		p.mu.Unlock()
		p.running.Store(false)
		log.Info().
			Str("run_id", run.ID).
			Str("outcome", string(run.Outcome)).
			Dur("took", run.FinishedAt.Sub(run.StartedAt)).
			Msg("pipeline run finished")
	}()

	// Gate. A failing check is treated as available so a transient
	// outage never silently suppresses a whole day's report.
	p.state.Store(StateGating)
	unavailable, err := p.gate.IsUnavailable(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("availability check failed, proceeding")
	} else if unavailable {
		run.Outcome = OutcomeSkippedUnavailable
		log.Info().Str("run_id", run.ID).Msg("user unavailable, skipping report")
		return
	}

	// Aggregate. Per-source failures become data; this stage cannot
	// fail as a whole.
	p.state.Store(StateAggregating)
	var manual []string
	if p.manual != nil {
		manual = p.manual()
	}
	daily := p.aggregator.Aggregate(ctx, activity.DayWindow(run.StartedAt), manual)
	run.Errors = daily.Errors

	// Format.
	p.state.Store(StateFormatting)
	if daily.IsEmpty() {
		run.Outcome = OutcomeSkippedNoActivity
		log.Info().Str("run_id", run.ID).Msg("no activity, skipping report")
		return
	}
	p.summarize(ctx, daily)
	report := summary.Build(daily, p.opts)

	// Deliver. This is the one failure the orchestrator does not
	// absorb; retry, if any, belongs to the delivery client.
	p.state.Store(StateDelivering)
	if err := p.deliverer.Deliver(ctx, report.PlainText(), report.SlackBlocks()); err != nil {
		run.Outcome = OutcomeFailed
		run.Error = err.Error()
		log.Error().Str("run_id", run.ID).Err(err).Msg("report delivery failed")
		return
	}
	run.Outcome = OutcomeDelivered
}

// summarize fills in optional AI text: one digest per channel with
// messages, plus the overall narrative. AI failures are absorbed; the
// formatter falls back to count-based text.
func (p *Pipeline) summarize(ctx context.Context, daily *activity.Daily) {
	if p.summarizer == nil {
		return
	}
	if daily.Chat != nil {
		for i, ch := range daily.Chat.Channels {
			if len(ch.Messages) == 0 {
				continue
			}
			digest, err := p.summarizer.ChannelDigest(ctx, ch.ChannelName, ch.Messages)
			if err != nil {
				log.Warn().Str("channel", ch.ChannelName).Err(err).Msg("channel digest failed")
				continue
			}
			daily.Chat.Channels[i].Digest = digest
		}
	}
	narrative, err := p.summarizer.Narrative(ctx, daily)
	if err != nil {
		log.Warn().Err(err).Msg("narrative generation failed")
		return
	}
	daily.AISummary = narrative
}
