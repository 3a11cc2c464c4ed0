package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
	"github.com/susylPearl/eod-auto-reporter/internal/aggregate"
	"github.com/susylPearl/eod-auto-reporter/internal/summary"
)

type stubSource struct {
	id        string
	result    aggregate.Result
	err       error
	fetched   chan struct{}
	fetchOnce sync.Once
	block     chan struct{} // when set, Fetch waits until closed
}

func (s *stubSource) ID() string { return s.id }

func (s *stubSource) Fetch(ctx context.Context, window activity.Window) (aggregate.Result, error) {
	if s.fetched != nil {
		s.fetchOnce.Do(func() { close(s.fetched) })
	}
	if s.block != nil {
		<-s.block
	}
	return s.result, s.err
}

type stubGate struct {
	unavailable bool
	err         error
	calls       int
}

func (g *stubGate) IsUnavailable(ctx context.Context) (bool, error) {
	g.calls++
	return g.unavailable, g.err
}

type stubDeliverer struct {
	mu     sync.Mutex
	err    error
	calls  int
	text   string
	blocks []map[string]any
}

func (d *stubDeliverer) Deliver(ctx context.Context, plainText string, blocks []map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.text = plainText
	d.blocks = blocks
	return d.err
}

type stubSummarizer struct {
	digest       string
	narrative    string
	digestErr    error
	narrativeErr error
}

func (s *stubSummarizer) ChannelDigest(ctx context.Context, channel string, msgs []activity.Message) (string, error) {
	return s.digest, s.digestErr
}

func (s *stubSummarizer) Narrative(ctx context.Context, daily *activity.Daily) (string, error) {
	return s.narrative, s.narrativeErr
}

func codeResult() aggregate.Result {
	return aggregate.Result{Code: &activity.CodeActivity{
		Commits: []activity.Commit{{SHA: "abc1234", Message: "Fix race", Repo: "acme/api"}},
	}}
}

func newTestPipeline(gate *stubGate, del *stubDeliverer, sources ...aggregate.Source) *Pipeline {
	return New(aggregate.New(0, sources...), gate, del, nil, nil, summary.Options{})
}

func TestRunOnceDelivers(t *testing.T) {
	gate := &stubGate{}
	del := &stubDeliverer{}
	p := newTestPipeline(gate, del, &stubSource{id: activity.SourceGitHub, result: codeResult()})

	run, err := p.RunOnce(context.Background(), TriggerManual)

	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, run.Outcome)
	assert.Equal(t, 1, gate.calls)
	assert.Equal(t, 1, del.calls)
	assert.Contains(t, del.text, "Fix race")
	assert.NotEmpty(t, del.blocks)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestRunSkipsWhenUnavailable(t *testing.T) {
	src := &stubSource{id: activity.SourceGitHub, result: codeResult(), fetched: make(chan struct{})}
	del := &stubDeliverer{}
	p := newTestPipeline(&stubGate{unavailable: true}, del, src)

	run, err := p.RunOnce(context.Background(), TriggerScheduled)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedUnavailable, run.Outcome)
	assert.Equal(t, 0, del.calls)
	select {
	case <-src.fetched:
		t.Fatal("aggregation must not run when the gate says unavailable")
	default:
	}
}

func TestGateFailureFailsOpen(t *testing.T) {
	del := &stubDeliverer{}
	p := newTestPipeline(&stubGate{err: errors.New("slack 500")}, del,
		&stubSource{id: activity.SourceGitHub, result: codeResult()})

	run, err := p.RunOnce(context.Background(), TriggerScheduled)

	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, run.Outcome)
	assert.Equal(t, 1, del.calls)
}

func TestRunSkipsWhenNoActivity(t *testing.T) {
	del := &stubDeliverer{}
	p := newTestPipeline(&stubGate{}, del,
		&stubSource{id: activity.SourceGitHub, result: aggregate.Result{Code: &activity.CodeActivity{}}})

	run, err := p.RunOnce(context.Background(), TriggerScheduled)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedNoActivity, run.Outcome)
	assert.Equal(t, 0, del.calls)
}

func TestSourceErrorsDoNotBlockDelivery(t *testing.T) {
	del := &stubDeliverer{}
	p := newTestPipeline(&stubGate{}, del,
		&stubSource{id: activity.SourceGitHub, result: codeResult()},
		&stubSource{id: activity.SourceClickUp, err: errors.New("status 502")},
	)

	run, err := p.RunOnce(context.Background(), TriggerScheduled)

	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, run.Outcome)
	require.Contains(t, run.Errors, activity.SourceClickUp)
	assert.NotContains(t, del.text, "502")
}

func TestDeliveryFailureIsFatal(t *testing.T) {
	del := &stubDeliverer{err: errors.New("channel_not_found")}
	p := newTestPipeline(&stubGate{}, del,
		&stubSource{id: activity.SourceGitHub, result: codeResult()})

	run, err := p.RunOnce(context.Background(), TriggerManual)

	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, run.Outcome)
	assert.Equal(t, "channel_not_found", run.Error)
	// No retry: one delivery attempt per run.
	assert.Equal(t, 1, del.calls)
}

func TestConcurrentTriggerRejected(t *testing.T) {
	block := make(chan struct{})
	fetched := make(chan struct{})
	src := &stubSource{id: activity.SourceGitHub, result: codeResult(), fetched: fetched, block: block}
	p := newTestPipeline(&stubGate{}, &stubDeliverer{}, src)

	first, err := p.TriggerNow(context.Background(), TriggerScheduled)
	require.NoError(t, err)
	<-fetched

	_, err = p.TriggerNow(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	_, err = p.RunOnce(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	close(block)
	require.Eventually(t, func() bool {
		st := p.Status()
		return !st.Running && st.LastRun != nil && st.LastRun.ID == first.ID
	}, time.Second, 5*time.Millisecond)

	// The guard resets once the run finishes.
	_, err = p.RunOnce(context.Background(), TriggerManual)
	assert.NoError(t, err)
}

func TestStatusReflectsLastRun(t *testing.T) {
	p := newTestPipeline(&stubGate{}, &stubDeliverer{},
		&stubSource{id: activity.SourceGitHub, result: codeResult()})

	st := p.Status()
	assert.False(t, st.Running)
	assert.Equal(t, StateIdle, st.State)
	assert.Nil(t, st.LastRun)

	run, err := p.RunOnce(context.Background(), TriggerManual)
	require.NoError(t, err)

	st = p.Status()
	require.NotNil(t, st.LastRun)
	assert.Equal(t, run.ID, st.LastRun.ID)
	assert.Equal(t, OutcomeDelivered, st.LastRun.Outcome)
	assert.Equal(t, TriggerManual, st.LastRun.Trigger)
}

func TestSummarizerFillsDigestsAndNarrative(t *testing.T) {
	chat := aggregate.Result{Chat: &activity.ChatActivity{Channels: []activity.ChannelActivity{
		{ChannelID: "C1", ChannelName: "eng-backend", Messages: []activity.Message{{Text: "shipped it"}}},
	}}}
	del := &stubDeliverer{}
	p := New(
		aggregate.New(0, &stubSource{id: activity.SourceSlack, result: chat}),
		&stubGate{}, del,
		&stubSummarizer{digest: "Shipped the fix.", narrative: "Quiet, productive day."},
		nil, summary.Options{},
	)

	run, err := p.RunOnce(context.Background(), TriggerManual)

	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, run.Outcome)
	assert.Contains(t, del.text, "#eng-backend: Shipped the fix.")
	assert.Contains(t, del.text, "Quiet, productive day.")
}

func TestSummarizerFailureAbsorbed(t *testing.T) {
	chat := aggregate.Result{Chat: &activity.ChatActivity{Channels: []activity.ChannelActivity{
		{ChannelID: "C1", ChannelName: "eng-backend", Messages: []activity.Message{{Text: "shipped it"}}},
	}}}
	del := &stubDeliverer{}
	p := New(
		aggregate.New(0, &stubSource{id: activity.SourceSlack, result: chat}),
		&stubGate{}, del,
		&stubSummarizer{digestErr: errors.New("model timeout"), narrativeErr: errors.New("model timeout")},
		nil, summary.Options{},
	)

	run, err := p.RunOnce(context.Background(), TriggerManual)

	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, run.Outcome)
	// Count fallback instead of a digest.
	assert.Contains(t, del.text, "#eng-backend: 1 messages")
}

func TestManualUpdatesReadAtRunStart(t *testing.T) {
	del := &stubDeliverer{}
	p := New(
		aggregate.New(0, &stubSource{id: activity.SourceGitHub, result: aggregate.Result{Code: &activity.CodeActivity{}}}),
		&stubGate{}, del, nil,
		func() []string { return []string{"Reviewed the migration plan"} },
		summary.Options{},
	)

	run, err := p.RunOnce(context.Background(), TriggerManual)

	require.NoError(t, err)
	// Manual updates alone count as activity.
	assert.Equal(t, OutcomeDelivered, run.Outcome)
	assert.Contains(t, del.text, "Reviewed the migration plan")
}
