package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
	"github.com/susylPearl/eod-auto-reporter/internal/aggregate"
	"github.com/susylPearl/eod-auto-reporter/internal/pipeline"
	"github.com/susylPearl/eod-auto-reporter/internal/summary"
)

type stubSource struct {
	result aggregate.Result
	block  chan struct{}
}

func (s *stubSource) ID() string { return activity.SourceGitHub }

func (s *stubSource) Fetch(ctx context.Context, window activity.Window) (aggregate.Result, error) {
	if s.block != nil {
		<-s.block
	}
	return s.result, nil
}

type openGate struct{}

func (openGate) IsUnavailable(ctx context.Context) (bool, error) { return false, nil }

type noopDeliverer struct{}

func (noopDeliverer) Deliver(ctx context.Context, plainText string, blocks []map[string]any) error {
	return nil
}

type fixedSchedule struct{ at time.Time }

func (f fixedSchedule) Next() time.Time { return f.at }

func codeResult() aggregate.Result {
	return aggregate.Result{Code: &activity.CodeActivity{
		Commits: []activity.Commit{{SHA: "abc1234", Message: "Fix race", Repo: "acme/api"}},
		PRsOpened: []activity.PullRequest{
			{Number: 42, Title: "Streaming uploads", Repo: "acme/api"},
		},
	}}
}

func newTestServer(src aggregate.Source, schedule NextFirer) *Server {
	agg := aggregate.New(0, src)
	pipe := pipeline.New(agg, openGate{}, noopDeliverer{}, nil, nil, summary.Options{})
	return NewServer(0, pipe, agg, func() []string { return []string{"manual note"} }, schedule)
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&stubSource{result: codeResult()}, nil)

	rec := doRequest(s, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestTriggerAccepted(t *testing.T) {
	s := newTestServer(&stubSource{result: codeResult()}, nil)

	rec := doRequest(s, http.MethodPost, "/api/v1/trigger")

	require.Equal(t, http.StatusAccepted, rec.Code)
	var run pipeline.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, pipeline.TriggerManual, run.Trigger)
}

func TestTriggerConflictWhileRunning(t *testing.T) {
	block := make(chan struct{})
	s := newTestServer(&stubSource{result: codeResult(), block: block}, nil)

	first := doRequest(s, http.MethodPost, "/api/v1/trigger")
	require.Equal(t, http.StatusAccepted, first.Code)

	second := doRequest(s, http.MethodPost, "/api/v1/trigger")
	assert.Equal(t, http.StatusConflict, second.Code)

	close(block)
}

func TestStatusIncludesSchedule(t *testing.T) {
	next := time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC)
	s := newTestServer(&stubSource{result: codeResult()}, fixedSchedule{at: next})

	rec := doRequest(s, http.MethodGet, "/api/v1/status")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Running          bool       `json:"running"`
		State            string     `json:"state"`
		NextScheduledRun *time.Time `json:"next_scheduled_run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Running)
	assert.Equal(t, pipeline.StateIdle, body.State)
	require.NotNil(t, body.NextScheduledRun)
	assert.True(t, next.Equal(*body.NextScheduledRun))
}

func TestStatusOmitsScheduleWhenAbsent(t *testing.T) {
	s := newTestServer(&stubSource{result: codeResult()}, nil)

	rec := doRequest(s, http.MethodGet, "/api/v1/status")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "next_scheduled_run")
}

func TestActivityEndpoint(t *testing.T) {
	s := newTestServer(&stubSource{result: codeResult()}, nil)

	rec := doRequest(s, http.MethodGet, "/api/v1/activity")

	require.Equal(t, http.StatusOK, rec.Code)
	var daily activity.Daily
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &daily))
	require.NotNil(t, daily.Code)
	assert.Len(t, daily.Code.Commits, 1)
	assert.Equal(t, []string{"manual note"}, daily.ManualUpdates)
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(&stubSource{result: codeResult()}, nil)

	rec := doRequest(s, http.MethodGet, "/api/v1/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.EqualValues(t, 1, stats["commits"])
	assert.EqualValues(t, 1, stats["prs_opened"])
	assert.EqualValues(t, 0, stats["prs_merged"])
}
