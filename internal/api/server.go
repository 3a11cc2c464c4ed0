// Package api exposes the reporter over HTTP: health, manual trigger,
// run status, and a raw view of today's aggregated activity.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
	"github.com/susylPearl/eod-auto-reporter/internal/aggregate"
	"github.com/susylPearl/eod-auto-reporter/internal/pipeline"
)

// NextFirer reports the next scheduled run, typically a
// scheduler.Runner. Nil means no schedule is active.
type NextFirer interface {
	Next() time.Time
}

// Server is the HTTP front for a running pipeline.
type Server struct {
	echo       *echo.Echo
	port       int
	pipe       *pipeline.Pipeline
	aggregator *aggregate.Aggregator
	manual     func() []string
	schedule   NextFirer
}

// NewServer wires routes against the given pipeline. aggregator backs
// the read-only activity endpoints; schedule and manual may be nil.
func NewServer(port int, pipe *pipeline.Pipeline, agg *aggregate.Aggregator, manual func() []string, schedule NextFirer) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:       e,
		port:       port,
		pipe:       pipe,
		aggregator: agg,
		manual:     manual,
		schedule:   schedule,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	v1 := s.echo.Group("/api/v1")
	v1.POST("/trigger", s.triggerRun)
	v1.GET("/status", s.getStatus)
	v1.GET("/activity", s.getActivity)
	v1.GET("/stats", s.getStats)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Int("port", s.port).Msg("api server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutCtx)
}

func (s *Server) triggerRun(c echo.Context) error {
	run, err := s.pipe.TriggerNow(context.Background(), pipeline.TriggerManual)
	if errors.Is(err, pipeline.ErrAlreadyRunning) {
		return c.JSON(http.StatusConflict, map[string]string{
			"error": "a run is already in progress",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}
	return c.JSON(http.StatusAccepted, run)
}

func (s *Server) getStatus(c echo.Context) error {
	type statusResponse struct {
		pipeline.Status
		NextScheduledRun *time.Time `json:"next_scheduled_run,omitempty"`
	}

	resp := statusResponse{Status: s.pipe.Status()}
	if s.schedule != nil {
		next := s.schedule.Next()
		resp.NextScheduledRun = &next
	}
	return c.JSON(http.StatusOK, resp)
}

// getActivity aggregates today's window on demand without delivering,
// for inspection before the scheduled run.
func (s *Server) getActivity(c echo.Context) error {
	daily := s.collect(c.Request().Context())
	return c.JSON(http.StatusOK, daily)
}

func (s *Server) getStats(c echo.Context) error {
	daily := s.collect(c.Request().Context())

	stats := map[string]any{
		"date":   daily.Date,
		"errors": daily.Errors,
	}
	if daily.Code != nil {
		stats["commits"] = len(daily.Code.Commits)
		stats["prs_opened"] = len(daily.Code.PRsOpened)
		stats["prs_merged"] = len(daily.Code.PRsMerged)
	}
	if daily.Tasks != nil {
		stats["tasks_completed"] = len(daily.Tasks.Completed)
		stats["tasks_in_progress"] = len(daily.Tasks.StatusChanged)
	}
	if daily.Chat != nil {
		messages := 0
		for _, ch := range daily.Chat.Channels {
			messages += len(ch.Messages)
		}
		stats["channels"] = len(daily.Chat.Channels)
		stats["messages"] = messages
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) collect(ctx context.Context) *activity.Daily {
	var manual []string
	if s.manual != nil {
		manual = s.manual()
	}
	return s.aggregator.Aggregate(ctx, activity.DayWindow(time.Now()), manual)
}
