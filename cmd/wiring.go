package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
	"github.com/susylPearl/eod-auto-reporter/internal/aggregate"
	"github.com/susylPearl/eod-auto-reporter/internal/ai"
	"github.com/susylPearl/eod-auto-reporter/internal/config"
	"github.com/susylPearl/eod-auto-reporter/internal/logging"
	"github.com/susylPearl/eod-auto-reporter/internal/pipeline"
	"github.com/susylPearl/eod-auto-reporter/internal/slack"
	"github.com/susylPearl/eod-auto-reporter/internal/sources/clickup"
	"github.com/susylPearl/eod-auto-reporter/internal/sources/github"
	"github.com/susylPearl/eod-auto-reporter/internal/sources/gitlab"
	"github.com/susylPearl/eod-auto-reporter/internal/store"
	"github.com/susylPearl/eod-auto-reporter/internal/summary"
)

// app holds everything a command needs after wiring from config.
type app struct {
	cfg        *config.Config
	aggregator *aggregate.Aggregator
	pipe       *pipeline.Pipeline
	store      *store.Store
}

// buildApp constructs sources, the aggregator, and the pipeline from
// a validated config.
func buildApp(cfg *config.Config) (*app, error) {
	var sources []aggregate.Source

	if cfg.SourceEnabled(activity.SourceGitHub) {
		sources = append(sources, github.New(cfg.GitHub.Token, cfg.GitHub.Username))
	}
	if cfg.SourceEnabled(activity.SourceGitLab) {
		src, err := gitlab.New(gitlab.Config{
			URL:      cfg.GitLab.URL,
			Token:    cfg.GitLab.Token,
			Username: cfg.GitLab.Username,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gitlab source: %w", err)
		}
		sources = append(sources, src)
	}
	if cfg.SourceEnabled(activity.SourceClickUp) {
		sources = append(sources, clickup.New(cfg.ClickUp.Token, cfg.ClickUp.TeamID, cfg.ClickUp.UserID))
	}

	slackClient := slack.NewClient(cfg.Slack.BotToken)
	if cfg.SourceEnabled(activity.SourceSlack) {
		sources = append(sources, slack.NewChatSource(slackClient, cfg.Slack.MonitorChannels))
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no activity sources enabled")
	}

	var summarizer pipeline.Summarizer
	if cfg.AI.Provider != "" {
		aiSummarizer, err := ai.New(ai.Options{
			Provider: cfg.AI.Provider,
			APIKey:   cfg.AI.APIKey,
			BaseURL:  cfg.AI.BaseURL,
			Model:    cfg.AI.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AI summarizer: %w", err)
		}
		summarizer = aiSummarizer
	}

	st, err := store.Open(cfg.Report.ManualUpdatesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open manual updates store: %w", err)
	}

	aggregator := aggregate.New(cfg.SourceTimeout(), sources...)
	pipe := pipeline.New(
		aggregator,
		slack.NewGate(slackClient, cfg.Slack.UserID),
		slack.NewDeliverer(slackClient, cfg.Slack.Channel, cfg.Slack.UserID),
		summarizer,
		st.ManualUpdates,
		summary.Options{MaxCommitsPerRepo: cfg.Report.MaxCommitsPerRepo},
	)

	log.Info().
		Int("sources", len(sources)).
		Bool("ai", summarizer != nil).
		Msg("reporter wired")

	return &app{cfg: cfg, aggregator: aggregator, pipe: pipe, store: st}, nil
}

func loadApp(c *cli.Context) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	// The --log-level flag wins over the config file.
	if !c.IsSet("log-level") && cfg.LogLevel != "" {
		logging.Setup(cfg.LogLevel)
	}
	return buildApp(cfg)
}
