// Package ai generates the optional AI text in the report: one digest
// per monitored channel and a short closing narrative. The feature is
// wired through langchaingo so any OpenAI-compatible endpoint or a
// local Ollama instance can serve it.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
)

// Options configures the model provider.
type Options struct {
	Provider string // "openai" or "ollama"
	APIKey   string
	BaseURL  string // optional custom endpoint (OpenAI-compatible providers, Ollama server)
	Model    string
}

// Summarizer wraps a langchaingo model.
type Summarizer struct {
	llm llms.Model
}

// New creates a summarizer for the configured provider.
func New(opts Options) (*Summarizer, error) {
	var model llms.Model
	var err error

	switch strings.ToLower(opts.Provider) {
	case "openai":
		oaiOpts := []openai.Option{openai.WithToken(opts.APIKey)}
		if opts.Model != "" {
			oaiOpts = append(oaiOpts, openai.WithModel(opts.Model))
		}
		if opts.BaseURL != "" {
			oaiOpts = append(oaiOpts, openai.WithBaseURL(opts.BaseURL))
		}
		model, err = openai.New(oaiOpts...)
	case "ollama":
		ollamaOpts := []ollama.Option{}
		if opts.Model != "" {
			ollamaOpts = append(ollamaOpts, ollama.WithModel(opts.Model))
		}
		if opts.BaseURL != "" {
			ollamaOpts = append(ollamaOpts, ollama.WithServerURL(opts.BaseURL))
		}
		model, err = ollama.New(ollamaOpts...)
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", opts.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", opts.Provider, err)
	}
	return &Summarizer{llm: model}, nil
}

const digestPrompt = "You are summarizing one day of messages from the Slack channel #%s " +
	"for an end-of-day report. Write a single concise sentence capturing the key " +
	"discussion points. Plain text only, no markdown.\n\nMessages:\n%s"

// ChannelDigest condenses a channel's messages into one sentence.
func (s *Summarizer) ChannelDigest(ctx context.Context, channel string, messages []activity.Message) (string, error) {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s]: %s\n", m.UserName, m.Text)
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, s.llm,
		fmt.Sprintf(digestPrompt, channel, b.String()),
		llms.WithMaxTokens(120), llms.WithTemperature(0.3))
	if err != nil {
		return "", fmt.Errorf("digest generation failed: %w", err)
	}

	log.Debug().Str("channel", channel).Int("chars", len(out)).Msg("channel digest generated")
	return strings.TrimSpace(out), nil
}

const narrativePrompt = "You are an engineering manager writing a brief end-of-day summary. " +
	"Summarize the developer's daily activity below into one or two sentences. Focus on what " +
	"was accomplished and what's in progress. Plain text, no markdown.\n\n%s"

// Narrative produces the short free-form summary of the whole day.
func (s *Summarizer) Narrative(ctx context.Context, daily *activity.Daily) (string, error) {
	text := activityDigest(daily)
	if text == "" {
		return "", nil
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, s.llm,
		fmt.Sprintf(narrativePrompt, text),
		llms.WithMaxTokens(200), llms.WithTemperature(0.3))
	if err != nil {
		return "", fmt.Errorf("narrative generation failed: %w", err)
	}

	log.Debug().Int("chars", len(out)).Msg("narrative generated")
	return strings.TrimSpace(out), nil
}

// activityDigest flattens the day's activity into the plain-text form
// fed to the model.
func activityDigest(daily *activity.Daily) string {
	var parts []string

	if daily.Code != nil {
		for _, c := range daily.Code.Commits {
			parts = append(parts, fmt.Sprintf("commit [%s] %s", c.Repo, c.Message))
		}
		for _, pr := range daily.Code.PRsOpened {
			parts = append(parts, fmt.Sprintf("PR opened [%s] %s", pr.Repo, pr.Title))
		}
		for _, pr := range daily.Code.PRsMerged {
			parts = append(parts, fmt.Sprintf("PR merged [%s] %s", pr.Repo, pr.Title))
		}
	}
	if daily.Tasks != nil {
		for _, t := range daily.Tasks.Completed {
			parts = append(parts, fmt.Sprintf("task completed: %s", t.Name))
		}
		for _, t := range daily.Tasks.StatusChanged {
			parts = append(parts, fmt.Sprintf("task in progress: %s [%s]", t.Name, t.Status))
		}
		for _, c := range daily.Tasks.Comments {
			parts = append(parts, fmt.Sprintf("commented on %s: %s", c.TaskName, c.Text))
		}
	}
	for _, u := range daily.ManualUpdates {
		parts = append(parts, "note: "+u)
	}

	return strings.Join(parts, "\n")
}
