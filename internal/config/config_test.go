package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eodreporter.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	path := writeConfig(t, `
sources = ["github", "clickup"]

[github]
token = "ghp_test"
username = "susyl"

[clickup]
token = "pk_test"
team_id = "9001"
user_id = 42

[slack]
bot_token = "xoxb-test"
channel = "#eod-reports"
user_id = "U01TEST"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
[github]
token = "ghp_test"
username = "susyl"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"github", "clickup"}, cfg.Sources)
	assert.Equal(t, 15, cfg.Report.MaxCommitsPerRepo)
	assert.Equal(t, 30*time.Second, cfg.SourceTimeout())
	assert.Equal(t, 18, cfg.Schedule.Hour)
	assert.Equal(t, 0, cfg.Schedule.Minute)
	assert.Equal(t, "UTC", cfg.Schedule.Timezone)
	assert.Equal(t, 8787, cfg.API.Port)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
sources = ["gitlab", "slack"]

[report]
max_commits_per_repo = 3
source_timeout_secs = 5

[schedule]
hour = 17
minute = 30
timezone = "Asia/Kathmandu"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"gitlab", "slack"}, cfg.Sources)
	assert.Equal(t, 3, cfg.Report.MaxCommitsPerRepo)
	assert.Equal(t, 5*time.Second, cfg.SourceTimeout())
	assert.Equal(t, 17, cfg.Schedule.Hour)
	assert.Equal(t, 30, cfg.Schedule.Minute)
	assert.Equal(t, "Asia/Kathmandu", cfg.Schedule.Timezone)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[github]
token = "from-file"
username = "susyl"
`)
	t.Setenv("EODREPORTER_GITHUB_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.GitHub.Token)
	assert.Equal(t, "susyl", cfg.GitHub.Username)
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestSourceEnabled(t *testing.T) {
	cfg := &Config{Sources: []string{"GitHub", " clickup "}}

	assert.True(t, cfg.SourceEnabled(activity.SourceGitHub))
	assert.True(t, cfg.SourceEnabled(activity.SourceClickUp))
	assert.False(t, cfg.SourceEnabled(activity.SourceSlack))
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	assert.NoError(t, Validate(validConfig(t)))
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no sources", func(c *Config) { c.Sources = nil }, "no sources enabled"},
		{"both code hosts", func(c *Config) { c.Sources = []string{"github", "gitlab"} }, "not both"},
		{"github without token", func(c *Config) { c.GitHub.Token = "" }, "github.token"},
		{"clickup without team", func(c *Config) { c.ClickUp.TeamID = "" }, "clickup"},
		{"slack chat without channels", func(c *Config) { c.Sources = append(c.Sources, "slack") }, "monitor_channels"},
		{"unknown source", func(c *Config) { c.Sources = []string{"jira"} }, "unknown source"},
		{"missing bot token", func(c *Config) { c.Slack.BotToken = "" }, "bot_token"},
		{"missing channel", func(c *Config) { c.Slack.Channel = "" }, "channel"},
		{"hour out of range", func(c *Config) { c.Schedule.Hour = 24 }, "schedule.hour"},
		{"minute out of range", func(c *Config) { c.Schedule.Minute = 60 }, "schedule.minute"},
		{"bad timezone", func(c *Config) { c.Schedule.Timezone = "Neverland/Nowhere" }, "timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInitRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eodreporter.toml")

	require.NoError(t, Init(path))
	assert.Error(t, Init(path))

	// The generated sample must itself load.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"github", "clickup"}, cfg.Sources)
	assert.Equal(t, "#eod-reports", cfg.Slack.Channel)
}
