package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
)

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(Options{Provider: "clippy"})
	assert.Error(t, err)
}

func TestActivityDigest(t *testing.T) {
	daily := &activity.Daily{
		Code: &activity.CodeActivity{
			Commits:   []activity.Commit{{Repo: "acme/api", Message: "Fix race"}},
			PRsOpened: []activity.PullRequest{{Repo: "acme/api", Title: "Streaming uploads"}},
		},
		Tasks: &activity.TaskActivity{
			Completed:     []activity.Task{{Name: "Ship uploads"}},
			StatusChanged: []activity.Task{{Name: "Audit logging", Status: "in progress"}},
			Comments:      []activity.TaskComment{{TaskName: "Ship uploads", Text: "deployed to staging"}},
		},
		ManualUpdates: []string{"Paired with Dana"},
	}

	got := activityDigest(daily)

	assert.Contains(t, got, "commit [acme/api] Fix race")
	assert.Contains(t, got, "PR opened [acme/api] Streaming uploads")
	assert.Contains(t, got, "task completed: Ship uploads")
	assert.Contains(t, got, "task in progress: Audit logging [in progress]")
	assert.Contains(t, got, "commented on Ship uploads: deployed to staging")
	assert.Contains(t, got, "note: Paired with Dana")
}

func TestActivityDigestEmptyDay(t *testing.T) {
	assert.Equal(t, "", activityDigest(&activity.Daily{}))
}
