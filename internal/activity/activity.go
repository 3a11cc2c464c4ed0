package activity

import "time"

// Commit is a single commit authored by the tracked user.
type Commit struct {
	SHA       string    `json:"sha"`
	Message   string    `json:"message"`
	Repo      string    `json:"repo"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// PullRequest is a pull/merge request opened or merged by the tracked user.
type PullRequest struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Repo      string     `json:"repo"`
	State     string     `json:"state"`
	URL       string     `json:"url"`
	CreatedAt time.Time  `json:"created_at"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`
}

// CodeActivity is one day of code-hosting activity (GitHub or GitLab).
type CodeActivity struct {
	Commits   []Commit      `json:"commits"`
	PRsOpened []PullRequest `json:"prs_opened"`
	PRsMerged []PullRequest `json:"prs_merged"`
}

// IsEmpty reports whether the snapshot carries no entries at all.
func (c *CodeActivity) IsEmpty() bool {
	return c == nil || (len(c.Commits) == 0 && len(c.PRsOpened) == 0 && len(c.PRsMerged) == 0)
}

// Task is a tracker task that was touched during the report window.
type Task struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	ParentID    string    `json:"parent_id,omitempty"`
	URL         string    `json:"url"`
	DateUpdated time.Time `json:"date_updated"`
}

// TaskComment is a comment the tracked user posted on a task.
type TaskComment struct {
	TaskID   string    `json:"task_id"`
	TaskName string    `json:"task_name"`
	Text     string    `json:"text"`
	Date     time.Time `json:"date"`
}

// TaskActivity is one day of task-tracker activity.
//
// A task may appear in both Completed and StatusChanged when it both
// finished and transitioned during the window; the formatter renders it
// once per category.
type TaskActivity struct {
	Completed     []Task        `json:"completed"`
	StatusChanged []Task        `json:"status_changed"`
	Comments      []TaskComment `json:"comments"`
}

func (t *TaskActivity) IsEmpty() bool {
	return t == nil || (len(t.Completed) == 0 && len(t.StatusChanged) == 0 && len(t.Comments) == 0)
}

// Message is a single chat message from a monitored channel.
type Message struct {
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	Text        string    `json:"text"`
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	Timestamp   time.Time `json:"timestamp"`
}

// ChannelActivity is the day's messages from one monitored channel, in
// posting order. Digest is filled in later by the pipeline when AI
// summarization is enabled; the formatter falls back to a message count
// when it is empty.
type ChannelActivity struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	Messages    []Message `json:"messages"`
	Digest      string    `json:"digest,omitempty"`
}

// ChatActivity is one day of chat activity across monitored channels.
// Channel order follows the configured monitor list.
type ChatActivity struct {
	Channels []ChannelActivity `json:"channels"`
}

func (c *ChatActivity) IsEmpty() bool {
	if c == nil {
		return true
	}
	for _, ch := range c.Channels {
		if len(ch.Messages) > 0 {
			return false
		}
	}
	return true
}

// Source identifiers used across aggregation, configuration, and the
// per-source error map.
const (
	SourceGitHub  = "github"
	SourceGitLab  = "gitlab"
	SourceClickUp = "clickup"
	SourceSlack   = "slack"
)

// Daily is the composite activity for a single report date.
//
// A nil snapshot means the source was disabled or its fetch failed; the
// Errors map says which. A source never has both a snapshot and an
// error entry. Built once per pipeline run and never mutated after.
type Daily struct {
	Date          string            `json:"date"` // YYYY-MM-DD
	Code          *CodeActivity     `json:"code,omitempty"`
	Tasks         *TaskActivity     `json:"tasks,omitempty"`
	Chat          *ChatActivity     `json:"chat,omitempty"`
	ManualUpdates []string          `json:"manual_updates,omitempty"`
	AISummary     string            `json:"ai_summary,omitempty"`
	Errors        map[string]string `json:"errors,omitempty"`
}

// IsEmpty reports whether there is nothing worth posting: no source
// data, no manual updates, and no AI narrative. Per-source errors alone
// do not count as activity.
func (d *Daily) IsEmpty() bool {
	return d.Code.IsEmpty() && d.Tasks.IsEmpty() && d.Chat.IsEmpty() &&
		len(d.ManualUpdates) == 0 && d.AISummary == ""
}

// Window is the date range a pipeline run covers.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the window from midnight to now for the given
// moment, in that moment's location.
func DayWindow(now time.Time) Window {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return Window{Start: start, End: now}
}

// DateWindow returns the full-day window for the given date, midnight
// to the following midnight. Used for backdated reports, where "up to
// now" would leave the window empty.
func DateWindow(day time.Time) Window {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}
