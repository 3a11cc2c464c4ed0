package clickup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
	"github.com/susylPearl/eod-auto-reporter/internal/aggregate"
)

const defaultBaseURL = "https://api.clickup.com/api/v2"

// completedStatuses are the task statuses that count as finished work.
var completedStatuses = map[string]bool{
	"complete": true,
	"closed":   true,
	"done":     true,
	"resolved": true,
}

// inProgressStatuses indicate active work. Tasks in other statuses
// (open, to do, backlog) are excluded from the report.
var inProgressStatuses = map[string]bool{
	"in progress":      true,
	"in review":        true,
	"review":           true,
	"qa":               true,
	"testing":          true,
	"dev-test":         true,
	"ready for review": true,
	"in development":   true,
}

// maxCommentTasks bounds how many tasks we pull comments for, to keep
// the request count per run reasonable.
const maxCommentTasks = 20

// Source fetches the tracked user's daily ClickUp task and comment
// activity through the v2 API. Requests are rate limited; ClickUp's
// free tier allows 100 requests per minute per token.
type Source struct {
	baseURL string
	token   string
	teamID  string
	userID  int
	client  *http.Client
	limiter *rate.Limiter
}

func New(token, teamID string, userID int) *Source {
	return &Source{
		baseURL: defaultBaseURL,
		token:   token,
		teamID:  teamID,
		userID:  userID,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Minute/90), 10),
	}
}

// NewWithBaseURL is used by tests to point the source at a fake server.
func NewWithBaseURL(baseURL, token, teamID string, userID int) *Source {
	s := New(token, teamID, userID)
	s.baseURL = strings.TrimSuffix(baseURL, "/")
	return s
}

func (s *Source) ID() string { return activity.SourceClickUp }

// Fetch returns the window's task activity: tasks completed, tasks in
// progress, and comments the user authored. Comment failures degrade
// to an empty comment list.
func (s *Source) Fetch(ctx context.Context, window activity.Window) (aggregate.Result, error) {
	log.Info().Str("team", s.teamID).Int("user", s.userID).Msg("fetching ClickUp activity")

	raw, err := s.fetchTasks(ctx, window)
	if err != nil {
		return aggregate.Result{}, fmt.Errorf("fetching tasks: %w", err)
	}

	tasks := &activity.TaskActivity{}
	var commentCandidates []rawTask
	for _, t := range raw {
		status := strings.ToLower(t.Status.Status)
		switch {
		case completedStatuses[status]:
			tasks.Completed = append(tasks.Completed, toTask(t))
		case inProgressStatuses[status]:
			tasks.StatusChanged = append(tasks.StatusChanged, toTask(t))
		default:
			continue
		}
		commentCandidates = append(commentCandidates, t)
	}

	tasks.Comments = s.fetchComments(ctx, commentCandidates, window)

	log.Info().
		Int("completed", len(tasks.Completed)).
		Int("in_progress", len(tasks.StatusChanged)).
		Int("comments", len(tasks.Comments)).
		Msg("ClickUp activity collected")

	return aggregate.Result{Tasks: tasks}, nil
}

type rawTask struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Parent string `json:"parent"`
	URL    string `json:"url"`
	Status struct {
		Status string `json:"status"`
	} `json:"status"`
	DateUpdated string `json:"date_updated"`
}

type tasksResponse struct {
	Tasks    []rawTask `json:"tasks"`
	LastPage bool      `json:"last_page"`
}

// fetchTasks pages through the filtered team tasks endpoint for tasks
// assigned to the user and updated inside the window.
func (s *Source) fetchTasks(ctx context.Context, window activity.Window) ([]rawTask, error) {
	var all []rawTask

	for page := 0; ; page++ {
		requestURL := fmt.Sprintf(
			"%s/team/%s/task?assignees[]=%d&date_updated_gt=%d&date_updated_lt=%d&subtasks=true&include_closed=true&order_by=updated&reverse=true&page=%d",
			s.baseURL, s.teamID, s.userID, window.Start.UnixMilli(), window.End.UnixMilli(), page)

		var result tasksResponse
		if err := s.getJSON(ctx, requestURL, &result); err != nil {
			return nil, err
		}
		if len(result.Tasks) == 0 {
			break
		}
		all = append(all, result.Tasks...)
		if result.LastPage {
			break
		}
	}

	return all, nil
}

type commentsResponse struct {
	Comments []struct {
		Comment []struct {
			Text string `json:"text"`
		} `json:"comment"`
		Date string `json:"date"`
		User struct {
			ID int `json:"id"`
		} `json:"user"`
	} `json:"comments"`
}

// fetchComments pulls each task's comment thread and keeps the ones
// the tracked user wrote inside the window, truncated to 200 chars.
func (s *Source) fetchComments(ctx context.Context, tasks []rawTask, window activity.Window) []activity.TaskComment {
	var comments []activity.TaskComment

	for i, t := range tasks {
		if i >= maxCommentTasks {
			break
		}
		var result commentsResponse
		if err := s.getJSON(ctx, fmt.Sprintf("%s/task/%s/comment", s.baseURL, t.ID), &result); err != nil {
			log.Warn().Str("task", t.ID).Err(err).Msg("could not fetch task comments")
			continue
		}
		for _, c := range result.Comments {
			dateMs := parseMillis(c.Date)
			if c.User.ID != s.userID || dateMs < window.Start.UnixMilli() {
				continue
			}
			var parts []string
			for _, p := range c.Comment {
				parts = append(parts, p.Text)
			}
			text := strings.TrimSpace(strings.Join(parts, " "))
			if len(text) > 200 {
				text = text[:200]
			}
			if text == "" {
				text = "(empty comment)"
			}
			comments = append(comments, activity.TaskComment{
				TaskID:   t.ID,
				TaskName: t.Name,
				Text:     text,
				Date:     time.UnixMilli(dateMs).UTC(),
			})
		}
	}

	return comments
}

func (s *Source) getJSON(ctx context.Context, requestURL string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ClickUp API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func toTask(t rawTask) activity.Task {
	url := t.URL
	if url == "" {
		url = "https://app.clickup.com/t/" + t.ID
	}
	return activity.Task{
		ID:          t.ID,
		Name:        t.Name,
		Status:      strings.ToLower(t.Status.Status),
		ParentID:    t.Parent,
		URL:         url,
		DateUpdated: time.UnixMilli(parseMillis(t.DateUpdated)).UTC(),
	}
}

func parseMillis(s string) int64 {
	var ms int64
	fmt.Sscanf(s, "%d", &ms)
	return ms
}
