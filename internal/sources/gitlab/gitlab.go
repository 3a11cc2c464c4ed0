// Package gitlab is the alternative code-hosting source, for people
// whose work lives on GitLab instead of GitHub.
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
	"github.com/susylPearl/eod-auto-reporter/internal/aggregate"
)

// Source fetches the tracked user's contribution events from a GitLab
// instance. User and project lookups go through the official client;
// event queries use direct HTTP requests because the client does not
// expose the query shape the events endpoint needs.
type Source struct {
	client   *gitlab.Client
	http     *httpClient
	username string
}

// Config contains the GitLab connection settings.
type Config struct {
	URL      string `koanf:"url"`
	Token    string `koanf:"token"`
	Username string `koanf:"username"`
}

// New creates a GitLab source. An empty URL means gitlab.com.
func New(cfg Config) (*Source, error) {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = "https://gitlab.com"
	}

	client, err := gitlab.NewClient(cfg.Token, gitlab.WithBaseURL(fmt.Sprintf("%s/api/v4", baseURL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	return &Source{
		client:   client,
		http:     newHTTPClient(baseURL, cfg.Token),
		username: cfg.Username,
	}, nil
}

func (s *Source) ID() string { return activity.SourceGitLab }

// Fetch reads the user's events for the window and folds them into a
// code activity snapshot: push events become commit entries, merge
// request open/accept events become the PR lists.
func (s *Source) Fetch(ctx context.Context, window activity.Window) (aggregate.Result, error) {
	log.Info().Str("user", s.username).Msg("fetching GitLab activity")

	users, _, err := s.client.Users.ListUsers(&gitlab.ListUsersOptions{Username: gitlab.Ptr(s.username)}, gitlab.WithContext(ctx))
	if err != nil {
		return aggregate.Result{}, fmt.Errorf("resolving user: %w", err)
	}
	if len(users) == 0 {
		return aggregate.Result{}, fmt.Errorf("no GitLab user named %q", s.username)
	}
	userID := users[0].ID

	events, err := s.http.listUserEvents(ctx, userID, window)
	if err != nil {
		return aggregate.Result{}, fmt.Errorf("fetching events: %w", err)
	}

	code := &activity.CodeActivity{}
	projectNames := map[int]string{}

	for _, ev := range events {
		project := s.projectPath(ctx, ev.ProjectID, projectNames)

		switch {
		case strings.HasPrefix(ev.ActionName, "pushed"):
			if ev.PushData.CommitTitle == "" {
				continue
			}
			code.Commits = append(code.Commits, activity.Commit{
				SHA:       ev.PushData.CommitTo,
				Message:   ev.PushData.CommitTitle,
				Repo:      project,
				URL:       fmt.Sprintf("%s/%s/-/commit/%s", s.http.webURL, project, ev.PushData.CommitTo),
				Timestamp: ev.CreatedAt,
			})
		case ev.TargetType == "MergeRequest" && ev.ActionName == "opened":
			code.PRsOpened = append(code.PRsOpened, s.mergeRequest(ev, project, "open"))
		case ev.TargetType == "MergeRequest" && (ev.ActionName == "accepted" || ev.ActionName == "merged"):
			code.PRsMerged = append(code.PRsMerged, s.mergeRequest(ev, project, "merged"))
		}
	}

	log.Info().
		Int("commits", len(code.Commits)).
		Int("mrs_opened", len(code.PRsOpened)).
		Int("mrs_merged", len(code.PRsMerged)).
		Msg("GitLab activity collected")

	return aggregate.Result{Code: code}, nil
}

func (s *Source) mergeRequest(ev userEvent, project, state string) activity.PullRequest {
	return activity.PullRequest{
		Number:    ev.TargetIID,
		Title:     ev.TargetTitle,
		Repo:      project,
		State:     state,
		URL:       fmt.Sprintf("%s/%s/-/merge_requests/%d", s.http.webURL, project, ev.TargetIID),
		CreatedAt: ev.CreatedAt,
	}
}

func (s *Source) projectPath(ctx context.Context, projectID int, cache map[int]string) string {
	if name, ok := cache[projectID]; ok {
		return name
	}
	project, _, err := s.client.Projects.GetProject(projectID, nil, gitlab.WithContext(ctx))
	name := ""
	if err != nil {
		log.Warn().Int("project", projectID).Err(err).Msg("could not resolve project path")
		name = fmt.Sprintf("project-%d", projectID)
	} else {
		name = project.PathWithNamespace
	}
	cache[projectID] = name
	return name
}

// httpClient issues direct GitLab API requests.
type httpClient struct {
	baseURL string // .../api/v4
	webURL  string // instance root, for building commit links
	token   string
	client  *http.Client
}

func newHTTPClient(baseURL, token string) *httpClient {
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &httpClient{
		baseURL: baseURL + "/api/v4",
		webURL:  baseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type userEvent struct {
	ActionName  string    `json:"action_name"`
	TargetType  string    `json:"target_type"`
	TargetIID   int       `json:"target_iid"`
	TargetTitle string    `json:"target_title"`
	ProjectID   int       `json:"project_id"`
	CreatedAt   time.Time `json:"created_at"`
	PushData    struct {
		CommitTo    string `json:"commit_to"`
		CommitTitle string `json:"commit_title"`
	} `json:"push_data"`
}

// listUserEvents pages through /users/:id/events bounded by the
// window's dates. The after/before parameters are date-granular, so
// events are filtered against the window again on the way in.
func (c *httpClient) listUserEvents(ctx context.Context, userID int, window activity.Window) ([]userEvent, error) {
	var all []userEvent

	for page := 1; ; page++ {
		requestURL := fmt.Sprintf("%s/users/%d/events?after=%s&per_page=100&page=%d",
			c.baseURL, userID, window.Start.AddDate(0, 0, -1).Format("2006-01-02"), page)

		var events []userEvent
		if err := c.getJSON(ctx, requestURL, &events); err != nil {
			return nil, err
		}
		if len(events) == 0 {
			break
		}
		for _, ev := range events {
			if ev.CreatedAt.Before(window.Start) || ev.CreatedAt.After(window.End) {
				continue
			}
			all = append(all, ev)
		}
	}

	return all, nil
}

func (c *httpClient) getJSON(ctx context.Context, requestURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitLab API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
