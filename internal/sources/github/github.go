package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
	"github.com/susylPearl/eod-auto-reporter/internal/aggregate"
)

const defaultBaseURL = "https://api.github.com"

// Source fetches the tracked user's daily GitHub activity: commits via
// the events API (PushEvents) and pull requests via the search API.
type Source struct {
	baseURL  string
	token    string
	username string
	client   *http.Client
}

// New creates a GitHub source for the given user.
func New(token, username string) *Source {
	return &Source{
		baseURL:  defaultBaseURL,
		token:    token,
		username: username,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// NewWithBaseURL is used by tests to point the source at a fake server.
func NewWithBaseURL(baseURL, token, username string) *Source {
	s := New(token, username)
	s.baseURL = strings.TrimSuffix(baseURL, "/")
	return s
}

func (s *Source) ID() string { return activity.SourceGitHub }

// Fetch collects commits and PRs inside the window. The two PR search
// queries degrade independently: a failing search is logged and leaves
// that list empty rather than failing the whole source.
func (s *Source) Fetch(ctx context.Context, window activity.Window) (aggregate.Result, error) {
	log.Info().Str("user", s.username).Msg("fetching GitHub activity")

	events, err := s.fetchPushEvents(ctx, window)
	if err != nil {
		return aggregate.Result{}, fmt.Errorf("fetching events: %w", err)
	}
	commits := parseCommits(events)

	startDay := window.Start.Format("2006-01-02")
	endDay := window.End.Format("2006-01-02")
	opened, err := s.searchPRs(ctx, fmt.Sprintf("author:%s type:pr created:%s..%s", s.username, startDay, endDay), "open", window)
	if err != nil {
		log.Warn().Err(err).Msg("GitHub search for opened PRs failed")
	}
	merged, err := s.searchPRs(ctx, fmt.Sprintf("author:%s type:pr merged:%s..%s", s.username, startDay, endDay), "merged", window)
	if err != nil {
		log.Warn().Err(err).Msg("GitHub search for merged PRs failed")
	}

	log.Info().
		Int("commits", len(commits)).
		Int("prs_opened", len(opened)).
		Int("prs_merged", len(merged)).
		Msg("GitHub activity collected")

	return aggregate.Result{Code: &activity.CodeActivity{
		Commits:   commits,
		PRsOpened: opened,
		PRsMerged: merged,
	}}, nil
}

type pushEvent struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Repo      struct {
		Name string `json:"name"`
	} `json:"repo"`
	Payload struct {
		Commits []struct {
			SHA      string `json:"sha"`
			Message  string `json:"message"`
			Distinct bool   `json:"distinct"`
		} `json:"commits"`
	} `json:"payload"`
}

// fetchPushEvents pages through /users/{user}/events (max 10 pages) and
// keeps PushEvents inside the window, stopping early once events fall
// before the window start.
func (s *Source) fetchPushEvents(ctx context.Context, window activity.Window) ([]pushEvent, error) {
	var pushes []pushEvent

	for page := 1; page <= 10; page++ {
		requestURL := fmt.Sprintf("%s/users/%s/events?per_page=100&page=%d", s.baseURL, url.PathEscape(s.username), page)

		var events []pushEvent
		if err := s.getJSON(ctx, requestURL, &events); err != nil {
			return nil, err
		}
		if len(events) == 0 {
			break
		}

		for _, ev := range events {
			// Backdated windows end before now; newer events come first.
			if ev.CreatedAt.After(window.End) {
				continue
			}
			if ev.CreatedAt.Before(window.Start) {
				return pushes, nil
			}
			if ev.Type == "PushEvent" {
				pushes = append(pushes, ev)
			}
		}
	}

	return pushes, nil
}

func parseCommits(pushes []pushEvent) []activity.Commit {
	var commits []activity.Commit
	seen := map[string]bool{}

	for _, ev := range pushes {
		for _, c := range ev.Payload.Commits {
			if seen[c.SHA] {
				continue
			}
			seen[c.SHA] = true

			// PushEvents can carry commits mirrored from other branches;
			// non-distinct ones are duplicates of earlier pushes.
			if !c.Distinct {
				continue
			}

			commits = append(commits, activity.Commit{
				SHA:       c.SHA,
				Message:   firstLine(c.Message, 120),
				Repo:      ev.Repo.Name,
				URL:       fmt.Sprintf("https://github.com/%s/commit/%s", ev.Repo.Name, c.SHA),
				Timestamp: ev.CreatedAt,
			})
		}
	}
	return commits
}

type searchResponse struct {
	Items []struct {
		Number        int       `json:"number"`
		Title         string    `json:"title"`
		State         string    `json:"state"`
		HTMLURL       string    `json:"html_url"`
		RepositoryURL string    `json:"repository_url"`
		CreatedAt     time.Time `json:"created_at"`
		PullRequest   struct {
			MergedAt *time.Time `json:"merged_at"`
		} `json:"pull_request"`
	} `json:"items"`
}

func (s *Source) searchPRs(ctx context.Context, query, state string, window activity.Window) ([]activity.PullRequest, error) {
	requestURL := fmt.Sprintf("%s/search/issues?q=%s&per_page=50&sort=created&order=desc", s.baseURL, url.QueryEscape(query))

	var result searchResponse
	if err := s.getJSON(ctx, requestURL, &result); err != nil {
		return nil, err
	}

	var prs []activity.PullRequest
	for _, item := range result.Items {
		// Search date filters are day-granular; re-check against the
		// window's actual bounds.
		ts := item.CreatedAt
		if state == "merged" && item.PullRequest.MergedAt != nil {
			ts = *item.PullRequest.MergedAt
		}
		if ts.Before(window.Start) || ts.After(window.End) {
			continue
		}
		prs = append(prs, activity.PullRequest{
			Number:    item.Number,
			Title:     item.Title,
			Repo:      strings.TrimPrefix(item.RepositoryURL, s.baseURL+"/repos/"),
			State:     state,
			URL:       item.HTMLURL,
			CreatedAt: item.CreatedAt,
		})
	}
	return prs, nil
}

func (s *Source) getJSON(ctx context.Context, requestURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitHub API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func firstLine(message string, limit int) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		message = message[:i]
	}
	if len(message) > limit {
		message = message[:limit]
	}
	return message
}
