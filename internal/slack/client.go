// Package slack is a thin client for the Slack Web API pieces the
// reporter needs: posting the report, checking the tracked user's
// away status, and reading monitored channel history.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://slack.com/api"

// Client talks to the Slack Web API with a bot token.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientWithBaseURL is used by tests to point the client at a fake
// server.
func NewClientWithBaseURL(baseURL, token string) *Client {
	c := NewClient(token)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// apiEnvelope is the part of every Slack Web API response that says
// whether the call worked.
type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// postJSON sends a JSON-bodied Web API call and decodes the response
// into out, which must embed the ok/error envelope.
func (c *Client) postJSON(ctx context.Context, method string, payload any, out envelope) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	return c.do(req, method, out)
}

// getForm sends a query-parameter Web API call.
func (c *Client) getForm(ctx context.Context, method string, params url.Values, out envelope) error {
	requestURL := c.baseURL + "/" + method
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	return c.do(req, method, out)
}

type envelope interface {
	apiError() string
	apiOK() bool
}

func (e *apiEnvelope) apiError() string { return e.Error }
func (e *apiEnvelope) apiOK() bool      { return e.OK }

func (c *Client) do(req *http.Request, method string, out envelope) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Slack API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !out.apiOK() {
		return fmt.Errorf("Slack API %s failed: %s", method, out.apiError())
	}
	return nil
}
