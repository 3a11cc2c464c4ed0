package slack

import (
	"context"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// oooKeywords and oooEmojis are the status markers that count as
// out-of-office.
var oooKeywords = []string{"ooo", "out of office", "vacation", "pto", "on leave", "away"}

var oooEmojis = map[string]bool{
	":palm_tree:":           true,
	":no_entry:":            true,
	":airplane:":            true,
	":beach_with_umbrella:": true,
}

// Gate checks whether the tracked user's Slack status marks them as
// unavailable, in which case the day's report is suppressed.
type Gate struct {
	client *Client
	userID string
}

func NewGate(client *Client, userID string) *Gate {
	return &Gate{client: client, userID: userID}
}

type profileResponse struct {
	apiEnvelope
	Profile struct {
		StatusText  string `json:"status_text"`
		StatusEmoji string `json:"status_emoji"`
	} `json:"profile"`
}

// IsUnavailable reports whether the user's status text or emoji looks
// like OOO. Errors propagate to the caller, which treats them as
// available (the gate fails open).
func (g *Gate) IsUnavailable(ctx context.Context) (bool, error) {
	if g.userID == "" {
		return false, nil
	}

	var resp profileResponse
	if err := g.client.getForm(ctx, "users.profile.get", urlValues("user", g.userID), &resp); err != nil {
		return false, err
	}

	statusText := strings.ToLower(resp.Profile.StatusText)
	for _, kw := range oooKeywords {
		if strings.Contains(statusText, kw) {
			log.Info().Str("status", resp.Profile.StatusText).Msg("user is OOO by status text")
			return true, nil
		}
	}
	if oooEmojis[resp.Profile.StatusEmoji] {
		log.Info().Str("emoji", resp.Profile.StatusEmoji).Msg("user is OOO by status emoji")
		return true, nil
	}
	return false, nil
}

func urlValues(pairs ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Set(pairs[i], pairs[i+1])
	}
	return v
}
