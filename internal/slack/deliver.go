package slack

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Deliverer posts the formatted EOD report to a Slack channel via
// chat.postMessage, with Block Kit blocks and a plain-text fallback.
type Deliverer struct {
	client  *Client
	channel string
	userID  string // optional: report is posted under this user's name and avatar

	identityOnce sync.Once
	userName     string
	iconURL      string
}

func NewDeliverer(client *Client, channel, userID string) *Deliverer {
	return &Deliverer{client: client, channel: channel, userID: userID}
}

type postMessageRequest struct {
	Channel     string           `json:"channel"`
	Text        string           `json:"text"`
	Blocks      []map[string]any `json:"blocks,omitempty"`
	Username    string           `json:"username,omitempty"`
	IconURL     string           `json:"icon_url,omitempty"`
	UnfurlLinks bool             `json:"unfurl_links"`
	UnfurlMedia bool             `json:"unfurl_media"`
}

type postMessageResponse struct {
	apiEnvelope
	TS string `json:"ts"`
}

// Deliver posts the report. plainText is shown in notifications and
// non-Block-Kit clients; blocks carry the rich rendering.
func (d *Deliverer) Deliver(ctx context.Context, plainText string, blocks []map[string]any) error {
	name, icon := d.identity(ctx)

	req := postMessageRequest{
		Channel:  d.channel,
		Text:     plainText,
		Blocks:   blocks,
		Username: name,
		IconURL:  icon,
	}

	var resp postMessageResponse
	if err := d.client.postJSON(ctx, "chat.postMessage", req, &resp); err != nil {
		return err
	}

	log.Info().Str("channel", d.channel).Str("ts", resp.TS).Msg("report posted to Slack")
	return nil
}

type usersInfoResponse struct {
	apiEnvelope
	User struct {
		Profile struct {
			RealName    string `json:"real_name"`
			DisplayName string `json:"display_name"`
			Image192    string `json:"image_192"`
			Image72     string `json:"image_72"`
		} `json:"profile"`
	} `json:"user"`
}

// identity resolves the tracked user's display name and avatar once
// per process, so the report appears under their identity instead of
// the bot's. Lookup failures fall back to the bot defaults.
func (d *Deliverer) identity(ctx context.Context) (string, string) {
	d.identityOnce.Do(func() {
		if d.userID == "" {
			return
		}
		var resp usersInfoResponse
		if err := d.client.getForm(ctx, "users.info", urlValues("user", d.userID), &resp); err != nil {
			log.Debug().Err(err).Msg("could not resolve Slack identity, using bot defaults")
			return
		}
		p := resp.User.Profile
		if p.RealName != "" {
			d.userName = p.RealName
		} else {
			d.userName = p.DisplayName
		}
		if p.Image192 != "" {
			d.iconURL = p.Image192
		} else {
			d.iconURL = p.Image72
		}
	})
	return d.userName, d.iconURL
}
