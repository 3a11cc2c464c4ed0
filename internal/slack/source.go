package slack

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/susylPearl/eod-auto-reporter/internal/activity"
	"github.com/susylPearl/eod-auto-reporter/internal/aggregate"
)

// ChatSource fetches the day's discussions from the monitored channels
// via conversations.history. It is the "chat" activity source.
//
// Fetch may be called concurrently: the pipeline and the API's
// on-demand aggregation share one instance, so the name caches are
// mutex-guarded.
type ChatSource struct {
	client   *Client
	channels []string // channel IDs to monitor

	mu           sync.Mutex
	userNames    map[string]string
	channelNames map[string]string
}

func NewChatSource(client *Client, channels []string) *ChatSource {
	return &ChatSource{
		client:       client,
		channels:     channels,
		userNames:    map[string]string{},
		channelNames: map[string]string{},
	}
}

func (s *ChatSource) ID() string { return activity.SourceSlack }

// Fetch reads each monitored channel's history for the window. A
// channel that cannot be read (bot not invited, missing scope) fails
// the whole source so the error surfaces to the operator.
func (s *ChatSource) Fetch(ctx context.Context, window activity.Window) (aggregate.Result, error) {
	chat := &activity.ChatActivity{}

	for _, chID := range s.channels {
		name := s.channelName(ctx, chID)
		messages, err := s.fetchChannel(ctx, chID, name, window)
		if err != nil {
			return aggregate.Result{}, fmt.Errorf("channel %s: %w", chID, err)
		}
		chat.Channels = append(chat.Channels, activity.ChannelActivity{
			ChannelID:   chID,
			ChannelName: name,
			Messages:    messages,
		})
		log.Info().Str("channel", name).Int("messages", len(messages)).Msg("Slack channel history fetched")
	}

	return aggregate.Result{Chat: chat}, nil
}

type historyResponse struct {
	apiEnvelope
	Messages []struct {
		User    string `json:"user"`
		Text    string `json:"text"`
		TS      string `json:"ts"`
		Subtype string `json:"subtype"`
	} `json:"messages"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

func (s *ChatSource) fetchChannel(ctx context.Context, chID, chName string, window activity.Window) ([]activity.Message, error) {
	var out []activity.Message
	cursor := ""

	for {
		params := url.Values{}
		params.Set("channel", chID)
		params.Set("oldest", fmt.Sprintf("%d.000000", window.Start.Unix()))
		params.Set("latest", fmt.Sprintf("%d.000000", window.End.Unix()))
		params.Set("limit", "100")
		params.Set("inclusive", "true")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp historyResponse
		if err := s.client.getForm(ctx, "conversations.history", params, &resp); err != nil {
			return nil, err
		}

		for _, m := range resp.Messages {
			// Skip bot chatter and membership noise.
			if m.Subtype == "bot_message" || m.Subtype == "channel_join" || m.Subtype == "channel_leave" {
				continue
			}
			if m.Text == "" {
				continue
			}
			text := m.Text
			if len(text) > 500 {
				text = text[:500]
			}
			out = append(out, activity.Message{
				UserID:      m.User,
				UserName:    s.userName(ctx, m.User),
				Text:        text,
				ChannelID:   chID,
				ChannelName: chName,
				Timestamp:   tsToTime(m.TS),
			})
		}

		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			break
		}
	}

	// History arrives newest first; the report reads better in posting
	// order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

type conversationsInfoResponse struct {
	apiEnvelope
	Channel struct {
		Name string `json:"name"`
	} `json:"channel"`
}

func (s *ChatSource) channelName(ctx context.Context, chID string) string {
	s.mu.Lock()
	name, ok := s.channelNames[chID]
	s.mu.Unlock()
	if ok {
		return name
	}
	name = chID
	var resp conversationsInfoResponse
	if err := s.client.getForm(ctx, "conversations.info", urlValues("channel", chID), &resp); err == nil && resp.Channel.Name != "" {
		name = resp.Channel.Name
	}
	s.mu.Lock()
	s.channelNames[chID] = name
	s.mu.Unlock()
	return name
}

func (s *ChatSource) userName(ctx context.Context, userID string) string {
	if userID == "" {
		return ""
	}
	s.mu.Lock()
	name, ok := s.userNames[userID]
	s.mu.Unlock()
	if ok {
		return name
	}
	name = userID
	var resp usersInfoResponse
	if err := s.client.getForm(ctx, "users.info", urlValues("user", userID), &resp); err == nil {
		if resp.User.Profile.DisplayName != "" {
			name = resp.User.Profile.DisplayName
		} else if resp.User.Profile.RealName != "" {
			name = resp.User.Profile.RealName
		}
	}
	s.mu.Lock()
	s.userNames[userID] = name
	s.mu.Unlock()
	return name
}

func tsToTime(ts string) time.Time {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(int64(f), 0).UTC()
}
