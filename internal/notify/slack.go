package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// SlackAnnouncer posts announcements to a single Slack channel.
type SlackAnnouncer struct {
	client  *slack.Client
	channel string
	logger  *zap.Logger
}

// NewSlackAnnouncer creates a Slack announcer.
// botToken is the Bot User OAuth Token (xoxb-...).
func NewSlackAnnouncer(botToken, channel string, logger *zap.Logger) *SlackAnnouncer {
	return &SlackAnnouncer{
		client:  slack.New(botToken),
		channel: channel,
		logger:  logger,
	}
}

func (a *SlackAnnouncer) Platform() string { return "slack" }

// Announce posts a message to the configured channel.
func (a *SlackAnnouncer) Announce(ctx context.Context, text string) error {
	_, _, err := a.client.PostMessageContext(ctx, a.channel,
		slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}

func (a *SlackAnnouncer) Close() error { return nil }
