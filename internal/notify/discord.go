package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordAnnouncer posts announcements to a single Discord channel.
type DiscordAnnouncer struct {
	session   *discordgo.Session
	channelID string
	logger    *zap.Logger
}

// NewDiscordAnnouncer opens a Discord session for the announcement channel.
func NewDiscordAnnouncer(token, channelID string, logger *zap.Logger) (*DiscordAnnouncer, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	// Announcements only; no inbound message intents needed.
	session.Identify.Intents = discordgo.IntentsGuilds

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord open: %w", err)
	}
	logger.Info("discord announcer connected",
		zap.String("user", session.State.User.Username),
		zap.String("channel", channelID))
	return &DiscordAnnouncer{session: session, channelID: channelID, logger: logger}, nil
}

func (a *DiscordAnnouncer) Platform() string { return "discord" }

// Announce posts a message to the configured channel.
func (a *DiscordAnnouncer) Announce(_ context.Context, text string) error {
	if _, err := a.session.ChannelMessageSend(a.channelID, text); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

// Close shuts down the Discord session.
func (a *DiscordAnnouncer) Close() error {
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}
