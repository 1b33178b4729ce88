package notify

import (
	"context"
	"fmt"

	"github.com/nidhogg/botmarket/internal/market"
	"github.com/nidhogg/botmarket/internal/money"
	"go.uber.org/zap"
)

// Announcer posts a marketplace announcement to a chat platform.
type Announcer interface {
	Platform() string
	Announce(ctx context.Context, text string) error
	Close() error
}

// Gateway renders marketplace events into chat announcements and fans them
// out to every registered announcer. It implements market.EventSink.
type Gateway struct {
	announcers []Announcer
	logger     *zap.Logger
}

// NewGateway creates an announcement gateway.
func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{logger: logger}
}

// Register adds an announcer.
func (g *Gateway) Register(a Announcer) {
	g.announcers = append(g.announcers, a)
	g.logger.Info("announcer registered", zap.String("platform", a.Platform()))
}

// Publish renders and sends the event. Events that aren't announcement-worthy
// are dropped silently.
func (g *Gateway) Publish(ctx context.Context, ev market.Event) error {
	text := render(ev)
	if text == "" {
		return nil
	}
	var first error
	for _, a := range g.announcers {
		if err := a.Announce(ctx, text); err != nil {
			g.logger.Warn("announce failed",
				zap.String("platform", a.Platform()), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Close shuts down all announcers.
func (g *Gateway) Close() {
	for _, a := range g.announcers {
		if err := a.Close(); err != nil {
			g.logger.Warn("announcer close failed",
				zap.String("platform", a.Platform()), zap.Error(err))
		}
	}
}

func render(ev market.Event) string {
	switch ev.Type {
	case "skill.listed":
		eth := formatAmount(ev.AmountWei)
		return fmt.Sprintf("📦 New skill on the market: `%s` for %s ETH", ev.SkillID, eth)
	case "purchase.completed":
		eth := formatAmount(ev.AmountWei)
		return fmt.Sprintf("💰 `%s` was just purchased for %s ETH", ev.SkillID, eth)
	default:
		return ""
	}
}

func formatAmount(wei string) string {
	v, err := money.ParseWei(wei)
	if err != nil {
		return "?"
	}
	return money.FormatEther(v)
}
