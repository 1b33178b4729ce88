package market

import (
	"context"
	"fmt"

	"github.com/nidhogg/botmarket/internal/money"
	"go.uber.org/zap"
)

// List puts a skill up for sale, replacing any prior listing for the same
// skill id. Only the creator may list. A nil price falls back to the price
// declared in the manifest. Price changes take effect immediately; purchases
// are atomic, so there is no in-flight window to protect.
func (m *Market) List(ctx context.Context, identity, skillID string, price *money.Wei, autoApprove bool) (*Listing, error) {
	if price != nil && price.Sign() < 0 {
		return nil, fmt.Errorf("list %s: %w", skillID, money.ErrInvalidAmount)
	}

	m.mu.Lock()
	skill, ok := m.skills[skillID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("list %s: %w", skillID, ErrNotFound)
	}
	if skill.Creator != identity {
		m.mu.Unlock()
		return nil, fmt.Errorf("list %s: %w", skillID, ErrForbidden)
	}
	if price == nil {
		price = skill.PriceWei
	}

	status := StatusPendingApproval
	if autoApprove {
		status = StatusActive
	}
	listing := &Listing{
		SkillID:         skill.SkillID,
		Name:            skill.Name,
		Creator:         skill.Creator,
		Version:         skill.Version,
		Tags:            skill.Tags,
		Interface:       skill.Interface,
		Capabilities:    skill.Capabilities,
		Installation:    skill.Installation,
		Dependencies:    skill.Dependencies,
		PriceWei:        price.Clone(),
		InitialPriceWei: price.Clone(),
		Status:          status,
		ListedAt:        m.now(),
	}
	// Relisting keeps accumulated sales and ratings.
	if prev, ok := m.listings[skillID]; ok {
		listing.TotalSales = prev.TotalSales
		listing.RatingSum = prev.RatingSum
		listing.RatingCount = prev.RatingCount
	}
	m.listings[skillID] = listing
	snapshot := *listing
	m.mu.Unlock()

	m.logger.Info("skill listed",
		zap.String("skill", skillID),
		zap.String("price_wei", price.String()),
		zap.String("status", string(status)))

	if m.persister != nil {
		if err := m.persister.SaveListing(ctx, &snapshot); err != nil {
			m.logger.Warn("persist listing failed", zap.String("skill", skillID), zap.Error(err))
		}
	}
	m.emit(ctx, Event{
		Type:      "skill.listed",
		SkillID:   skillID,
		Wallet:    identity,
		AmountWei: price.String(),
		Timestamp: snapshot.ListedAt,
	})
	return &snapshot, nil
}

// Withdraw takes a listing off the market. Only the creator may withdraw.
func (m *Market) Withdraw(ctx context.Context, identity, skillID string) (*Listing, error) {
	m.mu.Lock()
	listing, ok := m.listings[skillID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("withdraw %s: %w", skillID, ErrNotFound)
	}
	if listing.Creator != identity {
		m.mu.Unlock()
		return nil, fmt.Errorf("withdraw %s: %w", skillID, ErrForbidden)
	}
	listing.Status = StatusWithdrawn
	snapshot := *listing
	m.mu.Unlock()

	m.logger.Info("skill withdrawn", zap.String("skill", skillID))

	if m.persister != nil {
		if err := m.persister.SaveListing(ctx, &snapshot); err != nil {
			m.logger.Warn("persist listing failed", zap.String("skill", skillID), zap.Error(err))
		}
	}
	return &snapshot, nil
}

// GetListing returns the bot-facing summary for one listing.
func (m *Market) GetListing(skillID string) (*ListingSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[skillID]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", skillID, ErrNotFound)
	}
	return summarize(l), nil
}
