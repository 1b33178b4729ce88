package market

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Rate records a 1-5 rating from a buyer who purchased the skill and returns
// the new running average. Nothing stops a buyer rating the same skill more
// than once; each call counts.
func (m *Market) Rate(ctx context.Context, identity, skillID string, rating int) (float64, error) {
	if rating < 1 || rating > 5 {
		return 0, fmt.Errorf("rate %s: %w", skillID, ErrInvalidRating)
	}

	m.mu.Lock()
	if _, ok := m.purchases[purchaseKey(identity, skillID)]; !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("rate %s: must purchase before rating: %w", skillID, ErrForbidden)
	}
	listing, ok := m.listings[skillID]
	if !ok {
		m.mu.Unlock()
		return 0, fmt.Errorf("rate %s: %w", skillID, ErrNotFound)
	}

	listing.RatingSum += int64(rating)
	listing.RatingCount++
	avg := listing.averageRating()
	snapshot := *listing
	m.mu.Unlock()

	m.logger.Info("skill rated",
		zap.String("skill", skillID),
		zap.Int("rating", rating),
		zap.Float64("average", avg))

	if m.persister != nil {
		if err := m.persister.SaveListing(ctx, &snapshot); err != nil {
			m.logger.Warn("persist listing failed", zap.String("skill", skillID), zap.Error(err))
		}
	}
	m.emit(ctx, Event{
		Type:      "skill.rated",
		SkillID:   skillID,
		Wallet:    identity,
		Timestamp: m.now(),
	})
	return avg, nil
}
