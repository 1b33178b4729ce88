package market

import (
	"context"
	"fmt"

	"github.com/nidhogg/botmarket/internal/wallet"
	"go.uber.org/zap"
)

// ValidateManifest runs presence-only checks over a creation manifest and
// returns every issue found. Deep schema validation is the installing bot's
// problem.
func ValidateManifest(mf *Manifest) []string {
	var issues []string
	if len(mf.SkillID) < 8 {
		issues = append(issues, "skill_id required (min 8 chars)")
	}
	if mf.Version == "" {
		issues = append(issues, "version required")
	}
	if !wallet.IsValidAddress(mf.CreatorWallet) {
		issues = append(issues, "valid creator_wallet required")
	}
	if mf.PriceWei == nil || mf.PriceWei.Sign() < 0 {
		issues = append(issues, "non-negative price_wei required")
	}
	if mf.Interface == nil {
		issues = append(issues, "interface required")
	}
	if mf.Capabilities == nil {
		issues = append(issues, "capabilities required")
	}
	if mf.Installation == nil {
		issues = append(issues, "installation required")
	}
	return issues
}

// CreateSkill registers a new skill owned by identity. The skill id is
// assigned at most once and the creator never changes afterwards.
func (m *Market) CreateSkill(ctx context.Context, identity string, mf *Manifest) (*Skill, error) {
	if issues := ValidateManifest(mf); len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}

	m.mu.Lock()
	if _, exists := m.skills[mf.SkillID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("create skill %s: %w", mf.SkillID, ErrDuplicateSkillID)
	}

	skill := &Skill{
		Manifest:  *mf,
		Creator:   identity,
		CreatedAt: m.now(),
	}
	m.skills[skill.SkillID] = skill

	seller := m.ensureSellerLocked(identity)
	seller.SkillsListed++
	sellerSnapshot := seller.clone()
	m.mu.Unlock()

	m.logger.Info("skill created",
		zap.String("skill", skill.SkillID),
		zap.String("creator", shortWallet(identity)))

	if m.persister != nil {
		if err := m.persister.SaveSkill(ctx, skill); err != nil {
			m.logger.Warn("persist skill failed", zap.String("skill", skill.SkillID), zap.Error(err))
		}
		if err := m.persister.SaveSeller(ctx, sellerSnapshot); err != nil {
			m.logger.Warn("persist seller failed", zap.String("wallet", identity), zap.Error(err))
		}
	}
	m.emit(ctx, Event{
		Type:      "skill.created",
		SkillID:   skill.SkillID,
		Wallet:    identity,
		Timestamp: skill.CreatedAt,
	})
	return skill, nil
}

// GetSkill returns a registered skill.
func (m *Market) GetSkill(skillID string) (*Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.skills[skillID]
	if !ok {
		return nil, fmt.Errorf("skill %s: %w", skillID, ErrNotFound)
	}
	return s, nil
}

// RegisterSeller creates a zero-valued seller profile for a wallet if none
// exists. Called on successful authentication.
func (m *Market) RegisterSeller(ctx context.Context, walletAddr string) *SellerProfile {
	m.mu.Lock()
	seller := m.ensureSellerLocked(walletAddr)
	snapshot := seller.clone()
	m.mu.Unlock()

	if m.persister != nil {
		if err := m.persister.SaveSeller(ctx, snapshot); err != nil {
			m.logger.Warn("persist seller failed", zap.String("wallet", walletAddr), zap.Error(err))
		}
	}
	return snapshot
}

// ensureSellerLocked returns the profile for a wallet, creating it if absent.
// Callers must hold the write lock.
func (m *Market) ensureSellerLocked(walletAddr string) *SellerProfile {
	if sp, ok := m.sellers[walletAddr]; ok {
		return sp
	}
	sp := newSellerProfile(walletAddr, m.now())
	m.sellers[walletAddr] = sp
	return sp
}

// shortWallet truncates a wallet address for log lines.
func shortWallet(w string) string {
	if len(w) > 10 {
		return w[:10]
	}
	return w
}
