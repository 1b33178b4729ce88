package market

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nidhogg/botmarket/internal/money"
	"go.uber.org/zap"
)

// InstallationRef is the capability handed to the download collaborator; the
// marketplace does not resolve it.
type InstallationRef struct {
	DownloadURL string   `json:"download_url"`
	Manifest    *Listing `json:"manifest"`
}

// Receipt is returned from a completed purchase.
type Receipt struct {
	PurchaseKey    string          `json:"purchase_key"`
	Skill          *ListingSummary `json:"skill"`
	PriceWei       *money.Wei      `json:"price_wei"`
	PlatformFee    *money.Wei      `json:"platform_fee"`
	SellerReceives *money.Wei      `json:"seller_receives"`
	Installation   InstallationRef `json:"installation"`
}

// Purchase executes a sale: fee split, purchase record, platform ledger
// append, seller and listing counters. The whole read-modify-write runs under
// one lock so concurrent purchases of the same skill never interleave.
// A repeat purchase by the same buyer charges again and refreshes the
// ownership record.
func (m *Market) Purchase(ctx context.Context, buyer, skillID string) (*Receipt, error) {
	m.mu.Lock()
	listing, ok := m.listings[skillID]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("purchase %s: %w", skillID, ErrNotFound)
	}
	if listing.Status != StatusActive {
		m.mu.Unlock()
		return nil, fmt.Errorf("purchase %s: %w", skillID, ErrUnavailable)
	}

	fee, sellerAmount, err := money.Split(listing.PriceWei.Big(), m.feePercent)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("purchase %s: %w", skillID, err)
	}

	now := m.now()
	purchase := &Purchase{
		Key:          purchaseKey(buyer, skillID),
		SkillID:      skillID,
		Buyer:        buyer,
		Seller:       listing.Creator,
		PriceWei:     listing.PriceWei.Clone(),
		PlatformFee:  money.NewWei(fee),
		SellerAmount: money.NewWei(sellerAmount),
		Timestamp:    now,
	}
	m.purchases[purchase.Key] = purchase

	tx := &Transaction{
		ID:          uuid.NewString(),
		SkillID:     skillID,
		Buyer:       buyer,
		PlatformFee: money.NewWei(fee),
		Timestamp:   now,
	}
	m.totalFees.Add(m.totalFees, fee)
	m.transactions = append(m.transactions, tx)

	seller := m.ensureSellerLocked(listing.Creator)
	seller.TotalSales++
	seller.TotalEarnings.Add(seller.TotalEarnings.Big(), sellerAmount)

	listing.TotalSales++

	listingSnapshot := *listing
	sellerSnapshot := seller.clone()
	m.mu.Unlock()

	m.logger.Info("purchase completed",
		zap.String("skill", skillID),
		zap.String("buyer", shortWallet(buyer)),
		zap.String("price_eth", money.FormatEther(purchase.PriceWei.Big())),
		zap.String("fee_eth", money.FormatEther(fee)),
		zap.String("seller_eth", money.FormatEther(sellerAmount)))

	if m.persister != nil {
		if err := m.persister.SavePurchase(ctx, purchase); err != nil {
			m.logger.Warn("persist purchase failed", zap.String("key", purchase.Key), zap.Error(err))
		}
		if err := m.persister.AppendTransaction(ctx, tx); err != nil {
			m.logger.Warn("persist transaction failed", zap.String("id", tx.ID), zap.Error(err))
		}
		if err := m.persister.SaveSeller(ctx, sellerSnapshot); err != nil {
			m.logger.Warn("persist seller failed", zap.String("wallet", sellerSnapshot.Wallet), zap.Error(err))
		}
		if err := m.persister.SaveListing(ctx, &listingSnapshot); err != nil {
			m.logger.Warn("persist listing failed", zap.String("skill", skillID), zap.Error(err))
		}
	}
	m.emit(ctx, Event{
		Type:      "purchase.completed",
		SkillID:   skillID,
		Wallet:    buyer,
		AmountWei: purchase.PriceWei.String(),
		Timestamp: now,
	})

	return &Receipt{
		PurchaseKey:    purchase.Key,
		Skill:          summarize(&listingSnapshot),
		PriceWei:       purchase.PriceWei.Clone(),
		PlatformFee:    purchase.PlatformFee.Clone(),
		SellerReceives: purchase.SellerAmount.Clone(),
		Installation: InstallationRef{
			DownloadURL: "/api/skills/download/" + skillID,
			Manifest:    &listingSnapshot,
		},
	}, nil
}

// VerifyOwnership reports whether a purchase record exists for the pair.
// Download and rating use this as their gate.
func (m *Market) VerifyOwnership(identity, skillID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.purchases[purchaseKey(identity, skillID)]
	return ok
}

// Download hands the full skill manifest to a buyer who purchased it.
type Download struct {
	SkillID      string        `json:"skill_id"`
	Manifest     *Skill        `json:"manifest"`
	Installation *Installation `json:"installation"`
	Dependencies []string      `json:"dependencies"`
}

// DownloadSkill returns the installable manifest, gated on ownership.
func (m *Market) DownloadSkill(identity, skillID string) (*Download, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.purchases[purchaseKey(identity, skillID)]; !ok {
		return nil, fmt.Errorf("download %s: %w", skillID, ErrForbidden)
	}
	skill, ok := m.skills[skillID]
	if !ok {
		return nil, fmt.Errorf("download %s: %w", skillID, ErrNotFound)
	}
	return &Download{
		SkillID:      skillID,
		Manifest:     skill,
		Installation: skill.Installation,
		Dependencies: skill.Dependencies,
	}, nil
}
