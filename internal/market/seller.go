package market

import (
	"math/big"
	"sort"
	"time"

	"github.com/nidhogg/botmarket/internal/money"
)

func newSellerProfile(walletAddr string, createdAt time.Time) *SellerProfile {
	return &SellerProfile{
		Wallet:        walletAddr,
		TotalEarnings: money.NewWei(new(big.Int)),
		CreatedAt:     createdAt,
	}
}

// clone returns an independent copy. TotalEarnings is mutated in place by
// Purchase, so a plain struct copy would still alias the live amount.
func (sp *SellerProfile) clone() *SellerProfile {
	c := *sp
	c.TotalEarnings = sp.TotalEarnings.Clone()
	return &c
}

// Dashboard is the seller's aggregated view: profile plus every listing they
// created, regardless of status.
type Dashboard struct {
	Seller           *SellerProfile    `json:"seller"`
	Skills           []*ListingSummary `json:"skills"`
	TotalEarningsWei *money.Wei        `json:"total_earnings_wei"`
	TotalEarningsEth string            `json:"total_earnings_eth"`
}

// Dashboard returns the seller view for a wallet. An unknown wallet gets a
// zero-valued profile; the read does not persist it.
func (m *Market) Dashboard(identity string) *Dashboard {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, ok := m.sellers[identity]
	if !ok {
		profile = newSellerProfile(identity, time.Time{})
	}
	snapshot := profile.clone()

	var owned []*ListingSummary
	for _, l := range m.listings {
		if l.Creator == identity {
			owned = append(owned, summarize(l))
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].SkillID < owned[j].SkillID })

	return &Dashboard{
		Seller:           snapshot,
		Skills:           owned,
		TotalEarningsWei: snapshot.TotalEarnings,
		TotalEarningsEth: money.FormatEther(snapshot.TotalEarnings.Big()),
	}
}
