package market

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/nidhogg/botmarket/internal/money"
	"go.uber.org/zap"
)

// Event is emitted after a marketplace mutation commits. Sinks fan these out
// to Redis streams and chat announcers.
type Event struct {
	Type      string    `json:"type"` // "skill.created", "skill.listed", "purchase.completed", "skill.rated"
	SkillID   string    `json:"skill_id"`
	Wallet    string    `json:"wallet"`
	AmountWei string    `json:"amount_wei,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSink receives marketplace events. Implementations must not block for
// long; publication happens outside the market lock but on the request path.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

// Persister durably stores marketplace records. All methods are called after
// the in-memory mutation commits; in-memory state stays the source of truth
// for a running process.
type Persister interface {
	SaveSkill(ctx context.Context, s *Skill) error
	SaveListing(ctx context.Context, l *Listing) error
	SavePurchase(ctx context.Context, p *Purchase) error
	SaveSeller(ctx context.Context, sp *SellerProfile) error
	AppendTransaction(ctx context.Context, tx *Transaction) error
}

// Market owns all marketplace state: skills, listings, purchases, seller
// profiles and the platform ledger. A single mutex serializes every
// read-modify-write so fee and earnings totals always equal the sum of the
// individual purchases; reads take the read lock for consistent snapshots.
type Market struct {
	mu        sync.RWMutex
	skills    map[string]*Skill
	listings  map[string]*Listing
	purchases map[string]*Purchase      // "buyer:skillID"
	sellers   map[string]*SellerProfile // wallet

	totalFees    *big.Int
	transactions []*Transaction

	feePercent     int64
	platformWallet string

	persister Persister
	events    EventSink
	now       func() time.Time
	logger    *zap.Logger
}

// New creates an empty market.
func New(feePercent int64, platformWallet string, logger *zap.Logger) *Market {
	return &Market{
		skills:         make(map[string]*Skill),
		listings:       make(map[string]*Listing),
		purchases:      make(map[string]*Purchase),
		sellers:        make(map[string]*SellerProfile),
		totalFees:      new(big.Int),
		feePercent:     feePercent,
		platformWallet: platformWallet,
		now:            time.Now,
		logger:         logger,
	}
}

// SetPersister attaches a durable store. Persistence failures are logged and
// do not roll back the in-memory mutation.
func (m *Market) SetPersister(p Persister) { m.persister = p }

// SetEvents attaches an event sink.
func (m *Market) SetEvents(s EventSink) { m.events = s }

// FeePercent returns the platform fee percentage.
func (m *Market) FeePercent() int64 { return m.feePercent }

// PlatformWallet returns the fee collection wallet.
func (m *Market) PlatformWallet() string { return m.platformWallet }

func purchaseKey(buyer, skillID string) string {
	return buyer + ":" + skillID
}

func (m *Market) emit(ctx context.Context, ev Event) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(ctx, ev); err != nil {
		m.logger.Warn("event publish failed",
			zap.String("type", ev.Type),
			zap.String("skill", ev.SkillID),
			zap.Error(err))
	}
}

// Restore loads previously persisted records into an empty market. Intended
// for boot time, before the market serves requests.
func (m *Market) Restore(skills []*Skill, listings []*Listing, purchases []*Purchase, sellers []*SellerProfile, txs []*Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range skills {
		m.skills[s.SkillID] = s
	}
	for _, l := range listings {
		m.listings[l.SkillID] = l
	}
	for _, p := range purchases {
		m.purchases[p.Key] = p
	}
	for _, sp := range sellers {
		m.sellers[sp.Wallet] = sp
	}
	for _, tx := range txs {
		m.transactions = append(m.transactions, tx)
		m.totalFees.Add(m.totalFees, tx.PlatformFee.Big())
	}
}

// Stats is the public platform counters snapshot.
type Stats struct {
	Platform           string     `json:"platform"`
	Network            string     `json:"network"`
	PlatformWallet     string     `json:"platform_wallet"`
	PlatformFeePercent int64      `json:"platform_fee_percent"`
	TotalSkills        int        `json:"total_skills"`
	ActiveListings     int        `json:"active_listings"`
	TotalPurchases     int        `json:"total_purchases"`
	TotalVolumeWei     *money.Wei `json:"total_volume_wei"`
	TotalPlatformFees  *money.Wei `json:"total_platform_fees"`
	TotalSellers       int        `json:"total_sellers"`
	Timestamp          time.Time  `json:"timestamp"`
}

// Stats returns platform-wide counters.
func (m *Market) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := 0
	for _, l := range m.listings {
		if l.Status == StatusActive {
			active++
		}
	}
	volume := new(big.Int)
	for _, p := range m.purchases {
		volume.Add(volume, p.PriceWei.Big())
	}

	return Stats{
		Platform:           "BotMarket",
		Network:            "Ethereum",
		PlatformWallet:     m.platformWallet,
		PlatformFeePercent: m.feePercent,
		TotalSkills:        len(m.skills),
		ActiveListings:     active,
		TotalPurchases:     len(m.purchases),
		TotalVolumeWei:     money.NewWei(volume),
		TotalPlatformFees:  money.NewWei(m.totalFees),
		TotalSellers:       len(m.sellers),
		Timestamp:          m.now(),
	}
}

// Earnings is the platform fee ledger view.
type Earnings struct {
	PlatformWallet     string         `json:"platform_wallet"`
	PlatformFeePercent int64          `json:"platform_fee_percent"`
	TotalEarningsWei   *money.Wei     `json:"total_earnings_wei"`
	TotalEarningsEth   string         `json:"total_earnings_eth"`
	RecentTransactions []*Transaction `json:"recent_transactions"`
}

// Earnings returns accumulated platform fees and the last n ledger entries.
func (m *Market) Earnings(n int) Earnings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txs := m.transactions
	if n > 0 && len(txs) > n {
		txs = txs[len(txs)-n:]
	}
	recent := make([]*Transaction, len(txs))
	copy(recent, txs)

	return Earnings{
		PlatformWallet:     m.platformWallet,
		PlatformFeePercent: m.feePercent,
		TotalEarningsWei:   money.NewWei(m.totalFees),
		TotalEarningsEth:   money.FormatEther(m.totalFees),
		RecentTransactions: recent,
	}
}
