package market

import (
	"encoding/json"
	"time"

	"github.com/nidhogg/botmarket/internal/money"
)

// InterfaceSpec describes how a bot invokes a skill: input/output schemas
// plus the action names it exposes. Deep schema validation is left to the
// installing bot; the marketplace only requires the spec to be present.
type InterfaceSpec struct {
	Input   json.RawMessage `json:"input,omitempty"`
	Output  json.RawMessage `json:"output,omitempty"`
	Actions []string        `json:"actions,omitempty"`
}

// Capabilities advertises what a skill is good at, in machine-readable form
// so buyer bots can filter without parsing prose.
type Capabilities struct {
	Domains           []string `json:"domains"`
	SuccessRate       float64  `json:"success_rate"`
	LatencyMSEstimate int      `json:"latency_ms_estimate"`
}

// Installation tells a buyer how to install the skill after purchase.
type Installation struct {
	Method   string `json:"method,omitempty"`
	Location string `json:"location,omitempty"`
}

// Manifest is the creation payload a bot submits to register a skill.
type Manifest struct {
	SkillID       string         `json:"skill_id"`
	Name          string         `json:"name,omitempty"`
	Version       string         `json:"version"`
	CreatorWallet string         `json:"creator_wallet"`
	PriceWei      *money.Wei     `json:"price_wei"`
	Tags          []string       `json:"tags,omitempty"`
	Interface     *InterfaceSpec `json:"interface"`
	Capabilities  *Capabilities  `json:"capabilities"`
	Installation  *Installation  `json:"installation"`
	Dependencies  []string       `json:"dependencies,omitempty"`
}

// Skill is a registered capability manifest. Immutable after creation except
// for version bumps; the creator never changes.
type Skill struct {
	Manifest
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"created_at"`
}

// ListingStatus is the lifecycle state of a marketplace listing.
type ListingStatus string

const (
	StatusActive          ListingStatus = "active"
	StatusPendingApproval ListingStatus = "pending_approval"
	StatusWithdrawn       ListingStatus = "withdrawn"
)

// Listing is the sellable projection of a skill. It snapshots the skill's
// fields at listing time; the price may diverge from the manifest's original.
type Listing struct {
	SkillID         string         `json:"skill_id"`
	Name            string         `json:"name"`
	Creator         string         `json:"creator"`
	Version         string         `json:"version"`
	Tags            []string       `json:"tags,omitempty"`
	Interface       *InterfaceSpec `json:"interface,omitempty"`
	Capabilities    *Capabilities  `json:"capabilities,omitempty"`
	Installation    *Installation  `json:"installation,omitempty"`
	Dependencies    []string       `json:"dependencies,omitempty"`
	PriceWei        *money.Wei     `json:"price_wei"`
	InitialPriceWei *money.Wei     `json:"initial_price_wei"`
	Status          ListingStatus  `json:"status"`
	ListedAt        time.Time      `json:"listed_at"`
	TotalSales      int64          `json:"total_sales"`
	RatingSum       int64          `json:"rating_sum"`
	RatingCount     int64          `json:"rating_count"`
}

// averageRating computes ratingSum/ratingCount, 0 when unrated.
func (l *Listing) averageRating() float64 {
	if l.RatingCount == 0 {
		return 0
	}
	return float64(l.RatingSum) / float64(l.RatingCount)
}

// Purchase records a completed sale, keyed by (buyer, skill).
type Purchase struct {
	Key          string     `json:"purchase_key"`
	SkillID      string     `json:"skill_id"`
	Buyer        string     `json:"buyer"`
	Seller       string     `json:"seller"`
	PriceWei     *money.Wei `json:"price_wei"`
	PlatformFee  *money.Wei `json:"platform_fee"`
	SellerAmount *money.Wei `json:"seller_amount"`
	Timestamp    time.Time  `json:"timestamp"`
}

// SellerProfile aggregates a wallet's marketplace activity.
type SellerProfile struct {
	Wallet        string     `json:"wallet"`
	SkillsListed  int64      `json:"skills_listed"`
	TotalSales    int64      `json:"total_sales"`
	TotalEarnings *money.Wei `json:"total_earnings"`
	Reputation    float64    `json:"reputation"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Transaction is one append-only platform ledger entry.
type Transaction struct {
	ID          string     `json:"id"`
	SkillID     string     `json:"skill_id"`
	Buyer       string     `json:"buyer"`
	PlatformFee *money.Wei `json:"platform_fee"`
	Timestamp   time.Time  `json:"timestamp"`
}
