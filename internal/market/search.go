package market

import (
	"sort"
	"strings"
	"time"

	"github.com/nidhogg/botmarket/internal/money"
)

// DefaultSearchLimit caps result pages when the caller doesn't say otherwise.
const DefaultSearchLimit = 20

// SearchFilters are conjunctive: a listing matches only if it satisfies every
// filter that is set. Zero values mean "no constraint".
type SearchFilters struct {
	Query          string     `json:"query,omitempty"`
	Domains        []string   `json:"domains,omitempty"`
	MaxPriceWei    *money.Wei `json:"max_price_wei,omitempty"`
	MinRating      float64    `json:"min_rating,omitempty"`
	MinSuccessRate float64    `json:"min_success_rate,omitempty"`
	SortBy         string     `json:"sort_by,omitempty"` // price_asc, price_desc, rating, sales, recent
	Limit          int        `json:"limit,omitempty"`
}

// ListingSummary is the bot-optimized wire shape for one listing.
type ListingSummary struct {
	SkillID     string         `json:"skill_id"`
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	PriceWei    *money.Wei     `json:"price_wei"`
	PriceEth    string         `json:"price_eth"`
	Domains     []string       `json:"domains"`
	SuccessRate float64        `json:"success_rate"`
	LatencyMS   int            `json:"latency_ms"`
	Rating      float64        `json:"rating"`
	TotalSales  int64          `json:"total_sales"`
	ListedAt    time.Time      `json:"listed_at"`
	Status      ListingStatus  `json:"status"`
	ManifestURL string         `json:"manifest_url"`
	PurchaseURL string         `json:"purchase_url"`
	Interface   *InterfaceSpec `json:"interface,omitempty"`
}

// summarize builds the wire summary for a listing.
func summarize(l *Listing) *ListingSummary {
	name := l.Name
	if name == "" {
		name = l.SkillID
	}
	s := &ListingSummary{
		SkillID:     l.SkillID,
		Name:        name,
		Version:     l.Version,
		PriceWei:    l.PriceWei.Clone(),
		PriceEth:    money.FormatEther(l.PriceWei.Big()),
		Domains:     []string{},
		Rating:      l.averageRating(),
		TotalSales:  l.TotalSales,
		ListedAt:    l.ListedAt,
		Status:      l.Status,
		ManifestURL: "/api/marketplace/" + l.SkillID,
		PurchaseURL: "/api/marketplace/purchase",
		Interface:   l.Interface,
	}
	if l.Capabilities != nil {
		s.Domains = l.Capabilities.Domains
		s.SuccessRate = l.Capabilities.SuccessRate
		s.LatencyMS = l.Capabilities.LatencyMSEstimate
	}
	return s
}

// Search filters active listings and sorts them with a stable order. The
// returned count is the filtered size before the limit truncates the page.
func (m *Market) Search(f SearchFilters) (count int, results []*ListingSummary) {
	m.mu.RLock()
	matched := make([]*Listing, 0, len(m.listings))
	for _, l := range m.listings {
		if l.Status != StatusActive {
			continue
		}
		if matchesFilters(l, &f) {
			snapshot := *l
			matched = append(matched, &snapshot)
		}
	}
	m.mu.RUnlock()

	// Map iteration order is random; fix a base order so the stable sorts
	// below produce deterministic results.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SkillID < matched[j].SkillID
	})
	sortListings(matched, f.SortBy)

	count = len(matched)
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	results = make([]*ListingSummary, len(matched))
	for i, l := range matched {
		results[i] = summarize(l)
	}
	return count, results
}

func matchesFilters(l *Listing, f *SearchFilters) bool {
	if f.Query != "" && !matchesQuery(l, f.Query) {
		return false
	}
	if len(f.Domains) > 0 && !domainsIntersect(l, f.Domains) {
		return false
	}
	if f.MaxPriceWei != nil && l.PriceWei.Cmp(f.MaxPriceWei.Big()) > 0 {
		return false
	}
	if f.MinRating > 0 && l.averageRating() < f.MinRating {
		return false
	}
	if f.MinSuccessRate > 0 {
		if l.Capabilities == nil || l.Capabilities.SuccessRate < f.MinSuccessRate {
			return false
		}
	}
	return true
}

// matchesQuery checks the free-text query against skill id, tags and
// capability domains, case-insensitively.
func matchesQuery(l *Listing, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(l.SkillID), q) {
		return true
	}
	for _, t := range l.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	if l.Capabilities != nil {
		for _, d := range l.Capabilities.Domains {
			if strings.Contains(strings.ToLower(d), q) {
				return true
			}
		}
	}
	return false
}

func domainsIntersect(l *Listing, domains []string) bool {
	if l.Capabilities == nil {
		return false
	}
	for _, want := range domains {
		for _, have := range l.Capabilities.Domains {
			if have == want {
				return true
			}
		}
	}
	return false
}

// sortListings orders listings by the requested key. Every comparator is a
// strict ordering on its key; ties keep prior relative order (stable sort).
func sortListings(ls []*Listing, sortBy string) {
	switch sortBy {
	case "price_asc":
		sort.SliceStable(ls, func(i, j int) bool {
			return ls[i].PriceWei.Cmp(ls[j].PriceWei.Big()) < 0
		})
	case "price_desc":
		sort.SliceStable(ls, func(i, j int) bool {
			return ls[i].PriceWei.Cmp(ls[j].PriceWei.Big()) > 0
		})
	case "sales":
		sort.SliceStable(ls, func(i, j int) bool {
			return ls[i].TotalSales > ls[j].TotalSales
		})
	case "recent":
		sort.SliceStable(ls, func(i, j int) bool {
			return ls[i].ListedAt.After(ls[j].ListedAt)
		})
	default: // "rating"
		sort.SliceStable(ls, func(i, j int) bool {
			return ls[i].averageRating() > ls[j].averageRating()
		})
	}
}
