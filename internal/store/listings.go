package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nidhogg/botmarket/internal/market"
)

// listingSnapshot is the jsonb payload holding the listing's skill snapshot.
type listingSnapshot struct {
	Name         string                `json:"name"`
	Version      string                `json:"version"`
	Tags         []string              `json:"tags,omitempty"`
	Interface    *market.InterfaceSpec `json:"interface,omitempty"`
	Capabilities *market.Capabilities  `json:"capabilities,omitempty"`
	Installation *market.Installation  `json:"installation,omitempty"`
	Dependencies []string              `json:"dependencies,omitempty"`
}

// SaveListing upserts the current listing for a skill. Relisting replaces the
// row; sales and rating counters ride along.
func (s *Store) SaveListing(ctx context.Context, l *market.Listing) error {
	snapshot, err := json.Marshal(listingSnapshot{
		Name:         l.Name,
		Version:      l.Version,
		Tags:         l.Tags,
		Interface:    l.Interface,
		Capabilities: l.Capabilities,
		Installation: l.Installation,
		Dependencies: l.Dependencies,
	})
	if err != nil {
		return fmt.Errorf("marshal listing %s: %w", l.SkillID, err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO listings (skill_id, creator, price_wei, initial_price_wei, status,
		                      listed_at, total_sales, rating_sum, rating_count, snapshot)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (skill_id) DO UPDATE SET
			price_wei = EXCLUDED.price_wei,
			initial_price_wei = EXCLUDED.initial_price_wei,
			status = EXCLUDED.status,
			listed_at = EXCLUDED.listed_at,
			total_sales = EXCLUDED.total_sales,
			rating_sum = EXCLUDED.rating_sum,
			rating_count = EXCLUDED.rating_count,
			snapshot = EXCLUDED.snapshot`,
		l.SkillID, l.Creator, l.PriceWei.String(), l.InitialPriceWei.String(),
		string(l.Status), l.ListedAt, l.TotalSales, l.RatingSum, l.RatingCount, snapshot,
	)
	if err != nil {
		return fmt.Errorf("save listing %s: %w", l.SkillID, err)
	}
	return nil
}

// ListListings returns all persisted listings.
func (s *Store) ListListings(ctx context.Context) ([]*market.Listing, error) {
	rows, err := s.db.Query(ctx, `
		SELECT skill_id, creator, price_wei::text, initial_price_wei::text, status,
		       listed_at, total_sales, rating_sum, rating_count, snapshot
		FROM listings ORDER BY listed_at`)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	var listings []*market.Listing
	for rows.Next() {
		var (
			l                      market.Listing
			price, initial, status string
			snapshot               []byte
		)
		if err := rows.Scan(&l.SkillID, &l.Creator, &price, &initial, &status,
			&l.ListedAt, &l.TotalSales, &l.RatingSum, &l.RatingCount, &snapshot); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		if l.PriceWei, err = scanWei(price); err != nil {
			return nil, fmt.Errorf("listing %s price: %w", l.SkillID, err)
		}
		if l.InitialPriceWei, err = scanWei(initial); err != nil {
			return nil, fmt.Errorf("listing %s initial price: %w", l.SkillID, err)
		}
		l.Status = market.ListingStatus(status)

		var snap listingSnapshot
		if err := json.Unmarshal(snapshot, &snap); err != nil {
			return nil, fmt.Errorf("unmarshal listing %s: %w", l.SkillID, err)
		}
		l.Name = snap.Name
		l.Version = snap.Version
		l.Tags = snap.Tags
		l.Interface = snap.Interface
		l.Capabilities = snap.Capabilities
		l.Installation = snap.Installation
		l.Dependencies = snap.Dependencies

		listings = append(listings, &l)
	}
	return listings, rows.Err()
}
