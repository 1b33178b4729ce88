package store

import (
	"context"
	"fmt"

	"github.com/nidhogg/botmarket/internal/market"
)

// SaveSeller upserts a seller profile.
func (s *Store) SaveSeller(ctx context.Context, sp *market.SellerProfile) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sellers (wallet, skills_listed, total_sales, total_earnings, reputation, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		ON CONFLICT (wallet) DO UPDATE SET
			skills_listed = EXCLUDED.skills_listed,
			total_sales = EXCLUDED.total_sales,
			total_earnings = EXCLUDED.total_earnings,
			reputation = EXCLUDED.reputation`,
		sp.Wallet, sp.SkillsListed, sp.TotalSales, sp.TotalEarnings.String(),
		sp.Reputation, sp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save seller %s: %w", sp.Wallet, err)
	}
	return nil
}

// ListSellers returns all persisted seller profiles.
func (s *Store) ListSellers(ctx context.Context) ([]*market.SellerProfile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT wallet, skills_listed, total_sales, total_earnings::text, reputation, created_at
		FROM sellers ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list sellers: %w", err)
	}
	defer rows.Close()

	var sellers []*market.SellerProfile
	for rows.Next() {
		var (
			sp       market.SellerProfile
			earnings string
		)
		if err := rows.Scan(&sp.Wallet, &sp.SkillsListed, &sp.TotalSales,
			&earnings, &sp.Reputation, &sp.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan seller: %w", err)
		}
		if sp.TotalEarnings, err = scanWei(earnings); err != nil {
			return nil, fmt.Errorf("seller %s earnings: %w", sp.Wallet, err)
		}
		sellers = append(sellers, &sp)
	}
	return sellers, rows.Err()
}
