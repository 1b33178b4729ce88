package store

import (
	"context"
	"fmt"

	"github.com/nidhogg/botmarket/internal/market"
)

// SavePurchase upserts a purchase record. The (buyer, skill) pair is the
// primary key; a repeat purchase refreshes the row.
func (s *Store) SavePurchase(ctx context.Context, p *market.Purchase) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO purchases (purchase_key, skill_id, buyer, seller,
		                       price_wei, platform_fee, seller_amount, purchased_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8)
		ON CONFLICT (purchase_key) DO UPDATE SET
			price_wei = EXCLUDED.price_wei,
			platform_fee = EXCLUDED.platform_fee,
			seller_amount = EXCLUDED.seller_amount,
			purchased_at = EXCLUDED.purchased_at`,
		p.Key, p.SkillID, p.Buyer, p.Seller,
		p.PriceWei.String(), p.PlatformFee.String(), p.SellerAmount.String(), p.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("save purchase %s: %w", p.Key, err)
	}
	return nil
}

// ListPurchases returns all persisted purchase records.
func (s *Store) ListPurchases(ctx context.Context) ([]*market.Purchase, error) {
	rows, err := s.db.Query(ctx, `
		SELECT purchase_key, skill_id, buyer, seller,
		       price_wei::text, platform_fee::text, seller_amount::text, purchased_at
		FROM purchases ORDER BY purchased_at`)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*market.Purchase
	for rows.Next() {
		var (
			p                     market.Purchase
			price, fee, sellerAmt string
		)
		if err := rows.Scan(&p.Key, &p.SkillID, &p.Buyer, &p.Seller,
			&price, &fee, &sellerAmt, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		if p.PriceWei, err = scanWei(price); err != nil {
			return nil, fmt.Errorf("purchase %s price: %w", p.Key, err)
		}
		if p.PlatformFee, err = scanWei(fee); err != nil {
			return nil, fmt.Errorf("purchase %s fee: %w", p.Key, err)
		}
		if p.SellerAmount, err = scanWei(sellerAmt); err != nil {
			return nil, fmt.Errorf("purchase %s seller amount: %w", p.Key, err)
		}
		purchases = append(purchases, &p)
	}
	return purchases, rows.Err()
}
