package store

import (
	"context"
	"fmt"

	"github.com/nidhogg/botmarket/internal/market"
)

// AppendTransaction appends one platform ledger entry. The table is
// append-only; entries are never updated or pruned.
func (s *Store) AppendTransaction(ctx context.Context, tx *market.Transaction) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO platform_transactions (id, skill_id, buyer, platform_fee, recorded_at)
		VALUES ($1, $2, $3, $4::numeric, $5)`,
		tx.ID, tx.SkillID, tx.Buyer, tx.PlatformFee.String(), tx.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append transaction %s: %w", tx.ID, err)
	}
	return nil
}

// ListTransactions returns the full ledger in append order.
func (s *Store) ListTransactions(ctx context.Context) ([]*market.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, skill_id, buyer, platform_fee::text, recorded_at
		FROM platform_transactions ORDER BY recorded_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*market.Transaction
	for rows.Next() {
		var (
			tx  market.Transaction
			fee string
		)
		if err := rows.Scan(&tx.ID, &tx.SkillID, &tx.Buyer, &fee, &tx.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if tx.PlatformFee, err = scanWei(fee); err != nil {
			return nil, fmt.Errorf("transaction %s fee: %w", tx.ID, err)
		}
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}
