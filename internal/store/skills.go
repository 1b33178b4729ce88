package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nidhogg/botmarket/internal/market"
	"github.com/nidhogg/botmarket/internal/money"
)

// SaveSkill upserts a skill record. Wei amounts are stored as NUMERIC(78,0)
// and travel through decimal strings, never floats.
func (s *Store) SaveSkill(ctx context.Context, sk *market.Skill) error {
	manifest, err := json.Marshal(sk.Manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest %s: %w", sk.SkillID, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO skills (skill_id, creator, version, price_wei, manifest, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		ON CONFLICT (skill_id) DO UPDATE SET
			version = EXCLUDED.version,
			price_wei = EXCLUDED.price_wei,
			manifest = EXCLUDED.manifest`,
		sk.SkillID, sk.Creator, sk.Version, sk.PriceWei.String(), manifest, sk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save skill %s: %w", sk.SkillID, err)
	}
	return nil
}

// ListSkills returns all persisted skills.
func (s *Store) ListSkills(ctx context.Context) ([]*market.Skill, error) {
	rows, err := s.db.Query(ctx, `
		SELECT skill_id, creator, manifest, created_at
		FROM skills ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	defer rows.Close()

	var skills []*market.Skill
	for rows.Next() {
		var (
			sk       market.Skill
			manifest []byte
		)
		if err := rows.Scan(&sk.SkillID, &sk.Creator, &manifest, &sk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan skill: %w", err)
		}
		if err := json.Unmarshal(manifest, &sk.Manifest); err != nil {
			return nil, fmt.Errorf("unmarshal manifest %s: %w", sk.SkillID, err)
		}
		skills = append(skills, &sk)
	}
	return skills, rows.Err()
}

// scanWei converts a NUMERIC column fetched as text into a Wei amount.
func scanWei(raw string) (*money.Wei, error) {
	return money.WeiFromString(raw)
}
