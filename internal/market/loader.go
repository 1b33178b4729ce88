package market

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// SeedFromDir loads example skill manifests (*.json) from a directory,
// registering each and listing it active at its manifest price. Manifests
// that fail validation or collide with an existing skill id are skipped with
// a warning. A missing directory is not an error.
func (m *Market) SeedFromDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read skills dir %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return loaded, fmt.Errorf("read manifest %s: %w", entry.Name(), err)
		}
		var mf Manifest
		if err := json.Unmarshal(data, &mf); err != nil {
			return loaded, fmt.Errorf("parse manifest %s: %w", entry.Name(), err)
		}

		skill, err := m.CreateSkill(ctx, mf.CreatorWallet, &mf)
		if err != nil {
			m.logger.Warn("skipping seed manifest",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		if _, err := m.List(ctx, skill.Creator, skill.SkillID, skill.PriceWei, true); err != nil {
			m.logger.Warn("seed listing failed",
				zap.String("skill", skill.SkillID), zap.Error(err))
			continue
		}
		loaded++
	}
	return loaded, nil
}
