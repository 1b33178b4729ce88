package market

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestSeedFromDir(t *testing.T) {
	dir := t.TempDir()

	good := `{
		"skill_id": "seeded_vision_1",
		"version": "1.0.0",
		"creator_wallet": "` + testWalletA + `",
		"price_wei": "50000000000000000",
		"interface": {"actions": ["enhance"]},
		"capabilities": {"domains": ["image"], "success_rate": 0.9, "latency_ms_estimate": 100},
		"installation": {"method": "download", "location": "ipfs://x"}
	}`
	bad := `{"skill_id": "bad"}`
	if err := os.WriteFile(filepath.Join(dir, "good.json"), []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := New(5, testWalletA, zap.NewNop())
	n, err := m.SeedFromDir(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("seeded %d, want 1", n)
	}

	ls, err := m.GetListing("seeded_vision_1")
	if err != nil {
		t.Fatal(err)
	}
	if ls.Status != StatusActive {
		t.Errorf("seeded listing status = %s, want active", ls.Status)
	}
	if ls.PriceWei.String() != "50000000000000000" {
		t.Errorf("seeded price = %s", ls.PriceWei)
	}
}

func TestSeedFromMissingDir(t *testing.T) {
	m := New(5, testWalletA, zap.NewNop())
	n, err := m.SeedFromDir(context.Background(), "does/not/exist")
	if err != nil || n != 0 {
		t.Errorf("missing dir: n=%d err=%v", n, err)
	}
}
