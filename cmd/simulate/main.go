package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/nidhogg/botmarket/internal/market"
	"github.com/nidhogg/botmarket/internal/money"
	"go.uber.org/zap"
)

// simulate runs an in-process marketplace session: a handful of seller bots
// publish skills, buyer bots purchase and rate them, and the final platform
// stats are printed. Useful for eyeballing fee math without a server.
func main() {
	sellers := flag.Int("sellers", 3, "number of seller bots")
	buyers := flag.Int("buyers", 5, "number of buyer bots")
	rounds := flag.Int("rounds", 10, "purchase rounds")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	rng := rand.New(rand.NewSource(*seed))
	m := market.New(5, "0x000000000000000000000000000000000000f33d", logger)
	ctx := context.Background()

	// Seller bots publish one skill each
	var skillIDs []string
	for i := 0; i < *sellers; i++ {
		sellerWallet := botWallet("5e11e4", i)
		skillID := fmt.Sprintf("sim_skill_%03d", i)
		price, err := money.WeiFromString(fmt.Sprintf("%d0000000000000000", i+1))
		if err != nil {
			logger.Fatal("price", zap.Error(err))
		}

		mf := &market.Manifest{
			SkillID:       skillID,
			Name:          fmt.Sprintf("Simulated Skill %d", i),
			Version:       "1.0.0",
			CreatorWallet: sellerWallet,
			PriceWei:      price,
			Interface:     &market.InterfaceSpec{Actions: []string{"run"}},
			Capabilities: &market.Capabilities{
				Domains:     []string{"simulation"},
				SuccessRate: 0.8 + 0.05*float64(i%4),
			},
			Installation: &market.Installation{Method: "download"},
		}
		if _, err := m.CreateSkill(ctx, sellerWallet, mf); err != nil {
			logger.Fatal("create skill", zap.Error(err))
		}
		if _, err := m.List(ctx, sellerWallet, skillID, nil, true); err != nil {
			logger.Fatal("list skill", zap.Error(err))
		}
		skillIDs = append(skillIDs, skillID)
	}

	// Buyer bots purchase and rate at random
	for r := 0; r < *rounds; r++ {
		buyer := botWallet("b0b", rng.Intn(*buyers))
		skillID := skillIDs[rng.Intn(len(skillIDs))]

		receipt, err := m.Purchase(ctx, buyer, skillID)
		if err != nil {
			logger.Warn("purchase failed", zap.String("skill", skillID), zap.Error(err))
			continue
		}
		fmt.Printf("round %2d: %s bought %s for %s wei (fee %s)\n",
			r+1, buyer[:10], skillID, receipt.PriceWei, receipt.PlatformFee)

		if rng.Intn(2) == 0 {
			rating := 3 + rng.Intn(3)
			avg, rateErr := m.Rate(ctx, buyer, skillID, rating)
			if rateErr != nil {
				logger.Warn("rating failed", zap.Error(rateErr))
				continue
			}
			fmt.Printf("          rated %d, average now %.2f\n", rating, avg)
		}
	}

	stats := m.Stats()
	fmt.Println()
	fmt.Printf("skills: %d, active listings: %d, sellers: %d\n",
		stats.TotalSkills, stats.ActiveListings, stats.TotalSellers)
	fmt.Printf("purchases: %d, volume: %s wei, platform fees: %s wei\n",
		stats.TotalPurchases, stats.TotalVolumeWei, stats.TotalPlatformFees)

	if stats.TotalPurchases == 0 {
		os.Exit(1)
	}
}

// botWallet derives a deterministic fake address for bot n.
func botWallet(tag string, n int) string {
	return fmt.Sprintf("0x%s%0*d", tag, 40-len(tag), n)
}
