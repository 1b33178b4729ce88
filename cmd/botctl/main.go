package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const usage = `botctl - BotMarket command line client

Usage:
  botctl [-server URL] [-wallet ADDR] <command> [args]

Commands:
  auth                       Run the challenge handshake, print a session token
  create <manifest.json>     Register a skill (requires -token)
  list <skillId> [priceWei]  Publish a registered skill (requires -token)
  search [query]             Search active listings
  buy <skillId>              Purchase a skill as -wallet
  rate <skillId> <1-5>       Rate a purchased skill as -wallet
  dashboard                  Show seller dashboard (requires -token)
  stats                      Show platform statistics
`

var client = &http.Client{Timeout: 30 * time.Second}

func main() {
	server := flag.String("server", "http://localhost:3000", "BotMarket server URL")
	walletAddr := flag.String("wallet", os.Getenv("BOTMARKET_WALLET"), "bot wallet address")
	token := flag.String("token", os.Getenv("BOTMARKET_TOKEN"), "session token from botctl auth")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	switch args[0] {
	case "auth":
		runAuth(*server, *walletAddr)
	case "create":
		if len(args) < 2 {
			fatal("usage: botctl create <manifest.json>")
		}
		runCreate(*server, *token, args[1])
	case "list":
		if len(args) < 2 {
			fatal("usage: botctl list <skillId> [priceWei]")
		}
		price := ""
		if len(args) > 2 {
			price = args[2]
		}
		runList(*server, *token, args[1], price)
	case "search":
		runSearch(*server, strings.Join(args[1:], " "))
	case "buy":
		if len(args) < 2 {
			fatal("usage: botctl buy <skillId>")
		}
		runBuy(*server, *token, *walletAddr, args[1])
	case "rate":
		if len(args) < 3 {
			fatal("usage: botctl rate <skillId> <1-5>")
		}
		runRate(*server, *token, *walletAddr, args[1], args[2])
	case "dashboard":
		runDashboard(*server, *token)
	case "stats":
		runStats(*server)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runAuth(server, walletAddr string) {
	if walletAddr == "" {
		fatal("auth requires -wallet (or BOTMARKET_WALLET)")
	}

	var ch struct {
		Challenge string `json:"challenge"`
		ExpiresIn int    `json:"expiresIn"`
	}
	post(server+"/api/bot/auth/challenge", map[string]string{"wallet": walletAddr}, &ch)

	// The wallet's own signer would sign the challenge; for development the
	// server only checks the challenge lifecycle.
	sig := os.Getenv("BOTMARKET_SIGNATURE")
	if sig == "" {
		sig = "0xdev"
	}

	var vr struct {
		Token  string `json:"token"`
		Wallet string `json:"wallet"`
	}
	post(server+"/api/bot/auth/verify", map[string]string{
		"wallet":    walletAddr,
		"signature": sig,
		"challenge": ch.Challenge,
	}, &vr)

	fmt.Printf("Authenticated as %s\n", vr.Wallet)
	fmt.Printf("export BOTMARKET_TOKEN=%s\n", vr.Token)
}

func runCreate(server, token, manifestPath string) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		fatal("read manifest: %v", err)
	}
	var manifest map[string]interface{}
	if err := json.Unmarshal(data, &manifest); err != nil {
		fatal("parse manifest: %v", err)
	}

	var out struct {
		SkillID string `json:"skillId"`
		Creator string `json:"creator"`
	}
	post(server+"/api/skills/create", map[string]interface{}{
		"token":         token,
		"skillManifest": manifest,
	}, &out)
	fmt.Printf("Created skill %s (creator %s)\n", out.SkillID, out.Creator)
}

func runList(server, token, skillID, price string) {
	req := map[string]interface{}{
		"token":   token,
		"skillId": skillID,
	}
	if price != "" {
		req["priceWei"] = price
	}

	var out struct {
		SkillID    string `json:"skillId"`
		Status     string `json:"status"`
		ListingURL string `json:"listingUrl"`
	}
	post(server+"/api/skills/list", req, &out)
	fmt.Printf("Listed %s (%s) at %s\n", out.SkillID, out.Status, out.ListingURL)
}

func runSearch(server, query string) {
	req := map[string]interface{}{}
	if query != "" {
		req["query"] = query
	}

	var out struct {
		Count   int `json:"count"`
		Results []struct {
			SkillID     string   `json:"skill_id"`
			Name        string   `json:"name"`
			PriceEth    string   `json:"price_eth"`
			Rating      float64  `json:"rating"`
			TotalSales  int64    `json:"total_sales"`
			Domains     []string `json:"domains"`
			SuccessRate float64  `json:"success_rate"`
		} `json:"results"`
	}
	post(server+"/api/marketplace/search", req, &out)

	fmt.Printf("%d matching skill(s)\n", out.Count)
	for _, r := range out.Results {
		fmt.Printf("  %-24s %s ETH  ★%.1f  %d sale(s)  [%s]\n",
			r.SkillID, r.PriceEth, r.Rating, r.TotalSales, strings.Join(r.Domains, ", "))
	}
}

func runBuy(server, token, walletAddr, skillID string) {
	var out struct {
		PurchaseKey    string `json:"purchaseKey"`
		PriceWei       string `json:"priceWei"`
		PlatformFee    string `json:"platformFee"`
		SellerReceives string `json:"sellerReceives"`
		Installation   struct {
			DownloadURL string `json:"download_url"`
		} `json:"installation"`
	}
	post(server+"/api/marketplace/purchase", map[string]string{
		"token":       token,
		"skillId":     skillID,
		"buyerWallet": walletAddr,
	}, &out)

	fmt.Printf("Purchased %s\n", out.PurchaseKey)
	fmt.Printf("  price: %s wei (fee %s, seller %s)\n", out.PriceWei, out.PlatformFee, out.SellerReceives)
	fmt.Printf("  download: %s\n", out.Installation.DownloadURL)
}

func runRate(server, token, walletAddr, skillID, rating string) {
	var r int
	if _, err := fmt.Sscanf(rating, "%d", &r); err != nil {
		fatal("rating must be a number 1-5")
	}

	var out struct {
		NewAverage float64 `json:"newAverage"`
	}
	post(server+"/api/marketplace/rate", map[string]interface{}{
		"token":       token,
		"skillId":     skillID,
		"rating":      r,
		"buyerWallet": walletAddr,
	}, &out)
	fmt.Printf("Rated %s: new average %.2f\n", skillID, out.NewAverage)
}

func runDashboard(server, token string) {
	req, _ := http.NewRequest("GET", server+"/api/seller/dashboard", nil)
	req.Header.Set("Authorization", token)
	resp, err := client.Do(req)
	if err != nil {
		fatal("request failed: %v", err)
	}
	defer resp.Body.Close()
	checkStatus(resp)

	var dash struct {
		Seller struct {
			Wallet       string `json:"wallet"`
			SkillsListed int64  `json:"skills_listed"`
			TotalSales   int64  `json:"total_sales"`
		} `json:"seller"`
		TotalEarningsEth string `json:"total_earnings_eth"`
		Skills           []struct {
			SkillID    string `json:"skill_id"`
			Status     string `json:"status"`
			TotalSales int64  `json:"total_sales"`
		} `json:"skills"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&dash); err != nil {
		fatal("parse response: %v", err)
	}

	fmt.Printf("Seller %s\n", dash.Seller.Wallet)
	fmt.Printf("  skills listed: %d, sales: %d, earnings: %s ETH\n",
		dash.Seller.SkillsListed, dash.Seller.TotalSales, dash.TotalEarningsEth)
	for _, sk := range dash.Skills {
		fmt.Printf("  %-24s %s  %d sale(s)\n", sk.SkillID, sk.Status, sk.TotalSales)
	}
}

func runStats(server string) {
	resp, err := client.Get(server + "/api/platform/stats")
	if err != nil {
		fatal("request failed: %v", err)
	}
	defer resp.Body.Close()
	checkStatus(resp)

	var stats struct {
		Platform          string `json:"platform"`
		Network           string `json:"network"`
		TotalSkills       int    `json:"total_skills"`
		ActiveListings    int    `json:"active_listings"`
		TotalPurchases    int    `json:"total_purchases"`
		TotalVolumeWei    string `json:"total_volume_wei"`
		TotalPlatformFees string `json:"total_platform_fees"`
		TotalSellers      int    `json:"total_sellers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		fatal("parse response: %v", err)
	}

	fmt.Printf("%s (%s)\n", stats.Platform, stats.Network)
	fmt.Printf("  skills: %d (%d active listings), sellers: %d\n",
		stats.TotalSkills, stats.ActiveListings, stats.TotalSellers)
	fmt.Printf("  purchases: %d, volume: %s wei, platform fees: %s wei\n",
		stats.TotalPurchases, stats.TotalVolumeWei, stats.TotalPlatformFees)
}

func post(url string, body interface{}, out interface{}) {
	b, _ := json.Marshal(body)
	resp, err := client.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		fatal("request failed: %v", err)
	}
	defer resp.Body.Close()
	checkStatus(resp)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		fatal("parse response: %v", err)
	}
}

func checkStatus(resp *http.Response) {
	if resp.StatusCode == http.StatusOK {
		return
	}
	data, _ := io.ReadAll(resp.Body)
	fatal("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
	os.Exit(1)
}
