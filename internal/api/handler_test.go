package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nidhogg/botmarket/internal/market"
	"github.com/nidhogg/botmarket/internal/money"
	"github.com/nidhogg/botmarket/internal/wallet"
	"go.uber.org/zap"
)

const (
	sellerWallet = "0x5092a262512B7E0254c3998167d975858260E475"
	buyerWallet  = "0x1234567890abcdef1234567890abcdef12345678"
)

// newTestHandler creates a Handler wired with in-memory deps (no Postgres/Redis).
func newTestHandler(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	logger := zap.NewNop()

	m := market.New(5, "0x000000000000000000000000000000000000dead", logger)
	challenges := wallet.NewChallengeManager(wallet.DefaultChallengeTTL, logger)
	tokens := wallet.NewTokenStore()

	h := NewHandler(m, challenges, tokens, logger)
	return h, h.Router()
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string, headers map[string]string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest("GET", ts.URL+path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// authenticate runs the challenge/verify handshake and returns a session token.
func authenticate(t *testing.T, ts *httptest.Server, walletAddr string) string {
	t.Helper()

	resp := postJSON(t, ts, "/api/bot/auth/challenge", map[string]string{"wallet": walletAddr})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("challenge status = %d", resp.StatusCode)
	}
	var ch struct {
		Challenge string `json:"challenge"`
		ExpiresIn int    `json:"expiresIn"`
	}
	decodeJSON(t, resp, &ch)
	if ch.Challenge == "" || ch.ExpiresIn != 300 {
		t.Fatalf("challenge = %+v", ch)
	}

	resp = postJSON(t, ts, "/api/bot/auth/verify", map[string]string{
		"wallet":    walletAddr,
		"signature": "0xsigned",
		"challenge": ch.Challenge,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d", resp.StatusCode)
	}
	var vr struct {
		Token string `json:"token"`
	}
	decodeJSON(t, resp, &vr)
	if vr.Token == "" {
		t.Fatal("empty token")
	}
	return vr.Token
}

func testManifest(id string) map[string]interface{} {
	return map[string]interface{}{
		"skill_id":       id,
		"name":           "Test Skill",
		"version":        "1.0.0",
		"creator_wallet": sellerWallet,
		"price_wei":      "50000000000000000",
		"interface": map[string]interface{}{
			"actions": []string{"run"},
		},
		"capabilities": map[string]interface{}{
			"domains":      []string{"image_processing"},
			"success_rate": 0.95,
		},
		"installation": map[string]interface{}{
			"method": "download",
		},
	}
}

// createAndList publishes an active listing through the HTTP surface.
func createAndList(t *testing.T, ts *httptest.Server, token, id string) {
	t.Helper()

	resp := postJSON(t, ts, "/api/skills/create", map[string]interface{}{
		"token":         token,
		"skillManifest": testManifest(id),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts, "/api/skills/list", map[string]interface{}{
		"token":   token,
		"skillId": id,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := getJSON(t, ts, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Status      string `json:"status"`
		Marketplace string `json:"marketplace"`
	}
	decodeJSON(t, resp, &body)
	if body.Status != "ok" || body.Marketplace != "BotMarket" {
		t.Errorf("body = %+v", body)
	}
}

func TestAuthChallengeRejectsBadWallet(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/bot/auth/challenge", map[string]string{"wallet": "not-a-wallet"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAuthVerifyRejectsUnknownChallenge(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/bot/auth/verify", map[string]string{
		"wallet":    sellerWallet,
		"signature": "0xsigned",
		"challenge": "never-issued",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCreateSkillRequiresToken(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/skills/create", map[string]interface{}{
		"token":         "bm_bogus",
		"skillManifest": testManifest("tok_check_001"),
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCreateSkillReturnsAllManifestIssues(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()
	token := authenticate(t, ts, sellerWallet)

	resp := postJSON(t, ts, "/api/skills/create", map[string]interface{}{
		"token":         token,
		"skillManifest": map[string]interface{}{"name": "missing everything"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body struct {
		Error  string   `json:"error"`
		Issues []string `json:"issues"`
	}
	decodeJSON(t, resp, &body)
	if len(body.Issues) != 7 {
		t.Errorf("issues = %d (%v), want 7", len(body.Issues), body.Issues)
	}
}

func TestDuplicateSkillIDConflicts(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()
	token := authenticate(t, ts, sellerWallet)
	createAndList(t, ts, token, "dup_skill_001")

	resp := postJSON(t, ts, "/api/skills/create", map[string]interface{}{
		"token":         token,
		"skillManifest": testManifest("dup_skill_001"),
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestPurchaseFlow(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()
	token := authenticate(t, ts, sellerWallet)
	createAndList(t, ts, token, "vision_skill_001")

	resp := postJSON(t, ts, "/api/marketplace/purchase", map[string]string{
		"skillId":     "vision_skill_001",
		"buyerWallet": buyerWallet,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purchase status = %d", resp.StatusCode)
	}
	var receipt struct {
		Success        bool       `json:"success"`
		PurchaseKey    string     `json:"purchaseKey"`
		PriceWei       *money.Wei `json:"priceWei"`
		PlatformFee    *money.Wei `json:"platformFee"`
		SellerReceives *money.Wei `json:"sellerReceives"`
		Installation   struct {
			DownloadURL string `json:"download_url"`
		} `json:"installation"`
	}
	decodeJSON(t, resp, &receipt)
	if !receipt.Success {
		t.Fatal("purchase not successful")
	}
	if receipt.PurchaseKey != buyerWallet+":vision_skill_001" {
		t.Errorf("purchaseKey = %s", receipt.PurchaseKey)
	}
	if receipt.PlatformFee.String() != "2500000000000000" {
		t.Errorf("platformFee = %s", receipt.PlatformFee)
	}
	if receipt.SellerReceives.String() != "47500000000000000" {
		t.Errorf("sellerReceives = %s", receipt.SellerReceives)
	}

	// Download succeeds for the buyer, 403 for anyone else.
	resp = getJSON(t, ts, receipt.Installation.DownloadURL, map[string]string{"X-Buyer-Wallet": buyerWallet})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("download status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = getJSON(t, ts, receipt.Installation.DownloadURL, map[string]string{"X-Buyer-Wallet": sellerWallet})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("stranger download status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPurchaseUnknownSkill(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/marketplace/purchase", map[string]string{
		"skillId":     "ghost_skill",
		"buyerWallet": buyerWallet,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRatingRequiresPurchase(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()
	token := authenticate(t, ts, sellerWallet)
	createAndList(t, ts, token, "rated_skill_001")

	resp := postJSON(t, ts, "/api/marketplace/rate", map[string]interface{}{
		"skillId":     "rated_skill_001",
		"rating":      5,
		"buyerWallet": buyerWallet,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("pre-purchase rate status = %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts, "/api/marketplace/purchase", map[string]string{
		"skillId":     "rated_skill_001",
		"buyerWallet": buyerWallet,
	})
	resp.Body.Close()

	resp = postJSON(t, ts, "/api/marketplace/rate", map[string]interface{}{
		"skillId":     "rated_skill_001",
		"rating":      4,
		"buyerWallet": buyerWallet,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rate status = %d", resp.StatusCode)
	}
	var body struct {
		NewAverage float64 `json:"newAverage"`
	}
	decodeJSON(t, resp, &body)
	if body.NewAverage != 4 {
		t.Errorf("newAverage = %v", body.NewAverage)
	}
}

func TestSearchAndGetListing(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()
	token := authenticate(t, ts, sellerWallet)
	createAndList(t, ts, token, "searchable_001")

	resp := postJSON(t, ts, "/api/marketplace/search", map[string]interface{}{
		"domains": []string{"image_processing"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d", resp.StatusCode)
	}
	var res struct {
		Count   int `json:"count"`
		Results []struct {
			SkillID     string `json:"skill_id"`
			ManifestURL string `json:"manifest_url"`
		} `json:"results"`
	}
	decodeJSON(t, resp, &res)
	if res.Count != 1 || len(res.Results) != 1 {
		t.Fatalf("search result = %+v", res)
	}

	resp = getJSON(t, ts, res.Results[0].ManifestURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get listing status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestWithdrawnSkillNotPurchasable(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()
	token := authenticate(t, ts, sellerWallet)
	createAndList(t, ts, token, "withdraw_me_001")

	resp := postJSON(t, ts, "/api/skills/withdraw", map[string]string{
		"token":   token,
		"skillId": "withdraw_me_001",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("withdraw status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts, "/api/marketplace/purchase", map[string]string{
		"skillId":     "withdraw_me_001",
		"buyerWallet": buyerWallet,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("purchase status = %d, want 409", resp.StatusCode)
	}
}

func TestSellerDashboardAuth(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := getJSON(t, ts, "/api/seller/dashboard", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated dashboard status = %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()

	token := authenticate(t, ts, sellerWallet)
	createAndList(t, ts, token, "dash_skill_001")

	resp = getJSON(t, ts, "/api/seller/dashboard", map[string]string{"Authorization": token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status = %d", resp.StatusCode)
	}
	var dash struct {
		Seller struct {
			Wallet       string `json:"wallet"`
			SkillsListed int64  `json:"skills_listed"`
		} `json:"seller"`
		Skills []struct {
			SkillID string `json:"skill_id"`
		} `json:"skills"`
	}
	decodeJSON(t, resp, &dash)
	if dash.Seller.Wallet != sellerWallet || dash.Seller.SkillsListed != 1 {
		t.Errorf("dashboard seller = %+v", dash.Seller)
	}
	if len(dash.Skills) != 1 || dash.Skills[0].SkillID != "dash_skill_001" {
		t.Errorf("dashboard skills = %+v", dash.Skills)
	}
}

func TestPlatformStatsAndEarnings(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()
	token := authenticate(t, ts, sellerWallet)
	createAndList(t, ts, token, "stats_skill_001")

	resp := postJSON(t, ts, "/api/marketplace/purchase", map[string]string{
		"skillId":     "stats_skill_001",
		"buyerWallet": buyerWallet,
	})
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/platform/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	var stats struct {
		Platform          string     `json:"platform"`
		TotalPurchases    int        `json:"total_purchases"`
		TotalPlatformFees *money.Wei `json:"total_platform_fees"`
	}
	decodeJSON(t, resp, &stats)
	if stats.Platform != "BotMarket" || stats.TotalPurchases != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalPlatformFees.String() != "2500000000000000" {
		t.Errorf("fees = %s", stats.TotalPlatformFees)
	}

	resp = getJSON(t, ts, "/api/platform/earnings", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("earnings status = %d", resp.StatusCode)
	}
	var earnings struct {
		TotalEarningsWei   *money.Wei `json:"total_earnings_wei"`
		RecentTransactions []struct {
			SkillID string `json:"skill_id"`
		} `json:"recent_transactions"`
	}
	decodeJSON(t, resp, &earnings)
	if earnings.TotalEarningsWei.String() != "2500000000000000" {
		t.Errorf("earnings = %s", earnings.TotalEarningsWei)
	}
	if len(earnings.RecentTransactions) != 1 || earnings.RecentTransactions[0].SkillID != "stats_skill_001" {
		t.Errorf("recent = %+v", earnings.RecentTransactions)
	}
}

func TestChallengeReplayRejected(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/bot/auth/challenge", map[string]string{"wallet": sellerWallet})
	var ch struct {
		Challenge string `json:"challenge"`
	}
	decodeJSON(t, resp, &ch)

	verify := map[string]string{
		"wallet":    sellerWallet,
		"signature": "0xsigned",
		"challenge": ch.Challenge,
	}
	resp = postJSON(t, ts, "/api/bot/auth/verify", verify)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first verify status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Challenges are consume-once.
	resp = postJSON(t, ts, "/api/bot/auth/verify", verify)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("replay verify status = %d, want 401", resp.StatusCode)
	}
}

func TestListingStatusRoundTrip(t *testing.T) {
	_, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()
	token := authenticate(t, ts, sellerWallet)

	resp := postJSON(t, ts, "/api/skills/create", map[string]interface{}{
		"token":         token,
		"skillManifest": testManifest("pending_001"),
	})
	resp.Body.Close()

	autoApprove := false
	resp = postJSON(t, ts, "/api/skills/list", map[string]interface{}{
		"token":       token,
		"skillId":     "pending_001",
		"autoApprove": autoApprove,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var body struct {
		Status market.ListingStatus `json:"status"`
	}
	decodeJSON(t, resp, &body)
	if body.Status != market.StatusPendingApproval {
		t.Errorf("status = %s, want pending_approval", body.Status)
	}

	// Pending listings are invisible to search.
	resp = postJSON(t, ts, "/api/marketplace/search", map[string]interface{}{})
	var res struct {
		Count int `json:"count"`
	}
	decodeJSON(t, resp, &res)
	if res.Count != 0 {
		t.Errorf("search count = %d, want 0", res.Count)
	}
}
