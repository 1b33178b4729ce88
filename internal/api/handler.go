package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/botmarket/internal/market"
	"github.com/nidhogg/botmarket/internal/money"
	"github.com/nidhogg/botmarket/internal/wallet"
	"go.uber.org/zap"
)

// recentTransactionLimit bounds the public fee ledger view.
const recentTransactionLimit = 50

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	market     *market.Market
	challenges *wallet.ChallengeManager
	tokens     *wallet.TokenStore
	logger     *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(m *market.Market, challenges *wallet.ChallengeManager, tokens *wallet.TokenStore, logger *zap.Logger) *Handler {
	return &Handler{
		market:     m,
		challenges: challenges,
		tokens:     tokens,
		logger:     logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Buyer-Wallet"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.healthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/bot/auth/challenge", h.authChallenge)
		r.Post("/bot/auth/verify", h.authVerify)

		r.Post("/skills/create", h.createSkill)
		r.Post("/skills/list", h.listSkill)
		r.Post("/skills/withdraw", h.withdrawSkill)
		r.Get("/skills/download/{skillID}", h.downloadSkill)

		r.Post("/marketplace/search", h.search)
		r.Post("/marketplace/purchase", h.purchase)
		r.Post("/marketplace/rate", h.rate)
		r.Get("/marketplace/{skillID}", h.getListing)

		r.Get("/seller/dashboard", h.sellerDashboard)
		r.Get("/platform/stats", h.platformStats)
		r.Get("/platform/earnings", h.platformEarnings)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"marketplace": "BotMarket",
		"timestamp":   time.Now().UTC(),
	})
}

type challengeRequest struct {
	Wallet string `json:"wallet"`
}

func (h *Handler) authChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !wallet.IsValidAddress(req.Wallet) {
		writeError(w, http.StatusBadRequest, "Valid wallet address required")
		return
	}

	challenge, expiresIn, err := h.challenges.Issue(req.Wallet)
	if err != nil {
		h.logger.Error("issue challenge", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"challenge": challenge,
		"expiresIn": expiresIn,
	})
}

type verifyRequest struct {
	Wallet    string `json:"wallet"`
	Signature string `json:"signature"`
	Challenge string `json:"challenge"`
}

func (h *Handler) authVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Signature validity is the chain collaborator's concern; the
	// marketplace only enforces the challenge lifecycle.
	if req.Signature == "" {
		writeError(w, http.StatusUnauthorized, "Signature required")
		return
	}
	if err := h.challenges.Verify(req.Wallet, req.Challenge); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired challenge")
		return
	}

	profile := h.market.RegisterSeller(r.Context(), req.Wallet)
	token := h.tokens.Mint(req.Wallet)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"token":         token,
		"wallet":        req.Wallet,
		"sellerProfile": profile,
	})
}

type createSkillRequest struct {
	Token         string           `json:"token"`
	SkillManifest *market.Manifest `json:"skillManifest"`
}

func (h *Handler) createSkill(w http.ResponseWriter, r *http.Request) {
	var req createSkillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	identity := h.tokens.Resolve(req.Token)
	if identity == "" {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	if req.SkillManifest == nil {
		writeError(w, http.StatusBadRequest, "skillManifest required")
		return
	}

	skill, err := h.market.CreateSkill(r.Context(), identity, req.SkillManifest)
	if err != nil {
		h.writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"skillId":   skill.SkillID,
		"creator":   skill.Creator,
		"createdAt": skill.CreatedAt,
	})
}

type listSkillRequest struct {
	Token       string     `json:"token"`
	SkillID     string     `json:"skillId"`
	PriceWei    *money.Wei `json:"priceWei"`
	AutoApprove *bool      `json:"autoApprove"`
}

func (h *Handler) listSkill(w http.ResponseWriter, r *http.Request) {
	var req listSkillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	identity := h.tokens.Resolve(req.Token)
	if identity == "" {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	autoApprove := true
	if req.AutoApprove != nil {
		autoApprove = *req.AutoApprove
	}

	listing, err := h.market.List(r.Context(), identity, req.SkillID, req.PriceWei, autoApprove)
	if err != nil {
		h.writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"skillId":    listing.SkillID,
		"priceWei":   listing.PriceWei,
		"status":     listing.Status,
		"listingUrl": "/api/marketplace/" + listing.SkillID,
	})
}

type withdrawSkillRequest struct {
	Token   string `json:"token"`
	SkillID string `json:"skillId"`
}

func (h *Handler) withdrawSkill(w http.ResponseWriter, r *http.Request) {
	var req withdrawSkillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	identity := h.tokens.Resolve(req.Token)
	if identity == "" {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	listing, err := h.market.Withdraw(r.Context(), identity, req.SkillID)
	if err != nil {
		h.writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"skillId": listing.SkillID,
		"status":  listing.Status,
	})
}

func (h *Handler) downloadSkill(w http.ResponseWriter, r *http.Request) {
	buyer := r.Header.Get("X-Buyer-Wallet")
	if buyer == "" {
		buyer = r.URL.Query().Get("wallet")
	}

	dl, err := h.market.DownloadSkill(buyer, chi.URLParam(r, "skillID"))
	if err != nil {
		if errors.Is(err, market.ErrForbidden) {
			writeError(w, http.StatusForbidden, "Skill not purchased")
			return
		}
		h.writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dl)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	var filters market.SearchFilters
	if err := json.NewDecoder(r.Body).Decode(&filters); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	count, results := h.market.Search(filters)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   count,
		"results": results,
	})
}

func (h *Handler) getListing(w http.ResponseWriter, r *http.Request) {
	summary, err := h.market.GetListing(chi.URLParam(r, "skillID"))
	if err != nil {
		h.writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type purchaseRequest struct {
	Token       string `json:"token"`
	SkillID     string `json:"skillId"`
	BuyerWallet string `json:"buyerWallet"`
}

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	buyer := h.identity(req.Token, req.BuyerWallet)
	if buyer == "" {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	receipt, err := h.market.Purchase(r.Context(), buyer, req.SkillID)
	if err != nil {
		h.writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"purchaseKey":    receipt.PurchaseKey,
		"skill":          receipt.Skill,
		"priceWei":       receipt.PriceWei,
		"platformFee":    receipt.PlatformFee,
		"sellerReceives": receipt.SellerReceives,
		"installation":   receipt.Installation,
	})
}

type rateRequest struct {
	Token       string `json:"token"`
	SkillID     string `json:"skillId"`
	Rating      int    `json:"rating"`
	BuyerWallet string `json:"buyerWallet"`
}

func (h *Handler) rate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rater := h.identity(req.Token, req.BuyerWallet)
	if rater == "" {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	avg, err := h.market.Rate(r.Context(), rater, req.SkillID, req.Rating)
	if err != nil {
		if errors.Is(err, market.ErrForbidden) {
			writeError(w, http.StatusForbidden, "Must purchase before rating")
			return
		}
		h.writeMarketError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"skillId":    req.SkillID,
		"newAverage": avg,
	})
}

func (h *Handler) sellerDashboard(w http.ResponseWriter, r *http.Request) {
	identity := h.tokens.Resolve(r.Header.Get("Authorization"))
	if identity == "" {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	writeJSON(w, http.StatusOK, h.market.Dashboard(identity))
}

func (h *Handler) platformStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.market.Stats())
}

func (h *Handler) platformEarnings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.market.Earnings(recentTransactionLimit))
}

// identity resolves the caller's wallet from a bm_ token, falling back to
// an explicit wallet field on routes that allow unauthenticated buyers.
func (h *Handler) identity(token, fallbackWallet string) string {
	if id := h.tokens.Resolve(token); id != "" {
		return id
	}
	return fallbackWallet
}

// writeMarketError maps core marketplace errors onto HTTP statuses.
func (h *Handler) writeMarketError(w http.ResponseWriter, err error) {
	var ve *market.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "Invalid skill manifest",
			"issues": ve.Issues,
		})
	case errors.Is(err, market.ErrDuplicateSkillID):
		writeError(w, http.StatusConflict, "Skill ID already exists")
	case errors.Is(err, market.ErrNotFound):
		writeError(w, http.StatusNotFound, "Skill not found")
	case errors.Is(err, market.ErrUnavailable):
		writeError(w, http.StatusConflict, "Skill not available for purchase")
	case errors.Is(err, market.ErrForbidden):
		writeError(w, http.StatusForbidden, "Not the skill owner")
	case errors.Is(err, market.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, "Rating must be between 1 and 5")
	case errors.Is(err, money.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "Invalid amount")
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
	}
}
