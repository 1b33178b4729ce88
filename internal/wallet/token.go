package wallet

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// TokenStore maps minted API tokens back to wallet identities. Tokens are
// opaque to callers; only equality and the bm_ prefix matter.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string // token -> wallet
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]string)}
}

// Mint creates a token bound to a wallet. The token embeds a wallet fragment
// for log readability; uniqueness comes from the uuid suffix.
func (s *TokenStore) Mint(walletAddr string) string {
	frag := walletAddr
	if len(frag) > 10 {
		frag = frag[2:10]
	}
	token := "bm_" + frag + "_" + uuid.NewString()

	s.mu.Lock()
	s.tokens[token] = walletAddr
	s.mu.Unlock()
	return token
}

// Resolve returns the wallet a token was minted for, or "" if unknown.
func (s *TokenStore) Resolve(token string) string {
	if !strings.HasPrefix(token, "bm_") {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[token]
}

// Revoke removes a token.
func (s *TokenStore) Revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}
