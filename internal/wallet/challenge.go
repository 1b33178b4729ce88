package wallet

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrChallengeInvalid is returned when a challenge is unknown, mismatched or
// past its expiry.
var ErrChallengeInvalid = errors.New("invalid or expired challenge")

// DefaultChallengeTTL is how long an issued challenge stays redeemable.
const DefaultChallengeTTL = 300 * time.Second

type pendingChallenge struct {
	challenge string
	expires   time.Time
}

// ChallengeManager issues and verifies one-time authentication challenges.
// A wallet holds at most one pending challenge; issuing a new one replaces it.
type ChallengeManager struct {
	mu      sync.Mutex
	pending map[string]pendingChallenge // wallet -> challenge
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewChallengeManager creates a manager with the given challenge lifetime.
func NewChallengeManager(ttl time.Duration, logger *zap.Logger) *ChallengeManager {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeManager{
		pending: make(map[string]pendingChallenge),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// Issue creates a fresh 32-byte hex challenge for a wallet and returns it
// together with its lifetime in seconds.
func (m *ChallengeManager) Issue(walletAddr string) (challenge string, expiresIn int, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", 0, fmt.Errorf("generate challenge: %w", err)
	}
	challenge = hex.EncodeToString(buf)

	m.mu.Lock()
	m.pending[walletAddr] = pendingChallenge{
		challenge: challenge,
		expires:   m.now().Add(m.ttl),
	}
	m.mu.Unlock()

	return challenge, int(m.ttl / time.Second), nil
}

// Verify consumes a pending challenge. The signature itself is checked by the
// chain collaborator upstream; here the challenge must match and be unexpired.
// A successful verify removes the challenge so it cannot be replayed.
func (m *ChallengeManager) Verify(walletAddr, challenge string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[walletAddr]
	if !ok || p.challenge != challenge {
		return ErrChallengeInvalid
	}
	if m.now().After(p.expires) {
		delete(m.pending, walletAddr)
		return ErrChallengeInvalid
	}
	delete(m.pending, walletAddr)
	return nil
}

// SweepExpired drops challenges past their expiry and returns how many were
// removed.
func (m *ChallengeManager) SweepExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for w, p := range m.pending {
		if now.After(p.expires) {
			delete(m.pending, w)
			removed++
		}
	}
	return removed
}

// StartSweeper runs SweepExpired on a ticker until stop is closed.
func (m *ChallengeManager) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := m.SweepExpired(); n > 0 {
					m.logger.Debug("swept expired challenges", zap.Int("count", n))
				}
			}
		}
	}()
}
