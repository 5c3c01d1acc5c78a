package ponto

import (
	"sync"
	"time"
)

// expirySkew is subtracted from a token's lifetime so it is never used right at its edge.
const expirySkew = 30 * time.Second

type accessToken struct {
	value     string
	expiresAt time.Time
}

// TokenHolder keeps short-lived access tokens keyed by credential identity.
// It is created by the caller and passed into each sync call.
type TokenHolder struct {
	mu     sync.Mutex
	now    func() time.Time
	tokens map[string]accessToken
}

func NewTokenHolder(now func() time.Time) *TokenHolder {
	if now == nil {
		now = time.Now
	}
	return &TokenHolder{
		now:    now,
		tokens: make(map[string]accessToken),
	}
}

// Get returns a token for key if one is held and not about to expire.
func (h *TokenHolder) Get(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.tokens[key]
	if !ok {
		return "", false
	}
	if !h.now().Before(t.expiresAt.Add(-expirySkew)) {
		delete(h.tokens, key)
		return "", false
	}
	return t.value, true
}

func (h *TokenHolder) Put(key, value string, lifetime time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.tokens[key] = accessToken{value: value, expiresAt: h.now().Add(lifetime)}
}

// Invalidate drops the token for key, e.g. after the provider rejected it.
func (h *TokenHolder) Invalidate(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.tokens, key)
}
