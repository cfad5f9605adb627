package exchange

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/broadline/agentgate/internal/gateway/metrics"
)

// DefaultExpiryBuffer is how long before a token's real expiry we stop
// handing it out. A request that starts with less than this much validity
// left could see the token expire mid-flight.
const DefaultExpiryBuffer = 60 * time.Second

// Token is a downstream access token plus what it was issued for. The cache
// key is the full (identity, audience, scopes) tuple; a token is never valid
// for any other combination.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
	Audience    string
	Scopes      []string
}

// TTL returns the remaining validity.
func (t *Token) TTL() time.Duration {
	return time.Until(t.ExpiresAt)
}

// TokenCache is the process-wide store of downstream tokens. It's an explicit
// injected object, not package state, so its lifecycle is tied to the
// Application and tests can use isolated instances.
//
// Writes are last-writer-wins; a redundant re-fetch on a race is harmless
// because tokens are idempotent to acquire. Correctness only depends on
// treating near-expiry reads as misses.
type TokenCache struct {
	// Buffer is the expiry safety margin. Reads with less than Buffer of
	// validity left miss. Zero means DefaultExpiryBuffer.
	Buffer time.Duration

	mu      sync.RWMutex
	entries map[string]*Token
}

// NewTokenCache returns an empty cache with the default safety buffer.
func NewTokenCache() *TokenCache {
	return &TokenCache{
		Buffer:  DefaultExpiryBuffer,
		entries: make(map[string]*Token),
	}
}

// Key derives the cache key for an identity requesting an audience with a
// scope set. Scopes are sorted so the key is order-independent.
func Key(identity, audience string, scopes []string) string {
	sorted := make([]string, len(scopes))
	copy(sorted, scopes)
	sort.Strings(sorted)
	return identity + "|" + audience + "|" + strings.Join(sorted, " ")
}

// Get returns the cached token for key, or nil when absent or inside the
// expiry safety buffer.
func (c *TokenCache) Get(key string) *Token {
	c.mu.RLock()
	tok := c.entries[key]
	c.mu.RUnlock()

	if tok == nil {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil
	}
	if tok.TTL() <= c.buffer() {
		// Still technically valid, but too close to expiry to trust for a
		// full request. Treat as a miss so the caller refreshes.
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return tok
}

// Put stores a token under key. Tokens already inside the buffer window are
// not worth storing and are dropped.
func (c *TokenCache) Put(key string, tok *Token) {
	if tok == nil || tok.TTL() <= c.buffer() {
		return
	}
	c.mu.Lock()
	c.entries[key] = tok
	c.mu.Unlock()
}

// Invalidate removes a cache entry. Called when a downstream service rejects
// the token with a 401 before its expiry.
func (c *TokenCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of cached entries, expired or not.
func (c *TokenCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *TokenCache) buffer() time.Duration {
	if c.Buffer > 0 {
		return c.Buffer
	}
	return DefaultExpiryBuffer
}
