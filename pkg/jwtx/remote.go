package jwtx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultJWKSTTL is how long a fetched key set is trusted before we
	// refetch. Identity providers rotate keys rarely; five minutes keeps the
	// window for a retired key small without hammering the endpoint.
	DefaultJWKSTTL = 5 * time.Minute

	// DefaultJWKSTimeout bounds the JWKS fetch. A slow issuer must not stall
	// request handling for longer than this.
	DefaultJWKSTimeout = 5 * time.Second
)

// RemoteKeySet fetches and caches an issuer's JWKS document.
//
// Reads hit the in-memory KeySet; a fetch only happens when the cache is past
// its TTL or a token arrives with an unknown kid. Concurrent refetches collapse
// into a single request. A fetch failure never clears previously loaded keys,
// but it also never extends trust: an unknown kid with an unreachable issuer
// is a verification failure.
type RemoteKeySet struct {
	URL string

	HTTPClient *http.Client
	TTL        time.Duration

	keys *KeySet

	mu        sync.Mutex
	fetchedAt time.Time
	group     singleflight.Group
}

// NewRemoteKeySet creates a RemoteKeySet for the given JWKS URL.
func NewRemoteKeySet(url string) *RemoteKeySet {
	return &RemoteKeySet{
		URL:        url,
		HTTPClient: &http.Client{Timeout: DefaultJWKSTimeout},
		TTL:        DefaultJWKSTTL,
		keys:       NewKeySet(),
	}
}

// KeyFor returns the public key for the given kid, refetching the JWKS when
// the cache is stale or the kid is unknown.
func (r *RemoteKeySet) KeyFor(ctx context.Context, kid string) (any, error) {
	if r.fresh() && r.keys.Has(kid) {
		return r.keys.Get(kid)
	}

	// Cache miss or stale set. Collapse concurrent fetches; the URL is the
	// natural key since one RemoteKeySet serves one issuer.
	_, err, _ := r.group.Do(r.URL, func() (any, error) {
		// Another caller may have refreshed while we queued.
		if r.fresh() && r.keys.Has(kid) {
			return nil, nil
		}
		return nil, r.fetch(ctx)
	})
	if err != nil {
		// A key we already hold keeps being served however stale the set is;
		// key retirement only lands on the next successful fetch. An unknown
		// kid with an unreachable issuer fails closed.
		if r.keys.Has(kid) {
			return r.keys.Get(kid)
		}
		return nil, fmt.Errorf("%w: %w", ErrIssuerUnreachable, err)
	}

	key, kerr := r.keys.Get(kid)
	if kerr != nil {
		return nil, fmt.Errorf("%w: kid %q", ErrUnknownKID, kid)
	}
	return key, nil
}

// IsReady reports whether at least one key has been loaded. Used by /readyz.
func (r *RemoteKeySet) IsReady() bool {
	return r.keys.IsReady()
}

// Refresh forces a fetch regardless of TTL. Used at startup so the first
// request doesn't pay the fetch latency.
func (r *RemoteKeySet) Refresh(ctx context.Context) error {
	_, err, _ := r.group.Do(r.URL, func() (any, error) {
		return nil, r.fetch(ctx)
	})
	return err
}

func (r *RemoteKeySet) fresh() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.fetchedAt.IsZero() && time.Since(r.fetchedAt) < r.TTL
}

func (r *RemoteKeySet) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return fmt.Errorf("jwtx: build jwks request: %w", err)
	}

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("jwtx: fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwtx: jwks endpoint returned status %d", resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("jwtx: decode jwks: %w", err)
	}

	if err := r.keys.ResetFromJWKS(jwks); err != nil {
		return fmt.Errorf("jwtx: load jwks keys: %w", err)
	}

	r.mu.Lock()
	r.fetchedAt = time.Now()
	r.mu.Unlock()

	return nil
}
