// Package exchange obtains, caches, and refreshes the downstream access
// tokens the gateway attaches to every proxied call. Two grant patterns are
// supported: the gateway's own service identity (client credentials) and
// per-user token exchange of a validated SSO token (RFC 8693).
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/broadline/agentgate/internal/gateway/metrics"
	"github.com/broadline/agentgate/pkg/jwtx"
)

const (
	grantClientCredentials = "client_credentials"
	grantTokenExchange     = "urn:ietf:params:oauth:grant-type:token-exchange"
	subjectTokenTypeJWT    = "urn:ietf:params:oauth:token-type:jwt"

	// DefaultTokenTimeout bounds a single token endpoint call.
	DefaultTokenTimeout = 10 * time.Second

	// defaultRetryDelay is the pause before the single retry of a transient
	// token endpoint failure.
	defaultRetryDelay = 300 * time.Millisecond
)

// tokenResponse is the OAuth2 token endpoint response per RFC 6749.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// Exchanger talks to the downstream token endpoint and owns the token cache.
// Concurrent misses for the same cache key collapse into a single in-flight
// request so a burst of proxied calls doesn't stampede the endpoint.
type Exchanger struct {
	TokenURL     string
	ClientID     string
	ClientSecret string

	HTTPClient *http.Client
	Cache      *TokenCache
	Validator  *jwtx.Validator

	// RetryDelay before retrying a transient failure once. Zero means the
	// default; tests set it low.
	RetryDelay time.Duration

	group singleflight.Group
}

// New creates an Exchanger with its own cache.
func New(tokenURL, clientID, clientSecret string, validator *jwtx.Validator) *Exchanger {
	return &Exchanger{
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient:   &http.Client{Timeout: DefaultTokenTimeout},
		Cache:        NewTokenCache(),
		Validator:    validator,
	}
}

// ServiceToken returns a downstream token for the gateway's own service
// identity, from cache when possible.
func (e *Exchanger) ServiceToken(ctx context.Context, audience string, scopes []string) (*Token, error) {
	if e.ClientID == "" || e.ClientSecret == "" {
		return nil, ErrCredentialsNotConfigured
	}

	key := Key("service:"+e.ClientID, audience, scopes)
	if tok := e.Cache.Get(key); tok != nil {
		return tok, nil
	}

	result, err, _ := e.group.Do(key, func() (any, error) {
		// A concurrent caller may have filled the cache while we queued.
		if tok := e.Cache.Get(key); tok != nil {
			return tok, nil
		}

		form := url.Values{
			"grant_type":    {grantClientCredentials},
			"client_id":     {e.ClientID},
			"client_secret": {e.ClientSecret},
		}
		if audience != "" {
			form.Set("audience", audience)
		}
		if len(scopes) > 0 {
			form.Set("scope", strings.Join(scopes, " "))
		}

		tok, err := e.requestToken(ctx, grantClientCredentials, form, audience)
		if err != nil {
			return nil, err
		}
		e.Cache.Put(key, tok)
		return tok, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Token), nil
}

// ExchangeUserToken validates the SSO token and exchanges it for a downstream
// token scoped to that user. The validation happens here, unconditionally;
// callers cannot skip it. An expired or otherwise invalid SSO token fails
// fast with ErrReauthRequired before any network round trip to the token
// endpoint.
func (e *Exchanger) ExchangeUserToken(ctx context.Context, ssoToken, audience string) (*Token, error) {
	res, err := e.Validator.Validate(ctx, ssoToken)
	if err != nil {
		metrics.ValidationFailures.WithLabelValues(jwtx.Kind(err)).Inc()
		if errors.Is(err, jwtx.ErrIssuerUnreachable) {
			// Infrastructure, not identity. Don't tell the browser to
			// re-login over a flaky JWKS endpoint.
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrReauthRequired, err)
	}

	key := Key("user:"+res.UserID, audience, nil)
	if tok := e.Cache.Get(key); tok != nil {
		return tok, nil
	}

	result, err, _ := e.group.Do(key, func() (any, error) {
		if tok := e.Cache.Get(key); tok != nil {
			return tok, nil
		}

		form := url.Values{
			"grant_type":         {grantTokenExchange},
			"subject_token":      {ssoToken},
			"subject_token_type": {subjectTokenTypeJWT},
		}
		if e.ClientID != "" {
			form.Set("client_id", e.ClientID)
		}
		if e.ClientSecret != "" {
			form.Set("client_secret", e.ClientSecret)
		}
		if audience != "" {
			form.Set("audience", audience)
		}

		tok, err := e.requestToken(ctx, grantTokenExchange, form, audience)
		if err != nil {
			return nil, err
		}
		e.Cache.Put(key, tok)
		return tok, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Token), nil
}

// InvalidateUserToken drops the cached token for (user, audience). Called
// when a downstream service 401s a token we thought was still good.
func (e *Exchanger) InvalidateUserToken(userID, audience string) {
	e.Cache.Invalidate(Key("user:"+userID, audience, nil))
}

// InvalidateServiceToken drops the cached service token for an audience/scope set.
func (e *Exchanger) InvalidateServiceToken(audience string, scopes []string) {
	e.Cache.Invalidate(Key("service:"+e.ClientID, audience, scopes))
}

// requestToken performs the form POST against the token endpoint. Transient
// failures (transport errors, 5xx) are retried exactly once; identity
// rejections are not. Failures are never cached.
func (e *Exchanger) requestToken(ctx context.Context, grantType string, form url.Values, audience string) (*Token, error) {
	tok, err := e.postTokenForm(ctx, form, audience)
	if err == nil {
		metrics.TokenRequests.WithLabelValues(grantType, "ok").Inc()
		return tok, nil
	}

	var xerr *ExchangeError
	if errors.As(err, &xerr) && xerr.Transient() && ctx.Err() == nil {
		select {
		case <-time.After(e.retryDelay()):
		case <-ctx.Done():
			metrics.TokenRequests.WithLabelValues(grantType, "error").Inc()
			return nil, err
		}

		tok, err = e.postTokenForm(ctx, form, audience)
		if err == nil {
			metrics.TokenRequests.WithLabelValues(grantType, "ok").Inc()
			return tok, nil
		}
	}

	metrics.TokenRequests.WithLabelValues(grantType, "error").Inc()
	return nil, err
}

func (e *Exchanger) postTokenForm(ctx context.Context, form url.Values, audience string) (*Token, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		e.TokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("exchange: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, &ExchangeError{Status: 0, Code: "upstream_unavailable", Description: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("exchange: read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseExchangeError(resp.StatusCode, body)
	}

	var wire tokenResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("exchange: decode token response: %w", err)
	}
	if wire.AccessToken == "" {
		return nil, fmt.Errorf("exchange: token response missing access_token")
	}

	return &Token{
		AccessToken: wire.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(wire.ExpiresIn) * time.Second),
		Audience:    audience,
		Scopes:      strings.Fields(wire.Scope),
	}, nil
}

func (e *Exchanger) retryDelay() time.Duration {
	if e.RetryDelay > 0 {
		return e.RetryDelay
	}
	return defaultRetryDelay
}
