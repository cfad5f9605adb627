// Package session turns validated SSO tokens into browser cookies and
// resolves the calling identity on every gateway request.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/broadline/agentgate/internal/gateway/exchange"
	"github.com/broadline/agentgate/pkg/jwtx"
)

var (
	// ErrNoSession means no usable identity was found on the request.
	ErrNoSession = errors.New("session: no usable identity on request")

	// ErrTokenCookieExpired means the downstream token cookie lapsed and the
	// session record carries no SSO token to re-exchange with.
	ErrTokenCookieExpired = errors.New("session: downstream token cookie expired and not recoverable")
)

// AuthContext is the resolved identity a handler or proxy call runs as.
type AuthContext struct {
	UserID          string
	Email           string
	Roles           []string
	Scopes          []string
	DownstreamToken string
}

// TestUser is a configured development identity. Only wired outside
// production; requests with no cookie and no bearer run as this user.
type TestUser struct {
	UserID string
	Email  string
	Roles  []string
	Scopes []string
}

// Manager owns cookie issuance and identity resolution. Secure controls the
// cookie Secure attribute and is false only in dev.
type Manager struct {
	Validator *jwtx.Validator
	Exchanger *exchange.Exchanger
	Audience  string
	Secure    bool
	TestUser  *TestUser
}

// EstablishSession validates the SSO token, exchanges it for a downstream
// token, and writes both cookies. On any validation failure nothing is
// written and the caller should send the browser back to login.
func (m *Manager) EstablishSession(ctx context.Context, w http.ResponseWriter, ssoToken string) (*Record, error) {
	res, err := m.Validator.Validate(ctx, ssoToken)
	if err != nil {
		return nil, err
	}

	tok, err := m.Exchanger.ExchangeUserToken(ctx, ssoToken, m.Audience)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		UserID:   res.UserID,
		Email:    res.Email,
		Roles:    res.Roles,
		IssuedAt: time.Now().UTC(),
		SSOToken: ssoToken,
	}

	if err := writeSessionCookie(w, rec, res.ExpiresAt, m.Secure); err != nil {
		return nil, err
	}
	writeTokenCookie(w, tok, m.Secure)

	return rec, nil
}

// RefreshDownstreamToken re-runs the exchange for an authenticated session
// and rewrites the short-lived token cookie.
func (m *Manager) RefreshDownstreamToken(ctx context.Context, w http.ResponseWriter, ssoToken string) (*exchange.Token, error) {
	tok, err := m.Exchanger.ExchangeUserToken(ctx, ssoToken, m.Audience)
	if err != nil {
		return nil, err
	}
	writeTokenCookie(w, tok, m.Secure)
	return tok, nil
}

// SessionRecord returns the decoded session cookie, or nil when the request
// carries no valid session.
func (m *Manager) SessionRecord(r *http.Request) *Record {
	return readSessionCookie(r)
}

// ClearSession expires both cookies.
func (m *Manager) ClearSession(w http.ResponseWriter) {
	clearCookie(w, SessionCookieName, m.Secure)
	clearCookie(w, TokenCookieName, m.Secure)
}

// WithAuth resolves the identity for a request. Resolution order: session
// cookie, then Authorization bearer, then the configured test user. The
// bearer path validates and exchanges on the spot so API clients that never
// went through the SSO redirect still work. When the short-lived token
// cookie has lapsed under a live session, the SSO token held in the session
// record is re-exchanged in place and the cookie rewritten, so the browser
// never sees a 401 while its SSO token is still good.
func (m *Manager) WithAuth(w http.ResponseWriter, r *http.Request) (*AuthContext, error) {
	if rec := readSessionCookie(r); rec != nil {
		downstream, ok := readTokenCookie(r)
		if !ok {
			if rec.SSOToken == "" {
				return nil, ErrTokenCookieExpired
			}
			tok, err := m.Exchanger.ExchangeUserToken(r.Context(), rec.SSOToken, m.Audience)
			if err != nil {
				return nil, err
			}
			writeTokenCookie(w, tok, m.Secure)
			downstream = tok.AccessToken
		}
		return &AuthContext{
			UserID:          rec.UserID,
			Email:           rec.Email,
			Roles:           rec.Roles,
			Scopes:          scopesFromToken(downstream),
			DownstreamToken: downstream,
		}, nil
	}

	if bearer := bearerToken(r); bearer != "" {
		res, err := m.Validator.Validate(r.Context(), bearer)
		if err != nil {
			return nil, err
		}
		tok, err := m.Exchanger.ExchangeUserToken(r.Context(), bearer, m.Audience)
		if err != nil {
			return nil, err
		}
		return &AuthContext{
			UserID:          res.UserID,
			Email:           res.Email,
			Roles:           res.Roles,
			Scopes:          res.Scopes,
			DownstreamToken: tok.AccessToken,
		}, nil
	}

	if m.TestUser != nil {
		tok, err := m.Exchanger.ServiceToken(r.Context(), m.Audience, m.TestUser.Scopes)
		if err != nil {
			return nil, err
		}
		return &AuthContext{
			UserID:          m.TestUser.UserID,
			Email:           m.TestUser.Email,
			Roles:           m.TestUser.Roles,
			Scopes:          m.TestUser.Scopes,
			DownstreamToken: tok.AccessToken,
		}, nil
	}

	return nil, ErrNoSession
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

// scopesFromToken pulls scopes out of the downstream JWT payload for display
// and middleware checks. Unsafe decode only; the downstream service verifies
// the signature itself.
func scopesFromToken(token string) []string {
	claims := jwtx.DecodePayloadUnsafe(token)
	if claims == nil {
		return nil
	}
	return []string(claims.Scopes)
}
