package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/broadline/agentgate/internal/gateway/exchange"
)

const (
	// SessionCookieName carries the who-is-logged-in record.
	SessionCookieName = "agentgate_session"

	// TokenCookieName carries the short-lived downstream bearer token.
	TokenCookieName = "agentgate_token"

	// sessionMaxAge caps the session cookie regardless of SSO token lifetime.
	sessionMaxAge = 24 * time.Hour

	// tokenCookieTTL caps the downstream token cookie. The token itself may
	// live longer; the cookie forces a refresh round trip.
	tokenCookieTTL = 15 * time.Minute
)

// Record is the session cookie payload. It identifies the user for display
// and routing; authorization against the downstream services rides on the
// token cookie, never on this record.
type Record struct {
	UserID   string    `json:"user_id"`
	Email    string    `json:"email,omitempty"`
	Roles    []string  `json:"roles,omitempty"`
	IssuedAt time.Time `json:"issued_at"`

	// SSOToken is the original SSO JWT, kept so /api/auth/refresh can
	// re-run the exchange without a round trip through the IdP. It never
	// leaves the httpOnly cookie.
	SSOToken string `json:"sso_token,omitempty"`
}

func encodeRecord(rec *Record) (string, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("session: encode record: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeRecord(value string) *Record {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.UserID == "" {
		return nil
	}
	return &rec
}

func writeSessionCookie(w http.ResponseWriter, rec *Record, tokenExpiry time.Time, secure bool) error {
	value, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	maxAge := sessionMaxAge
	if until := time.Until(tokenExpiry); until < maxAge {
		maxAge = until
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func writeTokenCookie(w http.ResponseWriter, tok *exchange.Token, secure bool) {
	maxAge := tokenCookieTTL
	if ttl := tok.TTL(); ttl > 0 && ttl < maxAge {
		maxAge = ttl
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    tok.AccessToken,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func readSessionCookie(r *http.Request) *Record {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil
	}
	return decodeRecord(c.Value)
}

func readTokenCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(TokenCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
