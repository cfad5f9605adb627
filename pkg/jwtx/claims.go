package jwtx

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the SSO access-token claims the gateway cares about. The identity
// provider owns the token format; we only read it, so fields are additive and
// tolerant of what different IdP versions emit.
type Claims struct {
	jwt.RegisteredClaims

	// Roles granted to the user, e.g. ["Admin", "User"]
	Roles []string `json:"roles,omitempty"`

	// Scopes may arrive as a space-delimited string ("agents:read agents:write")
	// or a JSON array, depending on the IdP. ScopeList absorbs both.
	Scopes ScopeList `json:"scope,omitempty"`

	// Email for the authenticated user
	Email string `json:"email,omitempty"`

	// Username is the display/login name for the user
	Username string `json:"username,omitempty"`
}

// ScopeList is a list of scopes that unmarshals from either a space-delimited
// string or a JSON string array.
type ScopeList []string

func (s *ScopeList) UnmarshalJSON(data []byte) error {
	// Try the array form first
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = strings.Fields(str)
	return nil
}

func (s ScopeList) MarshalJSON() ([]byte, error) {
	return json.Marshal([]string(s))
}

// String returns the space-delimited form used on the wire in OAuth2 requests.
func (s ScopeList) String() string {
	return strings.Join(s, " ")
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}
