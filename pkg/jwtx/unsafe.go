package jwtx

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// UnsafeClaims is the raw payload of a token that has NOT been verified.
// It exists for display and log-enrichment only. Nothing in an UnsafeClaims
// may feed an authorization decision; that's what Validator.Validate is for.
type UnsafeClaims struct {
	Subject  string    `json:"sub,omitempty"`
	Issuer   string    `json:"iss,omitempty"`
	Email    string    `json:"email,omitempty"`
	Username string    `json:"username,omitempty"`
	Roles    []string  `json:"roles,omitempty"`
	Scopes   ScopeList `json:"scope,omitempty"`
	Expiry   int64     `json:"exp,omitempty"`
}

// DecodePayloadUnsafe decodes a JWT payload without checking the signature.
// Returns nil on any decode error so call sites stay simple; a nil result
// just means "nothing to display".
func DecodePayloadUnsafe(token string) *UnsafeClaims {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil
	}

	var claims UnsafeClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil
	}

	return &claims
}
