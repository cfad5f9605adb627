package jwtx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Result holds the trusted identity extracted from a validated token.
type Result struct {
	UserID    string
	Email     string
	Username  string
	Roles     []string
	Scopes    []string
	ExpiresAt time.Time
}

// Validator verifies SSO JWTs against the issuer's published JWKS and enforces
// the standard claims. It is the only component allowed to turn a raw token
// into a trusted identity.
type Validator struct {
	Keys     *RemoteKeySet
	Issuer   string
	Audience []string
}

// NewValidator creates a Validator that trusts keys from the given JWKS URL.
func NewValidator(jwksURL, issuer string, audience []string) *Validator {
	return &Validator{
		Keys:     NewRemoteKeySet(jwksURL),
		Issuer:   issuer,
		Audience: audience,
	}
}

// Validate verifies the token's signature and standard claims and returns the
// identity it asserts. All failures are classified; use Kind to map an error
// to its wire-level kind.
func (v *Validator) Validate(ctx context.Context, tokenStr string) (*Result, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{
		jwt.SigningMethodRS256.Alg(),
		jwt.SigningMethodES256.Alg(),
		jwt.SigningMethodEdDSA.Alg(),
	}))

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		// Need the kid to know which key to use
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", ErrUnknownKID)
		}
		return v.Keys.KeyFor(ctx, kid)
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSig
	}

	// Parser already enforced exp/nbf; issuer and audience are ours to check.
	if err := claims.ValidateIssuer(v.Issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateAudience(v.Audience); err != nil {
		return nil, err
	}

	res := &Result{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Username: claims.Username,
		Roles:    claims.Roles,
		Scopes:   claims.Scopes,
	}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}
	return res, nil
}

// classifyParseError maps golang-jwt parse errors onto our sentinel errors so
// callers get a stable taxonomy regardless of library internals.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, ErrIssuerUnreachable),
		errors.Is(err, ErrUnknownKID),
		errors.Is(err, ErrMalformed):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %w", ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %w", ErrInvalidSig, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidSig, err)
	}
}
