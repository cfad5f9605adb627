package jwtx

import "errors"

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")

	// ErrIssuerUnreachable means we could not fetch the issuer's JWKS. The
	// validator fails closed on this: an unreachable issuer never grants access.
	ErrIssuerUnreachable = errors.New("jwtx: issuer jwks unreachable")
)

// Wire-level error kinds, stable across releases. These are what callers put
// in JSON error responses.
const (
	KindMalformed         = "malformed_token"
	KindSignatureInvalid  = "signature_invalid"
	KindExpired           = "expired"
	KindAudienceMismatch  = "audience_mismatch"
	KindIssuerUnreachable = "issuer_unreachable"
)

// Kind classifies a validation error into its wire-level kind. Unknown errors
// classify as signature_invalid rather than leaking internals; anything we
// can't name is still a reason to reject.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrExpired), errors.Is(err, ErrNotYetValid):
		return KindExpired
	case errors.Is(err, ErrAudience), errors.Is(err, ErrIssuer):
		return KindAudienceMismatch
	case errors.Is(err, ErrIssuerUnreachable):
		return KindIssuerUnreachable
	case errors.Is(err, ErrMalformed):
		return KindMalformed
	default:
		return KindSignatureInvalid
	}
}
