package http

import (
	"errors"
	"net/http"

	"github.com/broadline/agentgate/internal/gateway/exchange"
	"github.com/broadline/agentgate/internal/gateway/proxy"
	"github.com/broadline/agentgate/internal/gateway/session"
	"github.com/broadline/agentgate/pkg/agentsdk"
	"github.com/broadline/agentgate/pkg/httpx"
	"github.com/broadline/agentgate/pkg/jwtx"
	"github.com/broadline/agentgate/pkg/slogx"
)

// writeReauthRequired is the one response shape the front-end treats as
// "send the user back through SSO".
func writeReauthRequired(w http.ResponseWriter, description string) {
	httpx.WriteJSON(w, http.StatusUnauthorized, map[string]any{
		"error":             "reauth_required",
		"error_description": description,
		"requiresReauth":    true,
	})
}

// writeAuthError maps the error taxonomy of the lower layers onto HTTP.
// Identity problems are 401s; infrastructure problems are 5xxs and must
// never masquerade as "please log in again".
func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	log := slogx.FromContext(r.Context())

	switch {
	case errors.Is(err, session.ErrNoSession):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "authentication required")

	case errors.Is(err, session.ErrTokenCookieExpired):
		writeReauthRequired(w, "downstream token expired; call /api/auth/refresh")

	case errors.Is(err, exchange.ErrReauthRequired):
		writeReauthRequired(w, "session token is no longer valid")

	case errors.Is(err, exchange.ErrCredentialsNotConfigured):
		log.Error("token exchange unavailable", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "credentials_not_configured", "gateway service credentials are not configured")

	case errors.Is(err, jwtx.ErrIssuerUnreachable):
		log.Error("identity provider unreachable", "error", err)
		httpx.WriteError(w, http.StatusBadGateway, jwtx.KindIssuerUnreachable, "identity provider is unreachable")

	case isJWTError(err):
		httpx.WriteError(w, http.StatusUnauthorized, jwtx.Kind(err), "token validation failed")

	default:
		var xerr *exchange.ExchangeError
		if errors.As(err, &xerr) {
			if xerr.Transient() {
				log.Error("token endpoint failure", "error", err)
				httpx.WriteError(w, http.StatusBadGateway, "token_request_failed", "token endpoint is unavailable")
				return
			}
			httpx.WriteError(w, http.StatusUnauthorized, xerr.Code, xerr.Description)
			return
		}

		var apiErr *agentsdk.APIError
		if errors.As(err, &apiErr) {
			writeUpstreamError(w, apiErr)
			return
		}

		var statusErr *proxy.UpstreamStatusError
		if errors.As(err, &statusErr) {
			if statusErr.Status == http.StatusUnauthorized {
				writeReauthRequired(w, "upstream rejected the downstream token")
				return
			}
			log.Error("upstream error before stream start", "status", statusErr.Status)
			httpx.WriteError(w, http.StatusBadGateway, "upstream_unavailable", "upstream service returned an error")
			return
		}

		if errors.Is(err, proxy.ErrUpstreamUnavailable) {
			log.Error("upstream unreachable", "error", err)
			httpx.WriteError(w, http.StatusBadGateway, "upstream_unavailable", "upstream service is unreachable")
			return
		}

		log.Error("unhandled gateway error", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

// writeUpstreamError relays a typed agent-server error to the browser,
// keeping the upstream's status code where it is meaningful to the client.
func writeUpstreamError(w http.ResponseWriter, apiErr *agentsdk.APIError) {
	status := apiErr.Status
	code := apiErr.Code

	switch {
	case apiErr.Unauthorized():
		writeReauthRequired(w, "upstream rejected the downstream token")
		return
	case status >= http.StatusInternalServerError:
		status = http.StatusBadGateway
		code = "upstream_unavailable"
	}
	if code == "" {
		code = "upstream_error"
	}

	httpx.WriteError(w, status, code, apiErr.Message)
}

// errorKind names an error for redirect query strings, where there is no
// JSON body to carry detail.
func errorKind(err error) string {
	switch {
	case errors.Is(err, exchange.ErrReauthRequired):
		return "reauth_required"
	case errors.Is(err, exchange.ErrCredentialsNotConfigured):
		return "credentials_not_configured"
	case isJWTError(err) || errors.Is(err, jwtx.ErrIssuerUnreachable):
		return jwtx.Kind(err)
	default:
		return "token_request_failed"
	}
}

func isJWTError(err error) bool {
	for _, sentinel := range []error{
		jwtx.ErrMalformed,
		jwtx.ErrAlgMismatch,
		jwtx.ErrUnknownKID,
		jwtx.ErrInvalidSig,
		jwtx.ErrIssuer,
		jwtx.ErrAudience,
		jwtx.ErrExpired,
		jwtx.ErrNotYetValid,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
