package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/broadline/agentgate/internal/gateway/session"
	"github.com/broadline/agentgate/pkg/httpx"
	"github.com/broadline/agentgate/pkg/jwtx"
	"github.com/broadline/agentgate/pkg/slogx"
)

// AuthHandler owns the browser-facing authentication endpoints.
type AuthHandler struct {
	Sessions *session.Manager
}

// UserInfo is the user shape every auth endpoint returns.
type UserInfo struct {
	ID     string   `json:"id"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Status string   `json:"status"`
}

func userInfoFromRecord(rec *session.Record) UserInfo {
	return UserInfo{
		ID:     rec.UserID,
		Email:  rec.Email,
		Roles:  rec.Roles,
		Status: "active",
	}
}

// HandleSSO handles GET /api/sso
//
//	@Summary		SSO callback
//	@Description	Completes the SSO flow: validates the identity provider's JWT, exchanges it for a downstream token, sets both session cookies, and redirects into the app. On failure redirects to /login with the error kind in the query string.
//	@Tags			Auth
//	@Param			token	query	string	true	"SSO JWT from the identity provider"
//	@Success		302		"Redirect to / on success, /login?error=<kind> on failure"
//	@Router			/api/sso [get].
func (h *AuthHandler) HandleSSO(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, "/login?error=invalid_request", http.StatusFound)
		return
	}

	rec, err := h.Sessions.EstablishSession(ctx, w, token)
	if err != nil {
		kind := errorKind(err)
		log.Warn("sso callback rejected", "kind", kind, "error", err)
		http.Redirect(w, r, "/login?error="+url.QueryEscape(kind), http.StatusFound)
		return
	}

	log.Info("session established", "user_id", rec.UserID)
	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleExchange handles POST /api/auth/exchange
//
//	@Summary		Exchange an SSO token for a session
//	@Description	JSON variant of the SSO callback for front-ends that receive the token themselves. Validates and exchanges the token, sets both cookies, and returns the user.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{token=string}	true	"SSO JWT"
//	@Success		200		{object}	object{success=bool,user=http.UserInfo}
//	@Failure		400		{object}	object{error=string,error_description=string}
//	@Failure		401		{object}	object{error=string,error_description=string}
//	@Router			/api/auth/exchange [post].
func (h *AuthHandler) HandleExchange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a token field")
		return
	}

	rec, err := h.Sessions.EstablishSession(r.Context(), w, req.Token)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userInfoFromRecord(rec),
	})
}

// HandleRefresh handles POST /api/auth/refresh
//
//	@Summary		Refresh the downstream token
//	@Description	Re-runs the token exchange for the current session and rewrites the short-lived token cookie. When the underlying SSO token has expired the response is a 401 with requiresReauth set; the front-end should restart SSO.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	object{success=bool,token=string,expiresIn=int}
//	@Failure		401	{object}	object{error=string,error_description=string,requiresReauth=bool}
//	@Router			/api/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	rec := h.Sessions.SessionRecord(r)
	if rec == nil || rec.SSOToken == "" {
		writeReauthRequired(w, "no session to refresh")
		return
	}

	tok, err := h.Sessions.RefreshDownstreamToken(r.Context(), w, rec.SSOToken)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"token":     tok.AccessToken,
		"expiresIn": int(time.Until(tok.ExpiresAt).Seconds()),
	})
}

// HandleToken handles GET /api/auth/token
//
//	@Summary		Current downstream token
//	@Description	Returns the downstream bearer token for client-side fetches that cannot ride on cookies (e.g. EventSource polyfills).
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	object{token=string,expiresAt=int}
//	@Failure		401	{object}	object{error=string,error_description=string}
//	@Router			/api/auth/token [get].
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	auth, err := h.Sessions.WithAuth(w, r)
	if err != nil {
		writeAuthError(w, r, err)
		return
	}

	var expiresAt int64
	if claims := jwtx.DecodePayloadUnsafe(auth.DownstreamToken); claims != nil {
		expiresAt = claims.Expiry
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"token":     auth.DownstreamToken,
		"expiresAt": expiresAt,
	})
}

// HandleSession handles GET /api/session
//
//	@Summary		Current session
//	@Description	Returns the logged-in user, or isAuthenticated=false with a null user. Never errors; the front-end calls this on every page load.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	object{user=http.UserInfo,isAuthenticated=bool}
//	@Router			/api/session [get].
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	rec := h.Sessions.SessionRecord(r)
	if rec == nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"user":            nil,
			"isAuthenticated": false,
		})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"user":            userInfoFromRecord(rec),
		"isAuthenticated": true,
	})
}

// HandleLogout handles POST /api/auth/logout
//
//	@Summary		Log out
//	@Description	Clears both session cookies. The SSO session at the identity provider is untouched.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	object{success=bool}
//	@Router			/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.ClearSession(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
