package http

import (
	"context"
	"net/http"

	"github.com/broadline/agentgate/internal/gateway/session"
	"github.com/broadline/agentgate/pkg/httpx"
)

type authCtxKey struct{}

// requireAuth resolves the caller's identity via the session manager and
// stores the AuthContext for handlers plus the identity fields for the
// generic httpx middleware (scope checks, per-user rate limits).
func requireAuth(sessions *session.Manager) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, err := sessions.WithAuth(w, r)
			if err != nil {
				writeAuthError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), authCtxKey{}, auth)
			ctx = httpx.WithIdentity(ctx, auth.UserID, auth.Roles, auth.Scopes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authFromCtx returns the AuthContext stored by requireAuth. Panics when
// called outside a requireAuth chain; that is a routing bug, not a runtime
// condition.
func authFromCtx(ctx context.Context) *session.AuthContext {
	return ctx.Value(authCtxKey{}).(*session.AuthContext)
}
