package gateway_test

import (
	"bufio"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/broadline/agentgate/internal/gateway/app"
)

func TestBrowserLoginFlow(t *testing.T) {
	e := setupGateway(t, nil)

	// SSO callback establishes the session and redirects home.
	resp := e.get(t, "/api/sso?token="+e.signToken(t, "user-7", time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	// The cookie jar now authenticates /api/session.
	resp = e.get(t, "/api/session")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sess struct {
		User *struct {
			ID string `json:"id"`
		} `json:"user"`
		IsAuthenticated bool `json:"isAuthenticated"`
	}
	decodeBody(t, resp, &sess)
	require.True(t, sess.IsAuthenticated)
	require.Equal(t, "user-7", sess.User.ID)

	// And proxied admin calls work end to end.
	resp = e.get(t, "/api/agents")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "triage-bot")

	// Logout drops the session.
	resp = e.postJSON(t, "/api/auth/logout", "{}")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.get(t, "/api/agents")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestExpiredSSOTokenRejectedAtCallback(t *testing.T) {
	e := setupGateway(t, nil)

	resp := e.get(t, "/api/sso?token="+e.signToken(t, "user-7", time.Now().Add(-time.Minute)))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Location"), "/login?error=expired")

	resp = e.get(t, "/api/session")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sess struct {
		IsAuthenticated bool `json:"isAuthenticated"`
	}
	decodeBody(t, resp, &sess)
	require.False(t, sess.IsAuthenticated)
}

func TestTestUserFallback(t *testing.T) {
	e := setupGateway(t, func(cfg *app.Config) {
		cfg.TestUserID = "dev-local"
		cfg.TestUserEmail = "dev@example.com"
		cfg.TestUserRoles = []string{"Admin"}
	})

	// No cookies, no bearer: the configured test user carries the request.
	resp := e.get(t, "/api/agents")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.get(t, "/api/auth/token")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tok struct {
		Token string `json:"token"`
	}
	decodeBody(t, resp, &tok)
	require.NotEmpty(t, tok.Token)

	// The session endpoint reflects cookies only; the fallback never sets any.
	resp = e.get(t, "/api/session")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sess struct {
		IsAuthenticated bool `json:"isAuthenticated"`
	}
	decodeBody(t, resp, &sess)
	require.False(t, sess.IsAuthenticated)
}

func TestStreamRelayEndToEnd(t *testing.T) {
	e := setupGateway(t, nil)

	resp := e.get(t, "/api/sso?token="+e.signToken(t, "user-7", time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = e.get(t, "/api/agents/a1/stream")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	require.Len(t, events, 3)
	require.JSONEq(t, `{"seq":0}`, events[0])
	require.JSONEq(t, `{"seq":2}`, events[2])
}

func TestHealthAndMetrics(t *testing.T) {
	e := setupGateway(t, nil)

	resp := e.get(t, "/livez")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.get(t, "/readyz")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
		Checks struct {
			JWKS        string `json:"jwks"`
			Credentials string `json:"credentials"`
		} `json:"checks"`
	}
	decodeBody(t, resp, &health)
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.Checks.Credentials)

	resp = e.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "agentgate_proxy_active_streams")
}

func TestMissingIssuerRefusesToStart(t *testing.T) {
	cfg := app.Config{
		Audience:      e2eAudience,
		TokenEndpoint: "http://localhost:1",
	}

	_, err := app.New(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "AGENTGATE_ISSUER")
}
