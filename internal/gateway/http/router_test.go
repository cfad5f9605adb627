package http_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/broadline/agentgate/internal/gateway/exchange"
	gatewayhttp "github.com/broadline/agentgate/internal/gateway/http"
	"github.com/broadline/agentgate/internal/gateway/proxy"
	"github.com/broadline/agentgate/internal/gateway/session"
	"github.com/broadline/agentgate/pkg/agentsdk"
	"github.com/broadline/agentgate/pkg/jwtx"
)

const (
	testIssuer   = "https://sso.example.com"
	testAudience = "agent-server"
)

type fixture struct {
	kid  string
	priv ed25519.PrivateKey

	router    *gatewayhttp.Router
	tokenHits atomic.Int64

	// agentServer401s makes the fake agent server reject the next N calls.
	agentServer401s atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	f := &fixture{kid: "gw-key-1", priv: priv}
	jwks := jwtx.JWKS{Keys: []jwtx.JWK{jwtx.NewEd25519JWK(f.kid, "sig", "EdDSA", pub)}}

	jwksSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(jwksSrv.Close)

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.tokenHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": signDownstream(t, priv),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(tokenSrv.Close)

	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if f.agentServer401s.Load() > 0 {
			f.agentServer401s.Add(-1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_token",
				"error_description": "token rejected",
			})
			return
		}

		require.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "))
		require.Empty(t, r.Header.Get("Cookie"))

		switch {
		case r.URL.Path == "/v1/agents" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(agentsdk.ListAgentsResponse{
				Agents: []agentsdk.Agent{{ID: "a1", Name: "support-bot", Model: "large-v2"}},
			})
		case r.URL.Path == "/v1/agents" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(agentsdk.Agent{ID: "a2", Name: "created"})
		case r.URL.Path == "/v1/clients" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(agentsdk.ListClientAppsResponse{
				Clients: []agentsdk.ClientApp{{ID: "c1", Name: "dashboard"}},
			})
		case r.URL.Path == "/v1/documents" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(agentsdk.ListDocumentsResponse{
				Documents: []agentsdk.Document{{ID: "d1", Name: "handbook.pdf", Status: "ready"}},
			})
		case r.URL.Path == "/v1/documents" && r.Method == http.MethodPost:
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(agentsdk.Document{ID: "d2", Status: "processing"})
		case r.URL.Path == "/v1/documents/d1" && r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(agentSrv.Close)

	validator := jwtx.NewValidator(jwksSrv.URL, testIssuer, []string{testAudience})
	exchanger := exchange.New(tokenSrv.URL, "agentgate", "s3cret", validator)
	sessions := &session.Manager{
		Validator: validator,
		Exchanger: exchanger,
		Audience:  testAudience,
	}

	f.router = gatewayhttp.NewRouter(
		sessions,
		exchanger,
		agentsdk.NewClient(agentSrv.URL),
		agentsdk.NewClient(agentSrv.URL),
		proxy.NewForwarder(agentSrv.URL),
		agentSrv.URL,
		testAudience,
		[]string{"http://localhost:3000"},
		"test",
		slog.New(slog.DiscardHandler),
	)
	f.router.ApplyRoutes()

	return f
}

// signDownstream produces the token the fake token endpoint hands out.
func signDownstream(t *testing.T, priv ed25519.PrivateKey) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"sub":   "user-42",
		"scope": "agents:read agents:write",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString(priv)
	require.NoError(t, err)
	return signed
}

func (f *fixture) sign(t *testing.T, exp time.Time) string {
	t.Helper()
	return f.signWith(t, exp, "agents:read agents:write", []string{"Admin"})
}

func (f *fixture) signWith(t *testing.T, exp time.Time, scope string, roles []string) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"iss":   testIssuer,
		"aud":   testAudience,
		"sub":   "user-42",
		"email": "ops@example.com",
		"roles": roles,
		"scope": scope,
		"iat":   time.Now().Unix(),
		"exp":   exp.Unix(),
	})
	tok.Header["kid"] = f.kid

	signed, err := tok.SignedString(f.priv)
	require.NoError(t, err)
	return signed
}

// login runs the exchange endpoint and returns the issued cookies.
func (f *fixture) login(t *testing.T) []*http.Cookie {
	t.Helper()

	body := strings.NewReader(`{"token":"` + f.sign(t, time.Now().Add(time.Hour)) + `"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/auth/exchange", body)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return w.Result().Cookies()
}

func (f *fixture) do(t *testing.T, method, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(method, path, nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)
	return w
}

func TestExchangeSetsSessionAndCookies(t *testing.T) {
	f := newFixture(t)

	cookies := f.login(t)

	var names []string
	for _, c := range cookies {
		names = append(names, c.Name)
	}
	require.Contains(t, names, session.SessionCookieName)
	require.Contains(t, names, session.TokenCookieName)
}

func TestSessionRoundTrip(t *testing.T) {
	f := newFixture(t)
	cookies := f.login(t)

	w := f.do(t, http.MethodGet, "/api/session", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		User *struct {
			ID    string   `json:"id"`
			Email string   `json:"email"`
			Roles []string `json:"roles"`
		} `json:"user"`
		IsAuthenticated bool `json:"isAuthenticated"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.IsAuthenticated)
	require.NotNil(t, resp.User)
	require.Equal(t, "user-42", resp.User.ID)
	require.Equal(t, []string{"Admin"}, resp.User.Roles)
}

func TestSessionAnonymous(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		User            any  `json:"user"`
		IsAuthenticated bool `json:"isAuthenticated"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.IsAuthenticated)
	require.Nil(t, resp.User)
}

func TestProxiedListAgents(t *testing.T) {
	f := newFixture(t)
	cookies := f.login(t)

	w := f.do(t, http.MethodGet, "/api/agents", cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), "support-bot")
}

func TestProxiedCallWithoutAuth(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/agents", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "invalid_token")
}

func TestRefreshWithExpiredSSOFailsFast(t *testing.T) {
	f := newFixture(t)

	// Session cookie whose embedded SSO token has expired.
	expiredCookies := f.forgeSessionCookie(t, f.sign(t, time.Now().Add(-time.Minute)))

	w := f.do(t, http.MethodPost, "/api/auth/refresh", expiredCookies)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var resp struct {
		Error          string `json:"error"`
		RequiresReauth bool   `json:"requiresReauth"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.RequiresReauth)
	require.Equal(t, "reauth_required", resp.Error)

	// Fail-fast: the expired token never reached the token endpoint.
	require.EqualValues(t, 0, f.tokenHits.Load())
}

func TestRefreshRotatesTokenCookie(t *testing.T) {
	f := newFixture(t)
	cookies := f.login(t)

	w := f.do(t, http.MethodPost, "/api/auth/refresh", cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success   bool   `json:"success"`
		Token     string `json:"token"`
		ExpiresIn int    `json:"expiresIn"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Token)
	require.Greater(t, resp.ExpiresIn, 3000)

	var rotated *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.TokenCookieName {
			rotated = c
		}
	}
	require.NotNil(t, rotated)
	require.NotEmpty(t, rotated.Value)
}

func TestDownstream401InvalidatesCachedToken(t *testing.T) {
	f := newFixture(t)
	cookies := f.login(t)
	require.EqualValues(t, 1, f.tokenHits.Load())

	f.agentServer401s.Store(1)

	w := f.do(t, http.MethodGet, "/api/agents", cookies)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "requiresReauth")

	// The cookie still carries a token, so the next proxied call succeeds
	// against the recovered upstream; a fresh bearer-path login would now
	// re-exchange because the cache entry is gone.
	w = f.do(t, http.MethodGet, "/api/agents", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	r := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	r.Header.Set("Authorization", "Bearer "+f.sign(t, time.Now().Add(time.Hour)))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, f.tokenHits.Load())
}

func TestIngestForward(t *testing.T) {
	f := newFixture(t)
	cookies := f.login(t)

	w := f.do(t, http.MethodGet, "/api/ingest/documents", cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), "handbook.pdf")
}

func TestAuthTokenEndpoint(t *testing.T) {
	f := newFixture(t)
	cookies := f.login(t)

	w := f.do(t, http.MethodGet, "/api/auth/token", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token     string `json:"token"`
		ExpiresAt int64  `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.Greater(t, resp.ExpiresAt, time.Now().Unix())
}

func TestLogoutClearsCookies(t *testing.T) {
	f := newFixture(t)
	cookies := f.login(t)

	w := f.do(t, http.MethodPost, "/api/auth/logout", cookies)
	require.Equal(t, http.StatusOK, w.Code)

	for _, c := range w.Result().Cookies() {
		require.Empty(t, c.Value)
		require.Negative(t, c.MaxAge)
	}
}

func TestSSOCallbackRedirects(t *testing.T) {
	f := newFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/api/sso?token="+f.sign(t, time.Now().Add(time.Hour)), nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/", w.Header().Get("Location"))
	require.NotEmpty(t, w.Result().Cookies())
}

func TestSSOCallbackRejectsExpired(t *testing.T) {
	f := newFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/api/sso?token="+f.sign(t, time.Now().Add(-time.Minute)), nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusFound, w.Code)
	require.Contains(t, w.Header().Get("Location"), "/login?error=")
	require.Empty(t, w.Result().Cookies())
}

func TestLivez(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/livez", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestReadyz(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLapsedTokenCookieRecoversInPlace(t *testing.T) {
	f := newFixture(t)
	cookies := f.login(t)
	require.EqualValues(t, 1, f.tokenHits.Load())

	// Fifteen minutes later the token cookie is gone but the session cookie
	// and its embedded SSO token live on.
	var sessionOnly []*http.Cookie
	for _, c := range cookies {
		if c.Name == session.SessionCookieName {
			sessionOnly = append(sessionOnly, c)
		}
	}

	w := f.do(t, http.MethodGet, "/api/agents", sessionOnly)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rotated *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.TokenCookieName {
			rotated = c
		}
	}
	require.NotNil(t, rotated)
	require.NotEmpty(t, rotated.Value)

	// The cached downstream token was reused; no extra endpoint trip.
	require.EqualValues(t, 1, f.tokenHits.Load())
}

func TestCreateAgentWithWriteScope(t *testing.T) {
	f := newFixture(t)
	cookies := f.login(t)

	r := httptest.NewRequest(http.MethodPost, "/api/agents", strings.NewReader(`{"name":"created","model":"small-v1"}`))
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestWriteRoutesRequireWriteScope(t *testing.T) {
	f := newFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/api/agents", strings.NewReader(`{"name":"x"}`))
	r.Header.Set("Authorization",
		"Bearer "+f.signWith(t, time.Now().Add(time.Hour), "agents:read", []string{"Admin"}))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Header().Get("WWW-Authenticate"), "insufficient_scope")
}

func TestClientsRequireAdminRole(t *testing.T) {
	f := newFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/api/clients", nil)
	r.Header.Set("Authorization",
		"Bearer "+f.signWith(t, time.Now().Add(time.Hour), "agents:read agents:write", []string{"viewer"}))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), "access_denied")
}

func TestClientsListAsAdmin(t *testing.T) {
	f := newFixture(t)
	cookies := f.login(t)

	w := f.do(t, http.MethodGet, "/api/clients", cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), "dashboard")
}

func TestIngestUploadForwards(t *testing.T) {
	f := newFixture(t)
	cookies := f.login(t)

	r := httptest.NewRequest(http.MethodPost, "/api/ingest/documents", strings.NewReader("%PDF-1.4"))
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, r)

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), "processing")
}

func TestIngestDelete(t *testing.T) {
	f := newFixture(t)
	cookies := f.login(t)

	w := f.do(t, http.MethodDelete, "/api/ingest/documents/d1", cookies)
	require.Equal(t, http.StatusNoContent, w.Code)
}

// forgeSessionCookie builds cookies the way EstablishSession would for a
// given SSO token, without hitting the exchange path.
func (f *fixture) forgeSessionCookie(t *testing.T, ssoToken string) []*http.Cookie {
	t.Helper()

	rec := session.Record{
		UserID:   "user-42",
		Email:    "ops@example.com",
		Roles:    []string{"Admin"},
		IssuedAt: time.Now().UTC(),
		SSOToken: ssoToken,
	}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	return []*http.Cookie{{
		Name:  session.SessionCookieName,
		Value: base64.RawURLEncoding.EncodeToString(raw),
	}}
}
