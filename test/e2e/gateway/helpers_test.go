package gateway_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/broadline/agentgate/internal/gateway/app"
	"github.com/broadline/agentgate/pkg/jwtx"
)

/*
 * End-to-end tests for the gateway. The whole application is wired through
 * app.New exactly as in production; the identity provider, token endpoint,
 * and agent server are httptest fakes.
 */

const (
	e2eIssuer   = "https://sso.example.com"
	e2eAudience = "agent-server"
)

type env struct {
	kid  string
	priv ed25519.PrivateKey

	gateway *httptest.Server
	client  *http.Client
}

func setupGateway(t *testing.T, mutate func(*app.Config)) *env {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	e := &env{kid: "e2e-key-1", priv: priv}
	jwks := jwtx.JWKS{Keys: []jwtx.JWK{jwtx.NewEd25519JWK(e.kid, "sig", "EdDSA", pub)}}

	jwksSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(jwksSrv.Close)

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": e.signToken(t, "user-7", time.Now().Add(time.Hour)),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(tokenSrv.Close)

	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/agents" && r.Method == http.MethodGet:
			_, _ = fmt.Fprint(w, `{"agents":[{"id":"a1","name":"triage-bot"}]}`)
		case r.URL.Path == "/v1/agents/a1/stream":
			w.Header().Set("Content-Type", "text/event-stream")
			flusher := w.(http.Flusher)
			for i := range 3 {
				_, _ = fmt.Fprintf(w, "event: message\ndata: {\"seq\":%d}\n\n", i)
				flusher.Flush()
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(agentSrv.Close)

	cfg := app.Config{
		Issuer:              e2eIssuer,
		Audience:            e2eAudience,
		JWKSURL:             jwksSrv.URL,
		TokenEndpoint:       tokenSrv.URL,
		ClientID:            "agentgate",
		ClientSecret:        "e2e-secret",
		AgentServerURL:      agentSrv.URL,
		IngestServerURL:     agentSrv.URL,
		AllowedOrigins:      []string{"http://localhost:3000"},
		Env:                 "dev",
		LogLevel:            "error",
		LogFormat:           "text",
		Port:                0,
		ShutdownGracePeriod: time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	application, err := app.New(cfg)
	require.NoError(t, err)

	e.gateway = httptest.NewServer(application.Handler())
	t.Cleanup(e.gateway.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	e.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return e
}

func (e *env) signToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"iss":   e2eIssuer,
		"aud":   e2eAudience,
		"sub":   sub,
		"email": sub + "@example.com",
		"roles": []string{"Admin"},
		"scope": "agents:read agents:write",
		"iat":   time.Now().Unix(),
		"exp":   exp.Unix(),
	})
	tok.Header["kid"] = e.kid

	signed, err := tok.SignedString(e.priv)
	require.NoError(t, err)
	return signed
}

func (e *env) get(t *testing.T, path string) *http.Response {
	t.Helper()

	resp, err := e.client.Get(e.gateway.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *env) postJSON(t *testing.T, path, body string) *http.Response {
	t.Helper()

	resp, err := e.client.Post(e.gateway.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}
