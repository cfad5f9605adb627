package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/broadline/agentgate/internal/gateway/exchange"
	"github.com/broadline/agentgate/internal/gateway/proxy"
	"github.com/broadline/agentgate/internal/gateway/session"
	"github.com/broadline/agentgate/pkg/agentsdk"
	"github.com/broadline/agentgate/pkg/httpx"
	"github.com/broadline/agentgate/pkg/slogx"

	_ "github.com/broadline/agentgate/api/gateway" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	sessions       *session.Manager
	exchanger      *exchange.Exchanger
	agents         *agentsdk.Client
	documents      *agentsdk.Client
	ingest         *proxy.Forwarder
	agentServerURL string
	audience       string

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
}

func NewRouter(
	sessions *session.Manager,
	exchanger *exchange.Exchanger,
	agents *agentsdk.Client,
	documents *agentsdk.Client,
	ingest *proxy.Forwarder,
	agentServerURL, audience string,
	allowedOrigins []string,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:            http.NewServeMux(),
		sessions:       sessions,
		exchanger:      exchanger,
		agents:         agents,
		documents:      documents,
		ingest:         ingest,
		agentServerURL: agentServerURL,
		audience:       audience,
		buildVersion:   buildVersion,
		startTime:      time.Now(),
		logger:         logger,
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		c.Handler,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAgents()
	r.registerWorkflows()
	r.registerTools()
	r.registerClients()
	r.registerIngest()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			AgentGate Admin Gateway API
//	@version		0.1.0
//	@description	Backend-for-frontend gateway in front of the agent server and the ingest service. Handles SSO token validation, downstream token exchange, session cookies, and proxies the admin API.
//	@description
//	@description	Identity failures return 401 with an RFC 6749 style error body; responses that additionally carry requiresReauth=true mean the front-end must restart the SSO flow.
//
//	@contact.name	Broadline Platform Team
//	@contact.url	https://github.com/broadline/agentgate
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				SSO JWT. Format: "Bearer {token}". Browser clients use cookies instead.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Sessions: r.sessions}

	// Token-issuing endpoints get the strict limit; they hit the IdP and the
	// token endpoint on a miss.
	r.Mux.Handle("GET /api/sso",
		httpx.Chain(http.HandlerFunc(h.HandleSSO),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/exchange",
		httpx.Chain(http.HandlerFunc(h.HandleExchange),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /api/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Cheap session reads, polled on page loads.
	r.Mux.Handle("GET /api/auth/token",
		httpx.Chain(http.HandlerFunc(h.HandleToken),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /api/session",
		httpx.Chain(http.HandlerFunc(h.HandleSession),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) agentsHandler() *AgentsHandler {
	return &AgentsHandler{
		Client:         r.agents,
		Exchanger:      r.exchanger,
		Audience:       r.audience,
		AgentServerURL: r.agentServerURL,
	}
}

// secured wraps a proxied handler with auth resolution and per-user limits.
func (r *Router) secured(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		requireAuth(r.sessions),
		httpx.RateLimitByUser(limit),
	)
}

// securedWrite additionally requires the agents:write scope on the
// downstream token. Reads stay open to any authenticated caller.
func (r *Router) securedWrite(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		requireAuth(r.sessions),
		httpx.RequireAnyScope("agents:write"),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerAgents() {
	h := r.agentsHandler()

	r.Mux.Handle("GET /api/agents", r.secured(h.HandleList, httpx.ModerateLimit))
	r.Mux.Handle("GET /api/agents/{id}", r.secured(h.HandleGet, httpx.ModerateLimit))
	r.Mux.Handle("POST /api/agents", r.securedWrite(h.HandleCreate, httpx.ModerateLimit))
	r.Mux.Handle("PUT /api/agents/{id}", r.securedWrite(h.HandleUpdate, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /api/agents/{id}", r.securedWrite(h.HandleDelete, httpx.ModerateLimit))

	// Streams are long-lived; limit how many a user can open, not bytes.
	r.Mux.Handle("GET /api/agents/{id}/stream", r.secured(h.HandleStream, httpx.ModerateLimit))
}

func (r *Router) registerWorkflows() {
	h := &WorkflowsHandler{AgentsHandler: r.agentsHandler()}

	r.Mux.Handle("GET /api/workflows", r.secured(h.HandleList, httpx.ModerateLimit))
	r.Mux.Handle("GET /api/workflows/{id}", r.secured(h.HandleGet, httpx.ModerateLimit))
	r.Mux.Handle("POST /api/workflows", r.securedWrite(h.HandleCreate, httpx.ModerateLimit))
	r.Mux.Handle("PUT /api/workflows/{id}", r.securedWrite(h.HandleUpdate, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /api/workflows/{id}", r.securedWrite(h.HandleDelete, httpx.ModerateLimit))
}

func (r *Router) registerTools() {
	h := &ToolsHandler{AgentsHandler: r.agentsHandler()}

	r.Mux.Handle("GET /api/tools", r.secured(h.HandleList, httpx.ModerateLimit))
	r.Mux.Handle("GET /api/tools/{id}", r.secured(h.HandleGet, httpx.ModerateLimit))
	r.Mux.Handle("POST /api/tools", r.securedWrite(h.HandleCreate, httpx.ModerateLimit))
	r.Mux.Handle("PUT /api/tools/{id}", r.securedWrite(h.HandleUpdate, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /api/tools/{id}", r.securedWrite(h.HandleDelete, httpx.ModerateLimit))
}

func (r *Router) registerClients() {
	h := &ClientsHandler{AgentsHandler: r.agentsHandler()}

	// Client apps carry issued secrets; the whole surface is admin-only.
	admin := func(hf http.HandlerFunc) http.Handler {
		return httpx.Chain(hf,
			requireAuth(r.sessions),
			httpx.RequireAnyRole("Admin"),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /api/clients", admin(h.HandleList))
	r.Mux.Handle("POST /api/clients", admin(h.HandleCreate))
	r.Mux.Handle("DELETE /api/clients/{id}", admin(h.HandleDelete))
}

func (r *Router) registerIngest() {
	h := &IngestHandler{
		Documents: r.documents,
		Forwarder: r.ingest,
		Exchanger: r.exchanger,
		Audience:  r.audience,
	}

	r.Mux.Handle("GET /api/ingest/documents", r.secured(h.HandleList, httpx.ModerateLimit))
	r.Mux.Handle("POST /api/ingest/documents", r.securedWrite(h.HandleUpload, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /api/ingest/documents/{id}", r.securedWrite(h.HandleDelete, httpx.ModerateLimit))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.sessions.Validator.Keys, r.exchanger),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /metrics", promhttp.Handler())
}
