package http

import (
	"net/http"
	"time"

	"github.com/broadline/agentgate/internal/gateway/exchange"
	"github.com/broadline/agentgate/pkg/httpx"
	"github.com/broadline/agentgate/pkg/jwtx"
)

// HealthResponse is the body of /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports per-dependency readiness.
type HealthChecks struct {
	JWKS        string `json:"jwks"`
	Credentials string `json:"credentials"`
}

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Always returns 200 while the process is running.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	http.HealthResponse
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Ready means the issuer's JWKS has been fetched at least once and the exchange credentials are configured. Until then the gateway can only reject requests, so it should not receive traffic.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	http.HealthResponse
//	@Failure		503	{object}	http.HealthResponse
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, keys *jwtx.RemoteKeySet, exchanger *exchange.Exchanger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &HealthChecks{
			JWKS:        "ok",
			Credentials: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if !keys.IsReady() {
			// Cold cache; try once so a freshly started pod becomes ready
			// without waiting for the first login.
			if err := keys.Refresh(r.Context()); err != nil {
				checks.JWKS = "error: " + err.Error()
				overallStatus = "degraded"
				statusCode = http.StatusServiceUnavailable
			}
		}

		if exchanger.ClientID == "" || exchanger.ClientSecret == "" {
			checks.Credentials = "error: service credentials not configured"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
