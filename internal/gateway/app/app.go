package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/broadline/agentgate/internal/gateway/exchange"
	gatewayhttp "github.com/broadline/agentgate/internal/gateway/http"
	"github.com/broadline/agentgate/internal/gateway/proxy"
	"github.com/broadline/agentgate/internal/gateway/session"
	"github.com/broadline/agentgate/pkg/agentsdk"
	"github.com/broadline/agentgate/pkg/jwtx"
	"github.com/broadline/agentgate/pkg/slogx"
)

const BuildVersion = "v0.1.0"

type Application struct {
	cfg    Config
	logger *slog.Logger

	validator *jwtx.Validator
	exchanger *exchange.Exchanger
	sessions  *session.Manager

	router *gatewayhttp.Router
	server *http.Server
}

func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := slogx.New(slogx.Config{
		Service: "agentgate",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	app := &Application{
		cfg:    cfg,
		logger: logger,
	}

	app.validator = jwtx.NewValidator(cfg.JWKSURL, cfg.Issuer, []string{cfg.Audience})
	app.exchanger = exchange.New(cfg.TokenEndpoint, cfg.ClientID, cfg.ClientSecret, app.validator)

	app.sessions = &session.Manager{
		Validator: app.validator,
		Exchanger: app.exchanger,
		Audience:  cfg.Audience,
		Secure:    cfg.Env != "dev",
	}
	if cfg.Env != "prod" && cfg.TestUserID != "" {
		app.sessions.TestUser = &session.TestUser{
			UserID: cfg.TestUserID,
			Email:  cfg.TestUserEmail,
			Roles:  cfg.TestUserRoles,
		}
		logger.Warn("test user enabled, do not run this configuration in production",
			"user_id", cfg.TestUserID)
	}

	app.initHTTP()

	return app, nil
}

func (app *Application) initHTTP() {
	agents := agentsdk.NewClient(app.cfg.AgentServerURL)
	documents := agentsdk.NewClient(app.cfg.IngestServerURL)
	ingest := proxy.NewForwarder(app.cfg.IngestServerURL)

	app.router = gatewayhttp.NewRouter(
		app.sessions,
		app.exchanger,
		agents,
		documents,
		ingest,
		app.cfg.AgentServerURL,
		app.cfg.Audience,
		app.cfg.AllowedOrigins,
		BuildVersion,
		app.logger,
	)
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Handler exposes the fully wired router, mainly for end-to-end tests that
// want the real middleware stack without binding a port.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the HTTP server and blocks until the server fails or the process
// receives an interrupt or termination signal.
func (app *Application) Run() error {
	serverErrors := make(chan error, 1)

	go func() {
		app.logger.Info("agentgate starting",
			"port", app.cfg.Port, "version", BuildVersion,
			"issuer", app.cfg.Issuer, "agent_server", app.cfg.AgentServerURL)
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("app: server error: %w", err)

	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		return app.Shutdown()
	}
}

// Shutdown drains in-flight requests for up to ShutdownGracePeriod before
// forcing the listener closed. Long-lived SSE streams are cut off at the
// deadline.
func (app *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful shutdown failed, forcing close", "error", err)
		if err := app.server.Close(); err != nil {
			return fmt.Errorf("app: could not close server: %w", err)
		}
	}

	app.logger.Info("server stopped")
	return nil
}
