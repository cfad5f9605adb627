package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/broadline/agentgate/pkg/httpx"
)

type Config struct {
	Issuer        string // Required: expected iss claim on SSO tokens
	Audience      string // Required: expected aud claim, also the token-exchange audience
	JWKSURL       string // Required: issuer JWKS endpoint
	TokenEndpoint string // Required: OAuth2 token endpoint for both grants
	ClientID      string // Required: gateway's client id at the token endpoint
	ClientSecret  string // Required: gateway's client secret

	AgentServerURL  string // Required: agent server base URL
	IngestServerURL string // Optional: ingest service base URL (default: agent server)

	AllowedOrigins []string // Optional: CORS origins for the browser front-end

	// Test user for local development only. Ignored when Env is prod.
	TestUserID    string
	TestUserEmail string
	TestUserRoles []string

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	cfg := Config{
		Issuer:        os.Getenv("AGENTGATE_ISSUER"),
		Audience:      os.Getenv("AGENTGATE_AUDIENCE"),
		JWKSURL:       os.Getenv("AGENTGATE_JWKS_URL"),
		TokenEndpoint: os.Getenv("AGENTGATE_TOKEN_ENDPOINT"),
		ClientID:      os.Getenv("AGENTGATE_CLIENT_ID"),
		ClientSecret:  os.Getenv("AGENTGATE_CLIENT_SECRET"),

		AgentServerURL:  getEnvOrDefault("AGENT_SERVER_URL", "http://localhost:9000"),
		IngestServerURL: os.Getenv("INGEST_SERVER_URL"), // Optional

		AllowedOrigins: httpx.ParseSpaceDelimitedFields(os.Getenv("CORS_ALLOWED_ORIGINS")),

		TestUserID:    os.Getenv("TEST_USER_ID"),
		TestUserEmail: os.Getenv("TEST_USER_EMAIL"),
		TestUserRoles: httpx.ParseSpaceDelimitedFields(os.Getenv("TEST_USER_ROLES")),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	// JWKS URL is derivable from the issuer in the common case.
	if cfg.JWKSURL == "" && cfg.Issuer != "" {
		cfg.JWKSURL = cfg.Issuer + "/.well-known/jwks.json"
	}

	if cfg.IngestServerURL == "" {
		cfg.IngestServerURL = cfg.AgentServerURL
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	}

	return cfg
}

// Validate reports missing required settings. The gateway refuses to start
// without an issuer; missing exchange credentials degrade /readyz instead so
// a misconfigured pod is visible rather than crash-looping.
func (cfg Config) Validate() error {
	if cfg.Issuer == "" {
		return fmt.Errorf("app: AGENTGATE_ISSUER is required")
	}
	if cfg.Audience == "" {
		return fmt.Errorf("app: AGENTGATE_AUDIENCE is required")
	}
	if cfg.TokenEndpoint == "" {
		return fmt.Errorf("app: AGENTGATE_TOKEN_ENDPOINT is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Integer seconds also accepted.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
