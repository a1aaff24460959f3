package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the authentication core configuration, sourced from AUTH0_*
// environment variables.
type Config struct {
	// Domain is the Auth0 tenant domain (required)
	Domain string `env:"AUTH0_DOMAIN"`

	// ClientID is the Auth0 application client ID (required)
	ClientID string `env:"AUTH0_CLIENT_ID"`

	// ClientSecret is the Auth0 application client secret (required)
	ClientSecret string `env:"AUTH0_CLIENT_SECRET"`

	// CallbackURL is where the provider redirects after authentication (required)
	CallbackURL string `env:"AUTH0_CALLBACK_URL"`

	// Scope is the space-separated OAuth scope string
	Scope string `env:"AUTH0_SCOPE" envDefault:"openid profile email"`

	// Audience is the optional API identifier; only sent when non-empty
	Audience string `env:"AUTH0_AUDIENCE"`

	// SessionLifetime is the fallback token lifetime used when the provider
	// omits expires_in
	SessionLifetime time.Duration `env:"AUTH0_SESSION_LIFETIME" envDefault:"1h"`

	// FlowTTL bounds how long an unconsumed login attempt stays valid
	FlowTTL time.Duration `env:"AUTH0_FLOW_TTL" envDefault:"10m"`

	// Logger for structured logging (optional, uses slog.Default if not provided)
	Logger *slog.Logger `env:"-"`

	// HTTPClient is a custom HTTP client for provider requests (optional)
	HTTPClient *http.Client `env:"-"`
}

// LoadConfigFromEnv loads configuration from environment variables
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Validate fails closed: while any required setting is missing, no login
// flow may start. The returned error names the missing variable.
func (c *Config) Validate() error {
	if c.Domain == "" {
		return ErrConfiguration("AUTH0_DOMAIN is not configured")
	}
	if c.ClientID == "" {
		return ErrConfiguration("AUTH0_CLIENT_ID is not configured")
	}
	if c.ClientSecret == "" {
		return ErrConfiguration("AUTH0_CLIENT_SECRET is not configured")
	}
	if c.CallbackURL == "" {
		return ErrConfiguration("AUTH0_CALLBACK_URL is not configured")
	}
	return nil
}

// Scopes splits the scope string into its components
func (c *Config) Scopes() []string {
	return strings.Fields(c.Scope)
}
