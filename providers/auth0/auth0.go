// Package auth0 implements the providers.Provider interface for Auth0
// tenants using the authorization code flow with PKCE.
package auth0

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/opsboard/auth/providers"
)

// Config holds Auth0 tenant configuration
type Config struct {
	// Domain is the Auth0 tenant domain, e.g. "example.eu.auth0.com".
	// A full base URL with scheme is also accepted (used by tests).
	Domain string

	// ClientID is the Auth0 application client ID (required)
	ClientID string

	// ClientSecret is the Auth0 application client secret (required)
	ClientSecret string

	// CallbackURL is where Auth0 redirects after authentication (required)
	CallbackURL string

	// Scopes requested during authorization. Default: openid, profile, email.
	Scopes []string

	// Audience is the optional API identifier. Only sent when non-empty.
	Audience string

	// AllowSilentAuth skips the forced login prompt. When false (the
	// default) prompt=login is sent so a second login cannot silently
	// reuse a stale browser session at the provider.
	AllowSilentAuth bool

	// HTTPClient is an optional custom HTTP client for provider requests
	HTTPClient *http.Client
}

// Provider implements the providers.Provider interface for Auth0.
type Provider struct {
	config          *oauth2.Config
	baseURL         string
	audience        string
	allowSilentAuth bool
	httpClient      *http.Client
}

// NewProvider creates a new Auth0 provider
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg.Domain == "" {
		return nil, fmt.Errorf("domain is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}
	if cfg.CallbackURL == "" {
		return nil, fmt.Errorf("callback URL is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "profile", "email"}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	baseURL := cfg.Domain
	if !strings.Contains(baseURL, "://") {
		baseURL = "https://" + baseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  baseURL + "/authorize",
				TokenURL: baseURL + "/oauth/token",
			},
		},
		baseURL:         baseURL,
		audience:        cfg.Audience,
		allowSilentAuth: cfg.AllowSilentAuth,
		httpClient:      httpClient,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "auth0"
}

// AuthorizationURL generates the Auth0 authorization URL for a login attempt
func (p *Provider) AuthorizationURL(state string, codeChallenge string) string {
	opts := []oauth2.AuthCodeOption{}

	if codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}

	// Audience is only sent when configured
	if p.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", p.audience))
	}

	// Force the login screen so switching accounts works
	if !p.allowSilentAuth {
		opts = append(opts, oauth2.SetAuthURLParam("prompt", "login"))
	}

	return p.config.AuthCodeURL(state, opts...)
}

// ExchangeCode exchanges an authorization code for tokens
func (p *Provider) ExchangeCode(ctx context.Context, code string, codeVerifier string) (*oauth2.Token, error) {
	opts := []oauth2.AuthCodeOption{}
	if codeVerifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.config.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, &providers.NetworkError{Op: "token exchange", Err: err}
	}

	return token, nil
}

// UserInfo fetches profile claims from the Auth0 userinfo endpoint
func (p *Provider) UserInfo(ctx context.Context, accessToken string) (*providers.UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &providers.NetworkError{Op: "userinfo request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &providers.NetworkError{
			Op:  "userinfo request",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var claims struct {
		Sub               string `json:"sub"`
		Email             string `json:"email"`
		EmailVerified     bool   `json:"email_verified"`
		Name              string `json:"name"`
		Nickname          string `json:"nickname"`
		GivenName         string `json:"given_name"`
		PreferredUsername string `json:"preferred_username"`
		Picture           string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	return &providers.UserInfo{
		Sub:               claims.Sub,
		Email:             claims.Email,
		EmailVerified:     claims.EmailVerified,
		Name:              claims.Name,
		Nickname:          claims.Nickname,
		GivenName:         claims.GivenName,
		PreferredUsername: claims.PreferredUsername,
		Picture:           claims.Picture,
	}, nil
}

// LogoutURL builds the Auth0 logout URL with a returnTo redirect
func (p *Provider) LogoutURL(returnTo string) string {
	q := url.Values{}
	q.Set("client_id", p.config.ClientID)
	q.Set("returnTo", returnTo)
	return p.baseURL + "/v2/logout?" + q.Encode()
}
