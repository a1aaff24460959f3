// Package auth implements the OAuth2 authorization-code-with-PKCE
// authentication core of the dashboard: login initiation, flow-state
// persistence across the redirect, callback validation, code exchange,
// profile fetch, directory sync, session lifecycle, and role checks.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/opsboard/auth/directory"
	"github.com/opsboard/auth/instrumentation"
	"github.com/opsboard/auth/internal/util"
	"github.com/opsboard/auth/pkce"
	"github.com/opsboard/auth/providers"
	"github.com/opsboard/auth/storage"
)

// stateBytes is the entropy of the CSRF state token
const stateBytes = 32

// stateLogLength is the number of characters to include when logging state
// tokens; enough for correlation without exposing the full value
const stateLogLength = 8

// User-facing callback outcome messages. They never include provider
// secrets, verifiers, or tokens.
const (
	msgInvalidState   = "Invalid or expired state parameter"
	msgFlowExpired    = "Authentication session expired. Please try logging in again."
	msgExchangeFailed = "Failed to exchange authorization code for token"
	msgNoAccessToken  = "No access token in response"
	msgProfileFailed  = "Failed to retrieve user profile"
	msgSuccess        = "Authentication successful"
)

// Session is the authentication state of one interactive dashboard session.
// It is an explicit value owned by the hosting layer, which persists it
// between requests (cookie, signed token, or a server-side store keyed by a
// session ID).
type Session struct {
	// Authenticated is true after a successful callback until logout,
	// expiry, or deactivation
	Authenticated bool

	// Profile holds the provider claims from the userinfo endpoint
	Profile *providers.UserInfo

	// AccessToken is the provider access token; never persisted beyond the session
	AccessToken string

	// TokenExpiresAt is fixed when the session is established and never recomputed
	TokenExpiresAt time.Time
}

// CallbackResult is the outcome of handling an authorization callback.
// Message is safe to surface to the user.
type CallbackResult struct {
	OK      bool
	Message string
}

// Manager drives the login state machine: anonymous, login started,
// authenticated, and back via logout or expiry.
type Manager struct {
	cfg       Config
	provider  providers.Provider
	flows     storage.FlowStore
	directory *directory.Service
	inst      *instrumentation.Instrumentation
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithDirectory wires the user directory sync service. Without it, directory
// sync and active-flag checks are skipped and role checks fall back to the
// least-privilege user role.
func WithDirectory(svc *directory.Service) Option {
	return func(m *Manager) { m.directory = svc }
}

// WithInstrumentation wires OpenTelemetry metrics for login flows
func WithInstrumentation(inst *instrumentation.Instrumentation) Option {
	return func(m *Manager) { m.inst = inst }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a session manager. Configuration is validated up front:
// a missing required setting refuses all login flows.
func NewManager(cfg Config, provider providers.Provider, flows storage.FlowStore, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if flows == nil {
		return nil, fmt.Errorf("flow store is required")
	}
	if cfg.SessionLifetime <= 0 {
		cfg.SessionLifetime = time.Hour
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:      cfg,
		provider: provider,
		flows:    flows,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Login starts a fresh login attempt and returns the authorization URL to
// redirect the user to. Each call creates an independent attempt; prior
// attempts from other tabs stay valid until consumed or expired.
func (m *Manager) Login(ctx context.Context) (string, error) {
	pair, err := pkce.Generate()
	if err != nil {
		return "", fmt.Errorf("generate PKCE pair: %w", err)
	}

	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}

	if err := m.flows.Put(ctx, state, pair.Verifier); err != nil {
		return "", fmt.Errorf("persist flow state: %w", err)
	}

	if m.inst != nil {
		m.inst.Metrics().RecordLoginStarted(ctx)
	}
	m.logger.Debug("Login flow started",
		"state_prefix", util.SafeTruncate(state, stateLogLength))

	return m.provider.AuthorizationURL(state, pair.Challenge), nil
}

// HandleCallback validates the provider redirect and completes
// authentication. Every failure path returns an explicit result with a
// user-safe message and leaves the session anonymous; no partial session
// state is ever exposed.
func (m *Manager) HandleCallback(ctx context.Context, sess *Session, code, state string) CallbackResult {
	verifier, err := m.flows.GetAndConsume(ctx, state)
	if errors.Is(err, storage.ErrStateExpired) {
		m.failCallback(ctx, "state_expired", ErrInvalidState(msgFlowExpired))
		return CallbackResult{Message: msgFlowExpired}
	}
	if err != nil {
		m.failCallback(ctx, "invalid_state", ErrInvalidState(msgInvalidState))
		return CallbackResult{Message: msgInvalidState}
	}

	exchangeStart := m.now()
	token, err := m.provider.ExchangeCode(ctx, code, verifier)
	if m.inst != nil {
		m.inst.Metrics().RecordProviderRequest(ctx, "token_exchange", m.now().Sub(exchangeStart))
	}
	if err != nil {
		m.logger.Error("Token exchange failed", "error", err)
		m.failCallback(ctx, "token_exchange", ErrTokenExchange(msgExchangeFailed))
		return CallbackResult{Message: msgExchangeFailed}
	}
	if token.AccessToken == "" {
		m.failCallback(ctx, "no_access_token", ErrTokenExchange(msgNoAccessToken))
		return CallbackResult{Message: msgNoAccessToken}
	}

	userinfoStart := m.now()
	profile, err := m.provider.UserInfo(ctx, token.AccessToken)
	if m.inst != nil {
		m.inst.Metrics().RecordProviderRequest(ctx, "userinfo", m.now().Sub(userinfoStart))
	}
	if err != nil {
		m.logger.Error("Failed to retrieve user profile", "error", err)
		m.failCallback(ctx, "profile_fetch", ErrProfileFetch(msgProfileFailed))
		return CallbackResult{Message: msgProfileFailed}
	}

	// Directory sync failures must not lock the user out; the session
	// degrades to authenticated-but-unsynced
	if m.directory != nil {
		if _, err := m.directory.Upsert(ctx, profile); err != nil {
			m.logger.Warn("Directory sync failed", "error", err)
			if m.inst != nil {
				m.inst.Metrics().RecordDirectorySyncFailure(ctx)
			}
		}
	}

	sess.Authenticated = true
	sess.Profile = profile
	sess.AccessToken = token.AccessToken
	sess.TokenExpiresAt = m.tokenExpiry(token)

	if m.inst != nil {
		m.inst.Metrics().RecordLoginSucceeded(ctx)
	}
	m.logger.Info("User authenticated", "email", profile.Email)

	return CallbackResult{OK: true, Message: msgSuccess}
}

// IsAuthenticated reports whether the session still holds a valid login.
// Token expiry and the directory active flag are evaluated on every call;
// there is no background sweep. A failed check clears the session.
func (m *Manager) IsAuthenticated(ctx context.Context, sess *Session) bool {
	if sess == nil || !sess.Authenticated {
		return false
	}

	if !sess.TokenExpiresAt.IsZero() && m.now().After(sess.TokenExpiresAt) {
		m.logger.Info("Token expired, logging out")
		m.clearSession(sess)
		return false
	}

	if m.directory != nil && sess.Profile != nil {
		user, err := m.directory.FindByProviderID(ctx, sess.Profile.Sub)
		if err == nil && !user.IsActive {
			m.logger.Warn("User is inactive", "email", sess.Profile.Email)
			m.clearSession(sess)
			return false
		}
	}

	return true
}

// Logout clears the session and returns the provider logout URL for the
// caller to redirect to.
func (m *Manager) Logout(sess *Session) string {
	m.clearSession(sess)
	m.logger.Info("User logged out")
	return m.provider.LogoutURL(m.cfg.CallbackURL)
}

// CheckRole reports whether the session's user holds requiredRole under the
// role hierarchy. Valid only for authenticated sessions. Users without a
// directory record fall back to the least-privilege user role: basic access
// is retained, elevated roles are denied.
func (m *Manager) CheckRole(ctx context.Context, sess *Session, requiredRole string) bool {
	if !m.IsAuthenticated(ctx, sess) {
		return false
	}

	role := directory.RoleUser
	if m.directory != nil && sess.Profile != nil {
		if user, err := m.directory.FindByProviderID(ctx, sess.Profile.Sub); err == nil && user.Role != "" {
			role = user.Role
		}
	}

	return RoleAllows(role, requiredRole)
}

// tokenExpiry fixes the session expiry from the token response. The oauth2
// package derives Expiry from expires_in; when the provider omits it, the
// configured fallback lifetime applies.
func (m *Manager) tokenExpiry(token *oauth2.Token) time.Time {
	if !token.Expiry.IsZero() {
		return token.Expiry
	}
	return m.now().Add(m.cfg.SessionLifetime)
}

func (m *Manager) failCallback(ctx context.Context, reason string, err *AuthError) {
	m.logger.Error("Callback rejected", "reason", reason, "error", err)
	if m.inst != nil {
		m.inst.Metrics().RecordLoginFailed(ctx, reason)
	}
}

func (m *Manager) clearSession(sess *Session) {
	if sess == nil {
		return
	}
	*sess = Session{}
}

// generateState creates the random CSRF state token for a login attempt
func generateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
