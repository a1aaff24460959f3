package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/opsboard/auth/directory"
	"github.com/opsboard/auth/providers"
	providermock "github.com/opsboard/auth/providers/mock"
	"github.com/opsboard/auth/storage/memory"
	storagemock "github.com/opsboard/auth/storage/mock"
)

// fakeUserStore is an in-memory directory.UserStore for session tests
type fakeUserStore struct {
	mu      sync.Mutex
	users   map[string]*directory.LocalUser
	findErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*directory.LocalUser)}
}

func (f *fakeUserStore) FindByProviderID(ctx context.Context, auth0ID string) (*directory.LocalUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	user, ok := f.users[auth0ID]
	if !ok {
		return nil, directory.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserStore) Insert(ctx context.Context, user *directory.LocalUser) (*directory.LocalUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *user
	f.users[user.Auth0ID] = &copied
	return user, nil
}

func (f *fakeUserStore) Update(ctx context.Context, user *directory.LocalUser) (*directory.LocalUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *user
	f.users[user.Auth0ID] = &copied
	return user, nil
}

// testClock is a mutable time source shared between manager and stores
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type managerFixture struct {
	manager  *Manager
	provider *providermock.MockProvider
	flows    *memory.Store
	users    *fakeUserStore
	clock    *testClock
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()

	clock := newTestClock()
	provider := providermock.NewMockProvider()
	flows := memory.New()
	flows.SetClock(clock.Now)
	users := newFakeUserStore()

	svc := directory.NewService(users)
	svc.SetClock(clock.Now)

	manager, err := NewManager(validConfig(), provider, flows,
		WithDirectory(svc),
		WithClock(clock.Now),
	)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	return &managerFixture{
		manager:  manager,
		provider: provider,
		flows:    flows,
		users:    users,
		clock:    clock,
	}
}

// loginState starts a login flow and returns the state parameter embedded in
// the authorization URL
func loginState(t *testing.T, f *managerFixture) string {
	t.Helper()
	authURL, err := f.manager.Login(context.Background())
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("authorization URL is not parseable: %v", err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatal("authorization URL has no state parameter")
	}
	return state
}

func TestNewManager_InvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.ClientSecret = ""

	_, err := NewManager(cfg, providermock.NewMockProvider(), memory.New())
	if err == nil {
		t.Fatal("NewManager() expected error, got nil")
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Code != ErrorCodeConfiguration {
		t.Errorf("error = %v, want configuration AuthError", err)
	}
}

func TestNewManager_MissingCollaborators(t *testing.T) {
	if _, err := NewManager(validConfig(), nil, memory.New()); err == nil {
		t.Error("NewManager() with nil provider expected error")
	}
	if _, err := NewManager(validConfig(), providermock.NewMockProvider(), nil); err == nil {
		t.Error("NewManager() with nil flow store expected error")
	}
}

func TestLogin_StoresFlowState(t *testing.T) {
	flows := storagemock.NewMockFlowStore()
	manager, err := NewManager(validConfig(), providermock.NewMockProvider(), flows)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	authURL, err := manager.Login(context.Background())
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if authURL == "" {
		t.Fatal("Login() returned empty URL")
	}
	if got := flows.CallCount("Put"); got != 1 {
		t.Errorf("flow store Put calls = %d, want 1", got)
	}

	// The stored verifier must be consumable under the URL's state
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("authorization URL is not parseable: %v", err)
	}
	state := u.Query().Get("state")
	verifier, err := flows.GetAndConsume(context.Background(), state)
	if err != nil {
		t.Fatalf("GetAndConsume(%q) error = %v", state, err)
	}
	if len(verifier) < 43 {
		t.Errorf("stored verifier length = %d, want >= 43", len(verifier))
	}
}

func TestLogin_IndependentAttempts(t *testing.T) {
	f := newManagerFixture(t)

	// Two tabs start logins; neither invalidates the other
	stateA := loginState(t, f)
	stateB := loginState(t, f)
	if stateA == stateB {
		t.Fatal("two login attempts share a state token")
	}

	sess := &Session{}
	if res := f.manager.HandleCallback(context.Background(), sess, "code", stateA); !res.OK {
		t.Errorf("callback for first attempt failed: %s", res.Message)
	}
	sess = &Session{}
	if res := f.manager.HandleCallback(context.Background(), sess, "code", stateB); !res.OK {
		t.Errorf("callback for second attempt failed: %s", res.Message)
	}
}

func TestHandleCallback_UnknownState(t *testing.T) {
	f := newManagerFixture(t)
	sess := &Session{}

	res := f.manager.HandleCallback(context.Background(), sess, "code", "never-stored")

	if res.OK {
		t.Error("callback with unknown state succeeded")
	}
	if res.Message != "Invalid or expired state parameter" {
		t.Errorf("Message = %q, want %q", res.Message, "Invalid or expired state parameter")
	}
	if sess.Authenticated {
		t.Error("session authenticated after rejected callback")
	}
	if got := f.provider.CallCount("ExchangeCode"); got != 0 {
		t.Errorf("ExchangeCode called %d times for rejected state, want 0", got)
	}
}

func TestHandleCallback_ReusedState(t *testing.T) {
	f := newManagerFixture(t)
	state := loginState(t, f)

	sess := &Session{}
	if res := f.manager.HandleCallback(context.Background(), sess, "code", state); !res.OK {
		t.Fatalf("first callback failed: %s", res.Message)
	}

	// Replaying the same state must fail: single-use nonce
	replay := &Session{}
	res := f.manager.HandleCallback(context.Background(), replay, "code", state)
	if res.OK {
		t.Error("replayed state accepted")
	}
	if res.Message != "Invalid or expired state parameter" {
		t.Errorf("Message = %q, want %q", res.Message, "Invalid or expired state parameter")
	}
}

func TestHandleCallback_ExpiredState(t *testing.T) {
	f := newManagerFixture(t)
	state := loginState(t, f)

	f.clock.Advance(601 * time.Second)

	sess := &Session{}
	res := f.manager.HandleCallback(context.Background(), sess, "code", state)
	if res.OK {
		t.Error("expired state accepted")
	}
	if !strings.Contains(res.Message, "expired") {
		t.Errorf("Message = %q, want expiry hint", res.Message)
	}
	if sess.Authenticated {
		t.Error("session authenticated after expired callback")
	}
}

func TestHandleCallback_ExchangeFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.provider.ExchangeCodeFunc = func(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
		return nil, &providers.NetworkError{Op: "token exchange", Err: errors.New("connection refused")}
	}
	state := loginState(t, f)

	sess := &Session{}
	res := f.manager.HandleCallback(context.Background(), sess, "code", state)
	if res.OK {
		t.Error("callback succeeded despite exchange failure")
	}
	if res.Message != "Failed to exchange authorization code for token" {
		t.Errorf("Message = %q", res.Message)
	}
	if sess.Authenticated {
		t.Error("session authenticated after exchange failure")
	}
}

func TestHandleCallback_MissingAccessToken(t *testing.T) {
	f := newManagerFixture(t)
	f.provider.ExchangeCodeFunc = func(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
		return &oauth2.Token{}, nil
	}
	state := loginState(t, f)

	sess := &Session{}
	res := f.manager.HandleCallback(context.Background(), sess, "code", state)
	if res.OK {
		t.Error("callback succeeded without access token")
	}
	if res.Message != "No access token in response" {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestHandleCallback_ProfileFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.provider.UserInfoFunc = func(ctx context.Context, accessToken string) (*providers.UserInfo, error) {
		return nil, &providers.NetworkError{Op: "userinfo request", Err: errors.New("status 502")}
	}
	state := loginState(t, f)

	sess := &Session{}
	res := f.manager.HandleCallback(context.Background(), sess, "code", state)
	if res.OK {
		t.Error("callback succeeded despite profile failure")
	}
	if res.Message != "Failed to retrieve user profile" {
		t.Errorf("Message = %q", res.Message)
	}
	if sess.Authenticated {
		t.Error("session authenticated after profile failure")
	}
}

func TestHandleCallback_DirectorySyncFailureIsNonFatal(t *testing.T) {
	f := newManagerFixture(t)
	f.users.findErr = errors.New("store unavailable")
	state := loginState(t, f)

	sess := &Session{}
	res := f.manager.HandleCallback(context.Background(), sess, "code", state)
	if !res.OK {
		t.Fatalf("callback failed on directory outage: %s", res.Message)
	}
	if !sess.Authenticated {
		t.Error("session not authenticated despite non-fatal sync failure")
	}
}

func TestHandleCallback_SyncsUserToDirectory(t *testing.T) {
	f := newManagerFixture(t)
	state := loginState(t, f)

	sess := &Session{}
	if res := f.manager.HandleCallback(context.Background(), sess, "code", state); !res.OK {
		t.Fatalf("callback failed: %s", res.Message)
	}

	user, err := f.users.FindByProviderID(context.Background(), "mock|user-123")
	if err != nil {
		t.Fatalf("user not synced: %v", err)
	}
	if user.Role != directory.RoleUser {
		t.Errorf("Role = %q, want %q", user.Role, directory.RoleUser)
	}
	if !user.IsActive {
		t.Error("IsActive = false for new user")
	}
}

func TestSessionLifecycle_TokenExpiry(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	// Provider grants a token valid for 100 seconds
	f.provider.ExchangeCodeFunc = func(_ context.Context, code, codeVerifier string) (*oauth2.Token, error) {
		return &oauth2.Token{
			AccessToken: "tok",
			TokenType:   "Bearer",
			Expiry:      f.clock.Now().Add(100 * time.Second),
		}, nil
	}
	f.provider.UserInfoFunc = func(_ context.Context, accessToken string) (*providers.UserInfo, error) {
		return &providers.UserInfo{Sub: "auth0|1", Email: "a@x.com"}, nil
	}

	state := loginState(t, f)
	sess := &Session{}
	if res := f.manager.HandleCallback(ctx, sess, "ABC", state); !res.OK {
		t.Fatalf("callback failed: %s", res.Message)
	}

	if !f.manager.IsAuthenticated(ctx, sess) {
		t.Fatal("IsAuthenticated() = false immediately after login")
	}

	f.clock.Advance(99 * time.Second)
	if !f.manager.IsAuthenticated(ctx, sess) {
		t.Error("IsAuthenticated() = false before expiry")
	}

	f.clock.Advance(2 * time.Second)
	if f.manager.IsAuthenticated(ctx, sess) {
		t.Error("IsAuthenticated() = true after expiry")
	}

	// Expiry clears the session entirely
	if sess.Authenticated || sess.AccessToken != "" || sess.Profile != nil {
		t.Error("session fields not cleared on expiry")
	}
}

func TestSessionLifecycle_FallbackLifetime(t *testing.T) {
	f := newManagerFixture(t)

	// Provider omits expires_in; the configured fallback lifetime applies
	f.provider.ExchangeCodeFunc = func(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "tok", TokenType: "Bearer"}, nil
	}

	state := loginState(t, f)
	sess := &Session{}
	if res := f.manager.HandleCallback(context.Background(), sess, "code", state); !res.OK {
		t.Fatalf("callback failed: %s", res.Message)
	}

	want := f.clock.Now().Add(time.Hour)
	if !sess.TokenExpiresAt.Equal(want) {
		t.Errorf("TokenExpiresAt = %v, want fallback %v", sess.TokenExpiresAt, want)
	}
}

func TestIsAuthenticated_InactiveUser(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	state := loginState(t, f)
	sess := &Session{}
	if res := f.manager.HandleCallback(ctx, sess, "code", state); !res.OK {
		t.Fatalf("callback failed: %s", res.Message)
	}

	// Administrator deactivates the account mid-session
	f.users.mu.Lock()
	f.users.users["mock|user-123"].IsActive = false
	f.users.mu.Unlock()

	if f.manager.IsAuthenticated(ctx, sess) {
		t.Error("IsAuthenticated() = true for deactivated user")
	}
	if sess.Authenticated {
		t.Error("session not cleared for deactivated user")
	}
}

func TestIsAuthenticated_NilAndAnonymous(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	if f.manager.IsAuthenticated(ctx, nil) {
		t.Error("IsAuthenticated(nil) = true")
	}
	if f.manager.IsAuthenticated(ctx, &Session{}) {
		t.Error("IsAuthenticated() = true for anonymous session")
	}
}

func TestLogout(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	state := loginState(t, f)
	sess := &Session{}
	if res := f.manager.HandleCallback(ctx, sess, "code", state); !res.OK {
		t.Fatalf("callback failed: %s", res.Message)
	}

	logoutURL := f.manager.Logout(sess)
	if logoutURL == "" {
		t.Error("Logout() returned empty URL")
	}
	if sess.Authenticated || sess.AccessToken != "" || sess.Profile != nil || !sess.TokenExpiresAt.IsZero() {
		t.Error("session fields not cleared on logout")
	}
	if f.manager.IsAuthenticated(ctx, sess) {
		t.Error("IsAuthenticated() = true after logout")
	}
}

func TestCheckRole(t *testing.T) {
	tests := []struct {
		name         string
		role         string
		requiredRole string
		want         bool
	}{
		{"admin may view user pages", directory.RoleAdmin, directory.RoleUser, true},
		{"admin may view admin pages", directory.RoleAdmin, directory.RoleAdmin, true},
		{"analyst may view analyst pages", directory.RoleAnalyst, directory.RoleAnalyst, true},
		{"analyst may not view admin pages", directory.RoleAnalyst, directory.RoleAdmin, false},
		{"user may not view admin pages", directory.RoleUser, directory.RoleAdmin, false},
		{"user may view user pages", directory.RoleUser, directory.RoleUser, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newManagerFixture(t)
			ctx := context.Background()

			state := loginState(t, f)
			sess := &Session{}
			if res := f.manager.HandleCallback(ctx, sess, "code", state); !res.OK {
				t.Fatalf("callback failed: %s", res.Message)
			}

			f.users.mu.Lock()
			f.users.users["mock|user-123"].Role = tt.role
			f.users.mu.Unlock()

			if got := f.manager.CheckRole(ctx, sess, tt.requiredRole); got != tt.want {
				t.Errorf("CheckRole(%q) with role %q = %v, want %v", tt.requiredRole, tt.role, got, tt.want)
			}
		})
	}
}

func TestCheckRole_UnsyncedUser(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	state := loginState(t, f)
	sess := &Session{}
	if res := f.manager.HandleCallback(ctx, sess, "code", state); !res.OK {
		t.Fatalf("callback failed: %s", res.Message)
	}

	// Record vanishes (sync failed or store wiped): least privilege applies
	f.users.mu.Lock()
	delete(f.users.users, "mock|user-123")
	f.users.mu.Unlock()

	if !f.manager.CheckRole(ctx, sess, directory.RoleUser) {
		t.Error("unsynced user denied basic access")
	}
	if f.manager.CheckRole(ctx, sess, directory.RoleAnalyst) {
		t.Error("unsynced user granted analyst access")
	}
	if f.manager.CheckRole(ctx, sess, directory.RoleAdmin) {
		t.Error("unsynced user granted admin access")
	}
}

func TestCheckRole_RequiresAuthentication(t *testing.T) {
	f := newManagerFixture(t)

	if f.manager.CheckRole(context.Background(), &Session{}, directory.RoleUser) {
		t.Error("CheckRole() = true for anonymous session")
	}
}
