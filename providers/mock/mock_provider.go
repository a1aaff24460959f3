// Package mock provides a mock implementation of the Provider interface for testing.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/opsboard/auth/providers"
)

// MockProvider is a mock implementation of the Provider interface for testing
type MockProvider struct {
	// NameFunc is called when Name() is invoked
	NameFunc func() string

	// AuthorizationURLFunc is called when AuthorizationURL() is invoked
	AuthorizationURLFunc func(state string, codeChallenge string) string

	// ExchangeCodeFunc is called when ExchangeCode() is invoked
	ExchangeCodeFunc func(ctx context.Context, code string, codeVerifier string) (*oauth2.Token, error)

	// UserInfoFunc is called when UserInfo() is invoked
	UserInfoFunc func(ctx context.Context, accessToken string) (*providers.UserInfo, error)

	// LogoutURLFunc is called when LogoutURL() is invoked
	LogoutURLFunc func(returnTo string) string

	// CallCounts tracks how many times each method was called
	CallCounts map[string]int

	// mu protects CallCounts from concurrent access
	mu sync.RWMutex
}

// NewMockProvider creates a new mock provider with default implementations
func NewMockProvider() *MockProvider {
	return &MockProvider{
		CallCounts: make(map[string]int),
		NameFunc: func() string {
			return "mock"
		},
		AuthorizationURLFunc: func(state string, codeChallenge string) string {
			return fmt.Sprintf("https://mock.example.com/authorize?state=%s&code_challenge=%s&code_challenge_method=S256", state, codeChallenge)
		},
		ExchangeCodeFunc: func(ctx context.Context, code string, codeVerifier string) (*oauth2.Token, error) {
			return &oauth2.Token{
				AccessToken: "mock-access-token",
				TokenType:   "Bearer",
				Expiry:      time.Now().Add(time.Hour),
			}, nil
		},
		UserInfoFunc: func(ctx context.Context, accessToken string) (*providers.UserInfo, error) {
			return &providers.UserInfo{
				Sub:           "mock|user-123",
				Email:         "mock@example.com",
				EmailVerified: true,
				Name:          "Mock User",
			}, nil
		},
		LogoutURLFunc: func(returnTo string) string {
			return "https://mock.example.com/v2/logout?returnTo=" + returnTo
		},
	}
}

// Name implements the Provider interface
func (m *MockProvider) Name() string {
	m.recordCall("Name")
	return m.NameFunc()
}

// AuthorizationURL implements the Provider interface
func (m *MockProvider) AuthorizationURL(state string, codeChallenge string) string {
	m.recordCall("AuthorizationURL")
	return m.AuthorizationURLFunc(state, codeChallenge)
}

// ExchangeCode implements the Provider interface
func (m *MockProvider) ExchangeCode(ctx context.Context, code string, codeVerifier string) (*oauth2.Token, error) {
	m.recordCall("ExchangeCode")
	return m.ExchangeCodeFunc(ctx, code, codeVerifier)
}

// UserInfo implements the Provider interface
func (m *MockProvider) UserInfo(ctx context.Context, accessToken string) (*providers.UserInfo, error) {
	m.recordCall("UserInfo")
	return m.UserInfoFunc(ctx, accessToken)
}

// LogoutURL implements the Provider interface
func (m *MockProvider) LogoutURL(returnTo string) string {
	m.recordCall("LogoutURL")
	return m.LogoutURLFunc(returnTo)
}

// CallCount returns how many times the named method was called
func (m *MockProvider) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CallCounts[method]
}

func (m *MockProvider) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[method]++
}

// Compile-time interface check
var _ providers.Provider = (*MockProvider)(nil)
