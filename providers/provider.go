// Package providers defines the interface to OAuth identity providers and the
// profile claims they return. The session manager only depends on this
// interface; concrete implementations live in subpackages.
package providers

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// Provider defines the operations the authentication core needs from an
// identity provider. No operation mutates local state; all side effects are
// outbound HTTP calls.
type Provider interface {
	// Name returns the provider name (e.g., "auth0")
	Name() string

	// AuthorizationURL builds the provider authorization endpoint URL for a
	// login attempt. state is the CSRF token, codeChallenge the S256 PKCE
	// challenge. Pure; no network call.
	AuthorizationURL(state string, codeChallenge string) string

	// ExchangeCode exchanges an authorization code for tokens, presenting the
	// PKCE code verifier. Transport failures and non-2xx provider responses
	// are returned as *NetworkError; the caller decides whether to retry.
	ExchangeCode(ctx context.Context, code string, codeVerifier string) (*oauth2.Token, error)

	// UserInfo fetches profile claims from the userinfo endpoint with a
	// bearer token. Failures are returned as *NetworkError.
	UserInfo(ctx context.Context, accessToken string) (*UserInfo, error)

	// LogoutURL builds the provider logout URL redirecting back to returnTo.
	// Pure; no network call.
	LogoutURL(returnTo string) string
}

// UserInfo represents profile claims returned by a provider. Sub is the only
// field guaranteed non-empty; everything else needs defaulting downstream.
type UserInfo struct {
	// Sub is the stable provider identity identifier (OIDC subject)
	Sub string

	// Email is the user's email address, if released
	Email string

	// EmailVerified indicates if the email is verified
	EmailVerified bool

	// Name is the user's full name
	Name string

	// Nickname is the provider nickname claim
	Nickname string

	// GivenName is the user's first name
	GivenName string

	// PreferredUsername is the OIDC preferred_username claim, used as an
	// email fallback by some tenants
	PreferredUsername string

	// Picture is the URL of the user's profile picture
	Picture string
}

// NetworkError wraps a transport failure or non-2xx response from the
// provider. It marks the failure as retryable from the user's perspective.
type NetworkError struct {
	// Op names the failed operation (e.g., "token exchange")
	Op string

	// Err is the underlying error
	Err error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *NetworkError) Unwrap() error {
	return e.Err
}
