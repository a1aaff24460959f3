package auth

import "fmt"

// Authentication error codes as constants
const (
	ErrorCodeConfiguration = "configuration_error"
	ErrorCodeInvalidState  = "invalid_state"
	ErrorCodeNetwork       = "network_error"
	ErrorCodeTokenExchange = "token_exchange_failed"
	ErrorCodeProfileFetch  = "profile_fetch_failed"
	ErrorCodeValidation    = "validation_error"
	ErrorCodeDirectorySync = "directory_sync_failed"
)

// AuthError represents a typed authentication failure. Descriptions are
// human-readable and safe to surface; they never carry provider secrets.
type AuthError struct {
	Code        string // Error code (e.g., "invalid_state", "network_error")
	Description string // Human-readable error description
}

// Error implements the error interface
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewAuthError creates a new authentication error
func NewAuthError(code, description string) *AuthError {
	return &AuthError{
		Code:        code,
		Description: description,
	}
}

// Common authentication errors as reusable constructors
var (
	// ErrConfiguration indicates a required setting is missing; no login
	// flow may start until it is fixed
	ErrConfiguration = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeConfiguration, desc)
	}

	// ErrInvalidState indicates an unknown, expired, or reused state
	// parameter; the user must restart login
	ErrInvalidState = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeInvalidState, desc)
	}

	// ErrNetwork indicates a transport failure or non-2xx response from the
	// provider; the user may retry
	ErrNetwork = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeNetwork, desc)
	}

	// ErrTokenExchange indicates the provider rejected the code or verifier
	ErrTokenExchange = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeTokenExchange, desc)
	}

	// ErrProfileFetch indicates the token was valid but the profile fetch failed
	ErrProfileFetch = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeProfileFetch, desc)
	}

	// ErrValidation indicates the provider returned no stable identity
	ErrValidation = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeValidation, desc)
	}

	// ErrDirectorySync indicates a non-fatal directory failure; it never
	// blocks authentication
	ErrDirectorySync = func(desc string) *AuthError {
		return NewAuthError(ErrorCodeDirectorySync, desc)
	}
)
