// Package storage defines the interface for persisting in-flight login state
// across the authorization redirect. The callback may be served by a
// different process than the one that started the flow, so implementations
// range from an in-process map to a shared external cache.
package storage

import (
	"context"
	"errors"
	"time"
)

// FlowTTL is how long an unconsumed login attempt remains valid.
const FlowTTL = 600 * time.Second

var (
	// ErrStateNotFound indicates the state token is unknown or already consumed
	ErrStateNotFound = errors.New("flow state not found")

	// ErrStateExpired indicates the login attempt outlived the flow TTL
	ErrStateExpired = errors.New("flow state expired")
)

// FlowState is one in-flight login attempt, keyed by its CSRF state token.
type FlowState struct {
	// State is the random anti-forgery token returned by the provider callback
	State string

	// CodeVerifier is the PKCE verifier held until the code exchange
	CodeVerifier string

	// CreatedAt is when the login attempt started
	CreatedAt time.Time
}

// FlowStore persists flow state between the login redirect and the provider
// callback. Implementations must be safe for concurrent use by independent
// login and callback sequences.
type FlowStore interface {
	// Put inserts or overwrites the entry for state. Implementations prune
	// expired entries on every write to bound growth under load.
	Put(ctx context.Context, state, codeVerifier string) error

	// GetAndConsume atomically removes and returns the code verifier for
	// state. A state token is consumable at most once. Returns
	// ErrStateNotFound for unknown or already-consumed tokens and
	// ErrStateExpired for entries older than the flow TTL (which are
	// removed as well).
	GetAndConsume(ctx context.Context, state string) (string, error)

	// Prune removes all expired entries and reports how many were removed.
	Prune(ctx context.Context) (int, error)
}
