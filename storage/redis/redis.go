// Package redis provides a FlowStore backed by a shared Redis instance so
// the provider callback can be served by any worker process. Entries carry a
// server-side TTL; Redis itself garbage-collects abandoned login attempts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opsboard/auth/storage"
)

// keyPrefix namespaces flow-state keys in a shared Redis instance
const keyPrefix = "auth:flow:"

// Store is a Redis-backed FlowStore.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

// Compile-time interface check
var _ storage.FlowStore = (*Store)(nil)

// flowJSON is the wire form of a flow-state entry
type flowJSON struct {
	CodeVerifier string `json:"code_verifier"`
	CreatedAt    int64  `json:"created_at"` // unix milliseconds
}

// New creates a new Redis flow store with the default TTL
func New(client redis.UniversalClient) *Store {
	return NewWithTTL(client, storage.FlowTTL)
}

// NewWithTTL creates a new Redis flow store with a custom TTL.
// If ttl is 0 or negative, the default flow TTL is used.
func NewWithTTL(client redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = storage.FlowTTL
	}
	return &Store{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Put inserts or overwrites the entry for state. The key TTL bounds storage
// growth; no explicit prune pass is needed on write.
func (s *Store) Put(ctx context.Context, state, codeVerifier string) error {
	if state == "" {
		return fmt.Errorf("state is required")
	}
	if codeVerifier == "" {
		return fmt.Errorf("code verifier is required")
	}

	data, err := json.Marshal(flowJSON{
		CodeVerifier: codeVerifier,
		CreatedAt:    s.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal flow state: %w", err)
	}

	if err := s.client.Set(ctx, s.key(state), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save flow state: %w", err)
	}
	return nil
}

// GetAndConsume atomically removes and returns the verifier for state.
// GETDEL makes lookup and removal a single server-side operation, so no two
// callbacks can consume the same state.
func (s *Store) GetAndConsume(ctx context.Context, state string) (string, error) {
	data, err := s.client.GetDel(ctx, s.key(state)).Result()
	if errors.Is(err, redis.Nil) {
		// Redis expires abandoned entries itself, so an expired state is
		// indistinguishable from an unknown one once the TTL fires.
		return "", storage.ErrStateNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume flow state: %w", err)
	}

	var entry flowJSON
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return "", fmt.Errorf("failed to unmarshal flow state: %w", err)
	}

	if s.now().Sub(time.UnixMilli(entry.CreatedAt)) > s.ttl {
		return "", storage.ErrStateExpired
	}
	return entry.CodeVerifier, nil
}

// Prune is a no-op: key TTLs expire entries server-side.
func (s *Store) Prune(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *Store) key(state string) string {
	return keyPrefix + state
}
