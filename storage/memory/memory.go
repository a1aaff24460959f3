// Package memory provides an in-memory FlowStore implementation. It is
// suitable for development, testing, and single-process deployments; use the
// redis store when callbacks may land on a different worker.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opsboard/auth/storage"
)

// Store is an in-memory FlowStore guarded by a single mutex.
type Store struct {
	mu      sync.Mutex
	entries map[string]*storage.FlowState

	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// Compile-time interface check
var _ storage.FlowStore = (*Store)(nil)

// New creates a new in-memory flow store with the default TTL
func New() *Store {
	return NewWithTTL(storage.FlowTTL)
}

// NewWithTTL creates a new in-memory flow store with a custom TTL.
// If ttl is 0 or negative, the default flow TTL is used.
func NewWithTTL(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = storage.FlowTTL
	}
	return &Store{
		entries: make(map[string]*storage.FlowState),
		ttl:     ttl,
		logger:  slog.Default(),
		now:     time.Now,
	}
}

// SetLogger sets the logger used for store events
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Put inserts or overwrites the entry for state, pruning expired entries first
func (s *Store) Put(ctx context.Context, state, codeVerifier string) error {
	if state == "" {
		return fmt.Errorf("state is required")
	}
	if codeVerifier == "" {
		return fmt.Errorf("code verifier is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if removed := s.pruneLocked(now); removed > 0 {
		s.logger.Debug("Pruned expired flow states", "count", removed)
	}

	s.entries[state] = &storage.FlowState{
		State:        state,
		CodeVerifier: codeVerifier,
		CreatedAt:    now,
	}
	return nil
}

// GetAndConsume atomically removes and returns the verifier for state
func (s *Store) GetAndConsume(ctx context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[state]
	if !ok {
		return "", storage.ErrStateNotFound
	}

	// Removed regardless of outcome: a state token is single-use
	delete(s.entries, state)

	if s.now().Sub(entry.CreatedAt) > s.ttl {
		return "", storage.ErrStateExpired
	}
	return entry.CodeVerifier, nil
}

// Prune removes all expired entries
func (s *Store) Prune(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.now()), nil
}

// Len returns the number of stored entries, for size gauges
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) pruneLocked(now time.Time) int {
	removed := 0
	for state, entry := range s.entries {
		if now.Sub(entry.CreatedAt) > s.ttl {
			delete(s.entries, state)
			removed++
		}
	}
	return removed
}
