// Package mock provides a mock implementation of the FlowStore interface for testing.
package mock

import (
	"context"
	"sync"

	"github.com/opsboard/auth/storage"
)

// MockFlowStore is a mock implementation of the FlowStore interface for testing
type MockFlowStore struct {
	// PutFunc is called when Put() is invoked
	PutFunc func(ctx context.Context, state, codeVerifier string) error

	// GetAndConsumeFunc is called when GetAndConsume() is invoked
	GetAndConsumeFunc func(ctx context.Context, state string) (string, error)

	// PruneFunc is called when Prune() is invoked
	PruneFunc func(ctx context.Context) (int, error)

	// CallCounts tracks how many times each method was called
	CallCounts map[string]int

	// mu protects CallCounts from concurrent access
	mu sync.RWMutex
}

// NewMockFlowStore creates a new mock flow store backed by a plain map with
// no expiry. Override the Func fields to inject failures.
func NewMockFlowStore() *MockFlowStore {
	var storeMu sync.Mutex
	entries := make(map[string]string)

	return &MockFlowStore{
		CallCounts: make(map[string]int),
		PutFunc: func(ctx context.Context, state, codeVerifier string) error {
			storeMu.Lock()
			defer storeMu.Unlock()
			entries[state] = codeVerifier
			return nil
		},
		GetAndConsumeFunc: func(ctx context.Context, state string) (string, error) {
			storeMu.Lock()
			defer storeMu.Unlock()
			verifier, ok := entries[state]
			if !ok {
				return "", storage.ErrStateNotFound
			}
			delete(entries, state)
			return verifier, nil
		},
		PruneFunc: func(ctx context.Context) (int, error) {
			return 0, nil
		},
	}
}

// Put implements the FlowStore interface
func (m *MockFlowStore) Put(ctx context.Context, state, codeVerifier string) error {
	m.recordCall("Put")
	return m.PutFunc(ctx, state, codeVerifier)
}

// GetAndConsume implements the FlowStore interface
func (m *MockFlowStore) GetAndConsume(ctx context.Context, state string) (string, error) {
	m.recordCall("GetAndConsume")
	return m.GetAndConsumeFunc(ctx, state)
}

// Prune implements the FlowStore interface
func (m *MockFlowStore) Prune(ctx context.Context) (int, error) {
	m.recordCall("Prune")
	return m.PruneFunc(ctx)
}

// CallCount returns how many times the named method was called
func (m *MockFlowStore) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.CallCounts[method]
}

func (m *MockFlowStore) recordCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCounts[method]++
}

// Compile-time interface check
var _ storage.FlowStore = (*MockFlowStore)(nil)
