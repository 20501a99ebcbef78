package storage

import (
	"context"
	"sync"
)

// MemoryTokenStore keeps tokens in process memory. Used when no token
// bucket is configured and in tests.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryTokenStore creates an empty MemoryTokenStore
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]string)}
}

// GetToken returns the token stored for userID
func (m *MemoryTokenStore) GetToken(_ context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	token, ok := m.tokens[userID]
	if !ok {
		return "", ErrTokenNotFound
	}
	return token, nil
}

// SetToken stores token for userID
func (m *MemoryTokenStore) SetToken(_ context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID] = token
	return nil
}
