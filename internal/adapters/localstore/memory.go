package localstore

import (
	"context"
	"errors"
	"sync"

	"github.com/target/mmk-console/internal/ports"
)

var (
	_ ports.TokenStore  = (*MemoryTokenStore)(nil)
	_ ports.IntentStore = (*MemoryIntentStore)(nil)
)

// MemoryTokenStore keeps the token in process memory. Safe for concurrent use.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore { return &MemoryTokenStore{} }

func (s *MemoryTokenStore) Get(_ context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != "", nil
}

func (s *MemoryTokenStore) Set(_ context.Context, token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}

// MemoryIntentStore is session-scoped intent storage: it lives as long as the process.
type MemoryIntentStore struct {
	mu   sync.Mutex
	path string
}

// NewMemoryIntentStore creates an empty in-memory intent store.
func NewMemoryIntentStore() *MemoryIntentStore { return &MemoryIntentStore{} }

func (s *MemoryIntentStore) Save(_ context.Context, path string) error {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
	return nil
}

// Take returns the stored path and clears it.
func (s *MemoryIntentStore) Take(_ context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.path
	s.path = ""
	return p, p != "", nil
}
