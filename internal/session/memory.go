package session

import (
	"context"
	"sync"
	"time"

	"github.com/xenking/checkout-bridge/internal/domain/cart"
)

// MemoryStore is the in-process Store. Expiry is lazy: entries are only
// checked (and removed) on access, never swept in the background, so an
// abandoned session costs one map entry until its token is tried.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	cart      cart.Cart
	createdAt time.Time
}

// NewMemoryStore creates a MemoryStore with the given TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Create stores the cart under a fresh random token.
func (s *MemoryStore) Create(_ context.Context, c cart.Cart) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.entries[token] = memoryEntry{cart: c, createdAt: s.now()}
	s.mu.Unlock()

	return token, nil
}

// Consume looks up and unconditionally deletes the entry under one lock, so
// two concurrent calls for the same token cannot both succeed. An entry past
// its TTL is reported as expired rather than returned.
func (s *MemoryStore) Consume(_ context.Context, token string) (cart.Cart, error) {
	s.mu.Lock()
	e, ok := s.entries[token]
	if ok {
		delete(s.entries, token)
	}
	s.mu.Unlock()

	if !ok {
		return cart.Cart{}, ErrNotFound
	}
	if s.now().Sub(e.createdAt) > s.ttl {
		return cart.Cart{}, ErrExpired
	}
	return e.cart, nil
}

// Len reports the number of pending sessions. Used by health reporting.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
