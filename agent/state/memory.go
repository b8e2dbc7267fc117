package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps sessions in process. Contexts are stored encoded so a
// caller mutating a loaded Context never changes the stored copy.
type MemoryStore struct {
	items *cache.Cache
}

// NewMemoryStore expires idle sessions after ttl; ttl <= 0 keeps them forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		return &MemoryStore{items: cache.New(cache.NoExpiration, 0)}
	}
	return &MemoryStore{items: cache.New(ttl, 2*ttl)}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) (*Context, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	raw, ok := m.items.Get(sessionID)
	if !ok {
		return nil, ErrStateNotFound
	}
	var c Context
	if err := json.Unmarshal(raw.([]byte), &c); err != nil {
		return nil, fmt.Errorf("unmarshal session context: %w", err)
	}
	return loaded(&c)
}

func (m *MemoryStore) Save(_ context.Context, c *Context) error {
	if err := prepareSave(c); err != nil {
		return err
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal session context: %w", err)
	}
	m.items.Set(c.SessionID, payload, cache.DefaultExpiration)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	m.items.Delete(sessionID)
	return nil
}

func (m *MemoryStore) Len() int {
	return m.items.ItemCount()
}
