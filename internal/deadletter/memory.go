package deadletter

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps dead letters in a map, for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Insert(_ context.Context, e Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[e.DeliveryID]; exists {
		return false, nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.entries[e.DeliveryID] = e
	return true, nil
}

func (s *MemoryStore) List(_ context.Context, tenantID string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].DeliveryID < out[j].DeliveryID
	})
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, deliveryID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[deliveryID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) MarkReplayed(_ context.Context, deliveryID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[deliveryID]
	if !ok {
		return ErrNotFound
	}
	e.ReplayedAt = &at
	s.entries[deliveryID] = e
	return nil
}
