package endpoint

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps endpoints in a mutex-guarded map. Used by unit tests
// and local runs without Postgres.
type MemoryStore struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{endpoints: make(map[string]Endpoint)}
}

// Put inserts or replaces an endpoint.
func (s *MemoryStore) Put(e Endpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints[e.ID] = e
}

// Remove deletes an endpoint, simulating tenant-side deletion.
func (s *MemoryStore) Remove(endpointID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.endpoints, endpointID)
}

func (s *MemoryStore) FindSubscribers(_ context.Context, tenantID, eventType string) ([]Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Endpoint
	for _, e := range s.endpoints {
		if e.TenantID != tenantID || e.Status != StatusActive {
			continue
		}
		if !subscribed(e, eventType) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, endpointID string) (Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.endpoints[endpointID]
	if !ok {
		return Endpoint{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) RecordFailure(_ context.Context, endpointID string, at time.Time, disableAfter int) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.endpoints[endpointID]
	if !ok {
		return 0, false, ErrNotFound
	}

	wasActive := e.Status == StatusActive
	e.TotalFailed++
	t := at
	e.LastFailedAt = &t
	e.UpdatedAt = at
	if disableAfter > 0 && e.TotalFailed >= int64(disableAfter) {
		e.Status = StatusInactive
	}
	s.endpoints[endpointID] = e

	disabled := wasActive && e.Status == StatusInactive
	return e.TotalFailed, disabled, nil
}

func subscribed(e Endpoint, eventType string) bool {
	for _, t := range e.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}
