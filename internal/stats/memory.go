package stats

import (
	"context"
	"strings"
	"sync"
)

var _ Collector = (*MemoryCollector)(nil)

// MemoryCollector mirrors the Redis key scheme in a mutex-guarded map.
// Used by unit tests and local runs without Redis.
type MemoryCollector struct {
	mu     sync.Mutex
	counts map[string]map[string]int64 // key -> field -> count
}

func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{counts: make(map[string]map[string]int64)}
}

func (c *MemoryCollector) RecordDispatched(_ context.Context, tenantID, endpointID string) {
	c.incr(tenantID, endpointID, fieldTotal)
}

func (c *MemoryCollector) RecordOutcome(_ context.Context, tenantID, endpointID, outcome string) {
	field := fieldFailed
	if outcome == OutcomeSuccess {
		field = fieldSuccessful
	}
	c.incr(tenantID, endpointID, field)
}

func (c *MemoryCollector) RecordDiscarded(_ context.Context, tenantID, endpointID string) {
	c.incr(tenantID, endpointID, fieldDiscarded)
}

func (c *MemoryCollector) incr(tenantID, endpointID, field string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bump(tenantKey(tenantID), field)
	if endpointID != "" {
		c.bump(endpointKey(tenantID, endpointID), field)
	}
}

func (c *MemoryCollector) bump(key, field string) {
	m, ok := c.counts[key]
	if !ok {
		m = make(map[string]int64)
		c.counts[key] = m
	}
	m[field]++
}

func (c *MemoryCollector) Stats(_ context.Context, tenantID, endpointID string) (Stats, error) {
	key := tenantKey(tenantID)
	if endpointID != "" {
		key = endpointKey(tenantID, endpointID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fields := c.counts[key]
	s := Stats{
		Total:      fields[fieldTotal],
		Successful: fields[fieldSuccessful],
		Failed:     fields[fieldFailed],
		Discarded:  fields[fieldDiscarded],
	}
	s.Finalize()
	return s, nil
}

func (c *MemoryCollector) Reset(_ context.Context, tenantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.counts, tenantKey(tenantID))
	prefix := tenantKey(tenantID) + ":"
	for key := range c.counts {
		if strings.HasPrefix(key, prefix) {
			delete(c.counts, key)
		}
	}
	return nil
}
