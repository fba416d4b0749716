package endpoint

import (
	"context"
	"errors"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var (
	ErrNotFound = errors.New("endpoint not found")
	ErrInactive = errors.New("endpoint inactive")
)

type Endpoint struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenantId"`
	URL          string     `json:"url"`
	Secret       string     `json:"-"` // never serialized
	Description  string     `json:"description,omitempty"`
	EventTypes   []string   `json:"subscribedEventTypes"`
	Status       string     `json:"status"`
	TotalFailed  int64      `json:"totalFailed"`
	LastFailedAt *time.Time `json:"lastFailedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (e Endpoint) Active() bool { return e.Status == StatusActive }

// Store resolves endpoints for dispatch and execution. Administrative
// create/update/delete happens in the main application against the same
// tables; this engine only reads endpoints and records delivery failures.
type Store interface {
	// FindSubscribers returns the active endpoints of the tenant subscribed
	// to the event type.
	FindSubscribers(ctx context.Context, tenantID, eventType string) ([]Endpoint, error)

	// Get re-resolves a single endpoint regardless of status. Returns
	// ErrNotFound when the endpoint no longer exists.
	Get(ctx context.Context, endpointID string) (Endpoint, error)

	// RecordFailure increments the endpoint failure counter and stamps the
	// failure time. When disableAfter > 0 and the new count reaches it, the
	// endpoint is flipped inactive. Returns the new count and whether this
	// call disabled the endpoint.
	RecordFailure(ctx context.Context, endpointID string, at time.Time, disableAfter int) (totalFailed int64, disabled bool, err error)
}
