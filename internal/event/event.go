package event

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TestType marks synthetic events produced by the test-delivery surface.
const TestType = "endpoint.test"

type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"` // e.g. "sale.approved", "campaign.created"
	TenantID  string            `json:"tenantId"`
	Data      map[string]any    `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Validate checks the fields every delivery depends on. ID and Timestamp
// may be empty; Normalize fills them at dispatch.
func (e Event) Validate() error {
	if e.Type == "" {
		return errors.New("event type is required")
	}
	if e.TenantID == "" {
		return errors.New("event tenantId is required")
	}
	return nil
}

// Normalize assigns an ID and timestamp when the producer did not set them.
func (e *Event) Normalize() {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
}

// NewTest builds the synthetic event sent by manual endpoint tests.
func NewTest(tenantID, endpointID string) Event {
	return Event{
		ID:       uuid.NewString(),
		Type:     TestType,
		TenantID: tenantID,
		Data: map[string]any{
			"endpointId": endpointID,
			"message":    "test delivery from utmify-hooks",
		},
		Timestamp: time.Now().UTC(),
	}
}
