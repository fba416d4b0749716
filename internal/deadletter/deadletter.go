package deadletter

import (
	"context"
	"errors"
	"time"

	"github.com/EznRB/utmify-hooks/internal/event"
)

var ErrNotFound = errors.New("dead letter not found")

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Entry is one permanently failed delivery, keyed by the delivery id of the
// lineage that died.
type Entry struct {
	DeliveryID   string      `json:"deliveryId"`
	TenantID     string      `json:"tenantId"`
	EndpointID   string      `json:"endpointId"`
	Event        event.Event `json:"event"`
	FinalAttempt int         `json:"finalAttempt"`
	LastError    string      `json:"lastError"`
	Reason       string      `json:"reason"`
	FailedAt     time.Time   `json:"failedAt"`
	ReplayedAt   *time.Time  `json:"replayedAt,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Store persists dead letters. delivery_id is the primary key, so Insert
// reports whether this call actually created the row; redeliveries of the
// same terminal job come back false.
type Store interface {
	Insert(ctx context.Context, e Entry) (inserted bool, err error)

	// List returns the tenant's most recent entries, newest first.
	List(ctx context.Context, tenantID string, limit int) ([]Entry, error)

	// Get returns one entry by delivery id, ErrNotFound when absent.
	Get(ctx context.Context, deliveryID string) (Entry, error)

	// MarkReplayed stamps the entry with the replay time.
	MarkReplayed(ctx context.Context, deliveryID string, at time.Time) error
}

func clampLimit(limit int) int {
	if limit < 1 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
