package delivery

import (
	"time"

	"github.com/EznRB/utmify-hooks/internal/event"
)

const DLQType = "delivery.deadletter"

// DeadLetter is the audit envelope published on the dead-letter topic when a
// lineage exhausts its attempts.
type DeadLetter struct {
	Type         string      `json:"type"`    // "delivery.deadletter"
	Version      string      `json:"version"` // schema version
	DeliveryID   string      `json:"deliveryId"`
	TenantID     string      `json:"tenantId"`
	EndpointID   string      `json:"endpointId"`
	Event        event.Event `json:"event"`
	FinalAttempt int         `json:"finalAttempt"`
	Error        string      `json:"error"`
	Reason       string      `json:"reason"`   // classified failure reason
	FailedAt     string      `json:"failedAt"` // RFC3339 time the lineage died
}

func NewDeadLetter(d Delivery, lastErr, reason string) DeadLetter {
	return DeadLetter{
		Type:         DLQType,
		Version:      "v1",
		DeliveryID:   d.DeliveryID,
		TenantID:     d.TenantID,
		EndpointID:   d.EndpointID,
		Event:        d.Event,
		FinalAttempt: d.Attempt,
		Error:        lastErr,
		Reason:       reason,
		FailedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
}
