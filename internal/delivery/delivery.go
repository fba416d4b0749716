package delivery

import (
	"time"

	"github.com/google/uuid"

	"github.com/EznRB/utmify-hooks/internal/event"
)

// Delivery is one unit of work: a single event bound for a single endpoint.
// DeliveryID is stable across every attempt of the lineage.
type Delivery struct {
	DeliveryID  string      `json:"deliveryId"`
	EndpointID  string      `json:"endpointId"`
	TenantID    string      `json:"tenantId"`
	Event       event.Event `json:"event"`
	Attempt     int         `json:"attempt"` // 1-based
	MaxAttempts int         `json:"maxAttempts"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// New builds the first attempt of a fresh lineage.
func New(ev event.Event, endpointID string, maxAttempts int) Delivery {
	return Delivery{
		DeliveryID:  uuid.NewString(),
		EndpointID:  endpointID,
		TenantID:    ev.TenantID,
		Event:       ev,
		Attempt:     1,
		MaxAttempts: maxAttempts,
		CreatedAt:   time.Now().UTC(),
	}
}

// Next returns the delivery re-created for the following attempt. Everything
// but the attempt number is carried over unchanged.
func (d Delivery) Next() Delivery {
	d.Attempt++
	return d
}

// Job is the payload published on the deliveries topic.
type Job struct {
	Delivery     Delivery          `json:"delivery"`
	TraceHeaders map[string]string `json:"traceHeaders,omitempty"`
}

// RetryJob is the flat payload published on the retry topic.
type RetryJob struct {
	DeliveryID   string            `json:"deliveryId"`
	EndpointID   string            `json:"endpointId"`
	TenantID     string            `json:"tenantId"`
	Event        event.Event       `json:"event"`
	Attempt      int               `json:"attempt"`
	MaxAttempts  int               `json:"maxAttempts"`
	CreatedAt    time.Time         `json:"createdAt"`
	TraceHeaders map[string]string `json:"traceHeaders,omitempty"`
}

func NewRetryJob(d Delivery, traceHeaders map[string]string) RetryJob {
	return RetryJob{
		DeliveryID:   d.DeliveryID,
		EndpointID:   d.EndpointID,
		TenantID:     d.TenantID,
		Event:        d.Event,
		Attempt:      d.Attempt,
		MaxAttempts:  d.MaxAttempts,
		CreatedAt:    d.CreatedAt,
		TraceHeaders: traceHeaders,
	}
}

func (j RetryJob) ToDelivery() Delivery {
	return Delivery{
		DeliveryID:  j.DeliveryID,
		EndpointID:  j.EndpointID,
		TenantID:    j.TenantID,
		Event:       j.Event,
		Attempt:     j.Attempt,
		MaxAttempts: j.MaxAttempts,
		CreatedAt:   j.CreatedAt,
	}
}

// Payload is the HTTP POST body receivers see.
type Payload struct {
	Event      event.Event `json:"event"`
	DeliveryID string      `json:"deliveryId"`
	Timestamp  string      `json:"timestamp"` // RFC3339, stamped at send time
}

func NewPayload(d Delivery, now time.Time) Payload {
	return Payload{
		Event:      d.Event,
		DeliveryID: d.DeliveryID,
		Timestamp:  now.UTC().Format(time.RFC3339),
	}
}
