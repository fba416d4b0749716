package delivery

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/EznRB/utmify-hooks/internal/event"
)

func testEvent() event.Event {
	return event.Event{
		ID:        "evt-456",
		Type:      "sale.approved",
		TenantID:  "tenant-789",
		Data:      map[string]any{"orderId": "ord-1", "amount": 9900},
		Timestamp: time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNew(t *testing.T) {
	ev := testEvent()

	before := time.Now().UTC()
	d := New(ev, "endpoint-abc", 3)
	after := time.Now().UTC()

	if d.DeliveryID == "" {
		t.Error("New() DeliveryID should not be empty")
	}
	if d.EndpointID != "endpoint-abc" {
		t.Errorf("New() EndpointID = %q, want %q", d.EndpointID, "endpoint-abc")
	}
	if d.TenantID != ev.TenantID {
		t.Errorf("New() TenantID = %q, want %q", d.TenantID, ev.TenantID)
	}
	if d.Event.ID != ev.ID {
		t.Errorf("New() Event.ID = %q, want %q", d.Event.ID, ev.ID)
	}
	if d.Attempt != 1 {
		t.Errorf("New() Attempt = %d, want 1", d.Attempt)
	}
	if d.MaxAttempts != 3 {
		t.Errorf("New() MaxAttempts = %d, want 3", d.MaxAttempts)
	}
	if d.CreatedAt.Before(before) || d.CreatedAt.After(after) {
		t.Errorf("New() CreatedAt %v not between %v and %v", d.CreatedAt, before, after)
	}

	// Lineages must never share an ID.
	other := New(ev, "endpoint-abc", 3)
	if other.DeliveryID == d.DeliveryID {
		t.Errorf("New() produced duplicate DeliveryID %q", d.DeliveryID)
	}
}

func TestNext(t *testing.T) {
	d := New(testEvent(), "endpoint-abc", 3)

	next := d.Next()

	if next.Attempt != d.Attempt+1 {
		t.Errorf("Next() Attempt = %d, want %d", next.Attempt, d.Attempt+1)
	}
	if next.DeliveryID != d.DeliveryID {
		t.Errorf("Next() DeliveryID = %q, want unchanged %q", next.DeliveryID, d.DeliveryID)
	}
	if next.EndpointID != d.EndpointID {
		t.Errorf("Next() EndpointID = %q, want unchanged %q", next.EndpointID, d.EndpointID)
	}
	if next.MaxAttempts != d.MaxAttempts {
		t.Errorf("Next() MaxAttempts = %d, want unchanged %d", next.MaxAttempts, d.MaxAttempts)
	}
	if !next.CreatedAt.Equal(d.CreatedAt) {
		t.Errorf("Next() CreatedAt = %v, want unchanged %v", next.CreatedAt, d.CreatedAt)
	}
	// Original must not be mutated.
	if d.Attempt != 1 {
		t.Errorf("Next() mutated the receiver: Attempt = %d, want 1", d.Attempt)
	}
}

func TestRetryJobRoundTrip(t *testing.T) {
	d := New(testEvent(), "endpoint-abc", 3).Next()
	headers := map[string]string{
		"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}

	job := NewRetryJob(d, headers)

	if job.DeliveryID != d.DeliveryID {
		t.Errorf("NewRetryJob() DeliveryID = %q, want %q", job.DeliveryID, d.DeliveryID)
	}
	if job.Attempt != 2 {
		t.Errorf("NewRetryJob() Attempt = %d, want 2", job.Attempt)
	}
	if job.TraceHeaders["traceparent"] == "" {
		t.Error("NewRetryJob() lost trace headers")
	}

	back := job.ToDelivery()
	if back.DeliveryID != d.DeliveryID {
		t.Errorf("ToDelivery() DeliveryID = %q, want %q", back.DeliveryID, d.DeliveryID)
	}
	if back.EndpointID != d.EndpointID {
		t.Errorf("ToDelivery() EndpointID = %q, want %q", back.EndpointID, d.EndpointID)
	}
	if back.TenantID != d.TenantID {
		t.Errorf("ToDelivery() TenantID = %q, want %q", back.TenantID, d.TenantID)
	}
	if back.Event.Type != d.Event.Type {
		t.Errorf("ToDelivery() Event.Type = %q, want %q", back.Event.Type, d.Event.Type)
	}
	if back.Attempt != d.Attempt {
		t.Errorf("ToDelivery() Attempt = %d, want %d", back.Attempt, d.Attempt)
	}
	if back.MaxAttempts != d.MaxAttempts {
		t.Errorf("ToDelivery() MaxAttempts = %d, want %d", back.MaxAttempts, d.MaxAttempts)
	}
	if !back.CreatedAt.Equal(d.CreatedAt) {
		t.Errorf("ToDelivery() CreatedAt = %v, want %v", back.CreatedAt, d.CreatedAt)
	}
}

func TestNewDeadLetter(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		lastErr string
		reason  string
	}{
		{
			name:    "exhausted after three attempts",
			attempt: 3,
			lastErr: "http status 500",
			reason:  "http_5xx",
		},
		{
			name:    "single test attempt",
			attempt: 1,
			lastErr: "connection refused",
			reason:  "connection_refused",
		},
		{
			name:    "empty error and reason",
			attempt: 2,
			lastErr: "",
			reason:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(testEvent(), "endpoint-abc", 3)
			d.Attempt = tt.attempt

			before := time.Now()
			dl := NewDeadLetter(d, tt.lastErr, tt.reason)
			after := time.Now()

			if dl.Type != DLQType {
				t.Errorf("NewDeadLetter() Type = %q, want %q", dl.Type, DLQType)
			}
			if dl.Version != "v1" {
				t.Errorf("NewDeadLetter() Version = %q, want %q", dl.Version, "v1")
			}
			if dl.DeliveryID != d.DeliveryID {
				t.Errorf("NewDeadLetter() DeliveryID = %q, want %q", dl.DeliveryID, d.DeliveryID)
			}
			if dl.TenantID != d.TenantID {
				t.Errorf("NewDeadLetter() TenantID = %q, want %q", dl.TenantID, d.TenantID)
			}
			if dl.EndpointID != d.EndpointID {
				t.Errorf("NewDeadLetter() EndpointID = %q, want %q", dl.EndpointID, d.EndpointID)
			}
			if dl.FinalAttempt != tt.attempt {
				t.Errorf("NewDeadLetter() FinalAttempt = %d, want %d", dl.FinalAttempt, tt.attempt)
			}
			if dl.Error != tt.lastErr {
				t.Errorf("NewDeadLetter() Error = %q, want %q", dl.Error, tt.lastErr)
			}
			if dl.Reason != tt.reason {
				t.Errorf("NewDeadLetter() Reason = %q, want %q", dl.Reason, tt.reason)
			}

			parsedTime, err := time.Parse(time.RFC3339Nano, dl.FailedAt)
			if err != nil {
				t.Errorf("NewDeadLetter() FailedAt parse error: %v", err)
			}
			if parsedTime.Before(before) || parsedTime.After(after) {
				t.Errorf("NewDeadLetter() FailedAt %v not between %v and %v", parsedTime, before, after)
			}
		})
	}
}

func TestJobJSONFieldNames(t *testing.T) {
	d := New(testEvent(), "endpoint-abc", 3)
	job := Job{Delivery: d, TraceHeaders: map[string]string{"traceparent": "trace-123"}}

	jsonData, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	out := string(jsonData)
	for _, key := range []string{`"delivery"`, `"deliveryId"`, `"endpointId"`, `"tenantId"`, `"event"`, `"attempt"`, `"maxAttempts"`, `"createdAt"`, `"traceHeaders"`} {
		if !strings.Contains(out, key) {
			t.Errorf("Job JSON missing key %s: %s", key, out)
		}
	}
	if strings.Contains(out, `"delivery_id"`) {
		t.Errorf("Job JSON should use camelCase, got: %s", out)
	}
}

func TestJobJSONOmitsEmptyTraceHeaders(t *testing.T) {
	job := Job{Delivery: New(testEvent(), "endpoint-abc", 3)}

	jsonData, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if strings.Contains(string(jsonData), "traceHeaders") {
		t.Errorf("Job JSON should omit empty traceHeaders: %s", jsonData)
	}
}

func TestPayloadJSON(t *testing.T) {
	d := New(testEvent(), "endpoint-abc", 3)
	now := time.Date(2023, 6, 1, 10, 30, 0, 0, time.UTC)

	p := NewPayload(d, now)

	if p.Timestamp != "2023-06-01T10:30:00Z" {
		t.Errorf("NewPayload() Timestamp = %q, want %q", p.Timestamp, "2023-06-01T10:30:00Z")
	}

	jsonData, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(jsonData, &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	for _, key := range []string{"event", "deliveryId", "timestamp"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Payload JSON missing key %q: %s", key, jsonData)
		}
	}
	if decoded["deliveryId"] != d.DeliveryID {
		t.Errorf("Payload JSON deliveryId = %v, want %q", decoded["deliveryId"], d.DeliveryID)
	}
}

func TestDLQTypeConstant(t *testing.T) {
	expected := "delivery.deadletter"
	if DLQType != expected {
		t.Errorf("DLQType constant = %q, want %q", DLQType, expected)
	}
}
