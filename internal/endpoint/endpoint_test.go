package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEndpointActive(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   bool
	}{
		{name: "active", status: StatusActive, want: true},
		{name: "inactive", status: StatusInactive, want: false},
		{name: "empty status", status: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Endpoint{Status: tt.status}
			if got := e.Active(); got != tt.want {
				t.Errorf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEndpointJSONOmitsSecret(t *testing.T) {
	e := Endpoint{
		ID:       "ep-1",
		TenantID: "tenant-1",
		URL:      "https://example.com/hook",
		Secret:   "whsec_supersecret",
		Status:   StatusActive,
	}

	jsonData, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	out := string(jsonData)
	if strings.Contains(out, "whsec_supersecret") || strings.Contains(out, "secret") {
		t.Errorf("Endpoint JSON must not contain the secret: %s", out)
	}
	for _, key := range []string{`"id"`, `"tenantId"`, `"url"`, `"status"`, `"totalFailed"`} {
		if !strings.Contains(out, key) {
			t.Errorf("Endpoint JSON missing key %s: %s", key, out)
		}
	}
}

func seedStore() *MemoryStore {
	s := NewMemoryStore()
	s.Put(Endpoint{
		ID:         "ep-1",
		TenantID:   "tenant-1",
		URL:        "https://one.example.com/hook",
		Secret:     "s1",
		EventTypes: []string{"campaign.created", "sale.approved"},
		Status:     StatusActive,
	})
	s.Put(Endpoint{
		ID:         "ep-2",
		TenantID:   "tenant-1",
		URL:        "https://two.example.com/hook",
		Secret:     "s2",
		EventTypes: []string{"campaign.created"},
		Status:     StatusInactive,
	})
	s.Put(Endpoint{
		ID:         "ep-3",
		TenantID:   "tenant-2",
		URL:        "https://three.example.com/hook",
		Secret:     "s3",
		EventTypes: []string{"campaign.created"},
		Status:     StatusActive,
	})
	s.Put(Endpoint{
		ID:         "ep-4",
		TenantID:   "tenant-1",
		URL:        "https://four.example.com/hook",
		Secret:     "s4",
		EventTypes: []string{"billing.paid"},
		Status:     StatusActive,
	})
	return s
}

func TestMemoryStore_FindSubscribers(t *testing.T) {
	tests := []struct {
		name      string
		tenantID  string
		eventType string
		wantIDs   []string
	}{
		{
			name:      "active subscriber matches, inactive excluded",
			tenantID:  "tenant-1",
			eventType: "campaign.created",
			wantIDs:   []string{"ep-1"},
		},
		{
			name:      "other tenant not visible",
			tenantID:  "tenant-2",
			eventType: "campaign.created",
			wantIDs:   []string{"ep-3"},
		},
		{
			name:      "unsubscribed event type",
			tenantID:  "tenant-1",
			eventType: "refund.issued",
			wantIDs:   nil,
		},
		{
			name:      "unknown tenant",
			tenantID:  "tenant-404",
			eventType: "campaign.created",
			wantIDs:   nil,
		},
	}

	store := seedStore()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.FindSubscribers(context.Background(), tt.tenantID, tt.eventType)
			if err != nil {
				t.Fatalf("FindSubscribers() unexpected error: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("FindSubscribers() returned %d endpoints, want %d", len(got), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if got[i].ID != want {
					t.Errorf("FindSubscribers()[%d].ID = %q, want %q", i, got[i].ID, want)
				}
			}
		})
	}
}

func TestMemoryStore_FindSubscribers_FanOutCount(t *testing.T) {
	// 3 active + 1 inactive subscribed to the same type: exactly 3 matches.
	store := NewMemoryStore()
	for _, e := range []Endpoint{
		{ID: "a", TenantID: "t", EventTypes: []string{"sale.approved"}, Status: StatusActive},
		{ID: "b", TenantID: "t", EventTypes: []string{"sale.approved"}, Status: StatusActive},
		{ID: "c", TenantID: "t", EventTypes: []string{"sale.approved"}, Status: StatusActive},
		{ID: "d", TenantID: "t", EventTypes: []string{"sale.approved"}, Status: StatusInactive},
	} {
		store.Put(e)
	}

	got, err := store.FindSubscribers(context.Background(), "t", "sale.approved")
	if err != nil {
		t.Fatalf("FindSubscribers() unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("FindSubscribers() returned %d endpoints, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].ID >= got[i].ID {
			t.Errorf("FindSubscribers() results not sorted: %q before %q", got[i-1].ID, got[i].ID)
		}
	}
}

func TestMemoryStore_Get(t *testing.T) {
	store := seedStore()

	t.Run("existing endpoint", func(t *testing.T) {
		e, err := store.Get(context.Background(), "ep-2")
		if err != nil {
			t.Fatalf("Get() unexpected error: %v", err)
		}
		if e.ID != "ep-2" {
			t.Errorf("Get() ID = %q, want %q", e.ID, "ep-2")
		}
		if e.Status != StatusInactive {
			t.Errorf("Get() Status = %q, want %q", e.Status, StatusInactive)
		}
	})

	t.Run("missing endpoint", func(t *testing.T) {
		_, err := store.Get(context.Background(), "ep-404")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("removed endpoint", func(t *testing.T) {
		store.Remove("ep-4")
		_, err := store.Get(context.Background(), "ep-4")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() after Remove() error = %v, want ErrNotFound", err)
		}
	})
}

func TestMemoryStore_RecordFailure(t *testing.T) {
	t.Run("increments counter and stamps time", func(t *testing.T) {
		store := seedStore()
		at := time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)

		total, disabled, err := store.RecordFailure(context.Background(), "ep-1", at, 0)
		if err != nil {
			t.Fatalf("RecordFailure() unexpected error: %v", err)
		}
		if total != 1 {
			t.Errorf("RecordFailure() totalFailed = %d, want 1", total)
		}
		if disabled {
			t.Error("RecordFailure() disabled = true, want false with disableAfter=0")
		}

		e, _ := store.Get(context.Background(), "ep-1")
		if e.TotalFailed != 1 {
			t.Errorf("endpoint TotalFailed = %d, want 1", e.TotalFailed)
		}
		if e.LastFailedAt == nil || !e.LastFailedAt.Equal(at) {
			t.Errorf("endpoint LastFailedAt = %v, want %v", e.LastFailedAt, at)
		}
		if e.Status != StatusActive {
			t.Errorf("endpoint Status = %q, want still active", e.Status)
		}
	})

	t.Run("disables at threshold", func(t *testing.T) {
		store := seedStore()
		at := time.Now().UTC()

		_, disabled, err := store.RecordFailure(context.Background(), "ep-1", at, 2)
		if err != nil {
			t.Fatalf("RecordFailure() unexpected error: %v", err)
		}
		if disabled {
			t.Error("RecordFailure() first failure should not disable with threshold 2")
		}

		total, disabled, err := store.RecordFailure(context.Background(), "ep-1", at, 2)
		if err != nil {
			t.Fatalf("RecordFailure() unexpected error: %v", err)
		}
		if total != 2 {
			t.Errorf("RecordFailure() totalFailed = %d, want 2", total)
		}
		if !disabled {
			t.Error("RecordFailure() second failure should disable with threshold 2")
		}

		e, _ := store.Get(context.Background(), "ep-1")
		if e.Status != StatusInactive {
			t.Errorf("endpoint Status = %q, want inactive after threshold", e.Status)
		}

		// Further failures must not report a second transition.
		_, disabled, err = store.RecordFailure(context.Background(), "ep-1", at, 2)
		if err != nil {
			t.Fatalf("RecordFailure() unexpected error: %v", err)
		}
		if disabled {
			t.Error("RecordFailure() on an already inactive endpoint reported disabled = true")
		}
	})

	t.Run("missing endpoint", func(t *testing.T) {
		store := seedStore()
		_, _, err := store.RecordFailure(context.Background(), "ep-404", time.Now(), 0)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("RecordFailure() error = %v, want ErrNotFound", err)
		}
	})
}
