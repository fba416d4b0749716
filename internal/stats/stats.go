package stats

import "context"

// Outcome labels for RecordOutcome.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Counter field names shared by the Redis and memory implementations.
const (
	fieldTotal      = "total"
	fieldSuccessful = "successful"
	fieldFailed     = "failed"
	fieldDiscarded  = "discarded"
)

// Stats holds the delivery counters for one tenant or one endpoint. Total,
// Successful, Failed and Discarded are stored monotonic counters; Pending
// and SuccessRate are derived at read time by Finalize.
type Stats struct {
	Total       int64   `json:"total"`
	Successful  int64   `json:"successful"`
	Failed      int64   `json:"failed"`
	Discarded   int64   `json:"discarded"`
	Pending     int64   `json:"pending"`
	SuccessRate float64 `json:"successRate"`
}

// Finalize computes Pending and SuccessRate from the stored counters.
// Pending is floored at zero: at-least-once redelivery can make outcome
// counts briefly overtake the dispatch count.
func (s *Stats) Finalize() {
	pending := s.Total - s.Successful - s.Failed - s.Discarded
	if pending < 0 {
		pending = 0
	}
	s.Pending = pending
	if s.Total > 0 {
		s.SuccessRate = float64(s.Successful) / float64(s.Total) * 100
	} else {
		s.SuccessRate = 0
	}
}

// Collector aggregates delivery outcomes per tenant and per endpoint.
// Recording must never block or fail a delivery: implementations log and
// drop storage errors instead of returning them.
type Collector interface {
	// RecordDispatched counts a delivery entering the queue.
	RecordDispatched(ctx context.Context, tenantID, endpointID string)

	// RecordOutcome counts a terminal outcome, OutcomeSuccess or
	// OutcomeFailure.
	RecordOutcome(ctx context.Context, tenantID, endpointID, outcome string)

	// RecordDiscarded counts a delivery dropped because its endpoint went
	// missing or inactive. Neither a success nor a failure.
	RecordDiscarded(ctx context.Context, tenantID, endpointID string)

	// Stats reads the counters for the tenant, or for one endpoint when
	// endpointID is non-empty. Unknown tenants read as all zeros.
	Stats(ctx context.Context, tenantID, endpointID string) (Stats, error)

	// Reset clears the tenant's counters, endpoint scopes included.
	Reset(ctx context.Context, tenantID string) error
}
