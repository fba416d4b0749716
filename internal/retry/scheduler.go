package retry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EznRB/utmify-hooks/internal/delivery"
	"github.com/EznRB/utmify-hooks/internal/metrics"
	"github.com/EznRB/utmify-hooks/internal/tracing"
)

// Producer is the slice of the queue producer the scheduler needs.
type Producer interface {
	DeferredPublish(topic string, delay time.Duration, body []byte) error
}

// Scheduler re-enqueues failed deliveries on the retry topic. The delay is
// queue-side scheduling (NSQ deferred publish), never a sleeping goroutine.
type Scheduler struct {
	producer Producer
	topic    string
}

func NewScheduler(producer Producer, topic string) *Scheduler {
	return &Scheduler{producer: producer, topic: topic}
}

// ScheduleRetry publishes the next attempt of the lineage, delayed by the
// backoff for the attempt that just failed. Returns the incremented
// delivery and the delay so the caller can log it or, on error, hold the
// original message for the same delay instead.
func (s *Scheduler) ScheduleRetry(ctx context.Context, d delivery.Delivery, reason string) (delivery.Delivery, time.Duration, error) {
	delay := Backoff(d.Attempt)
	next := d.Next()

	job := delivery.NewRetryJob(next, tracing.InjectQueueHeaders(ctx))
	body, err := json.Marshal(job)
	if err != nil {
		return next, delay, fmt.Errorf("marshal retry job: %w", err)
	}
	if err := s.producer.DeferredPublish(s.topic, delay, body); err != nil {
		return next, delay, fmt.Errorf("deferred publish: %w", err)
	}

	metrics.RecordRetry(reason)
	return next, delay, nil
}
