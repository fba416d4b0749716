package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/nsqio/go-nsq"
	"go.opentelemetry.io/otel/attribute"

	"github.com/EznRB/utmify-hooks/internal/delivery"
	"github.com/EznRB/utmify-hooks/internal/endpoint"
	"github.com/EznRB/utmify-hooks/internal/logging"
	"github.com/EznRB/utmify-hooks/internal/metrics"
	"github.com/EznRB/utmify-hooks/internal/retry"
	"github.com/EznRB/utmify-hooks/internal/stats"
	"github.com/EznRB/utmify-hooks/internal/tracing"
)

// Sender performs one signed HTTP delivery attempt.
type Sender interface {
	Send(ctx context.Context, ep endpoint.Endpoint, d delivery.Delivery) delivery.Result
}

// Scheduler re-enqueues a failed delivery for its next attempt.
type Scheduler interface {
	ScheduleRetry(ctx context.Context, d delivery.Delivery, reason string) (delivery.Delivery, time.Duration, error)
}

// DeadLetterer quarantines a delivery that has no attempts left.
type DeadLetterer interface {
	Handle(ctx context.Context, d delivery.Delivery, finalErr, reason string) error
}

// Worker executes delivery attempts consumed from the deliveries and retry
// topics. The queue owns every message until the worker finishes or
// requeues it, so a crash mid-attempt just means redelivery.
type Worker struct {
	endpoints endpoint.Store
	sender    Sender
	scheduler Scheduler
	dlq       DeadLetterer
	collector stats.Collector
	logger    *logging.Logger
}

func New(endpoints endpoint.Store, sender Sender, scheduler Scheduler,
	dlq DeadLetterer, collector stats.Collector, logger *logging.Logger) *Worker {
	return &Worker{
		endpoints: endpoints,
		sender:    sender,
		scheduler: scheduler,
		dlq:       dlq,
		collector: collector,
		logger:    logger,
	}
}

// JobHandler consumes first-attempt jobs from the deliveries topic.
func (w *Worker) JobHandler() nsq.Handler {
	return nsq.HandlerFunc(func(m *nsq.Message) error {
		m.DisableAutoResponse() // finish/requeue decided per attempt
		defer w.finishUnresponded(m)

		var job delivery.Job
		if err := json.Unmarshal(m.Body, &job); err != nil {
			w.dropPoison(m, err)
			return nil
		}
		w.process(jobContext(job.TraceHeaders), job.Delivery, m)
		return nil
	})
}

// RetryHandler consumes re-enqueued jobs from the retry topic.
func (w *Worker) RetryHandler() nsq.Handler {
	return nsq.HandlerFunc(func(m *nsq.Message) error {
		m.DisableAutoResponse()
		defer w.finishUnresponded(m)

		var job delivery.RetryJob
		if err := json.Unmarshal(m.Body, &job); err != nil {
			w.dropPoison(m, err)
			return nil
		}
		w.process(jobContext(job.TraceHeaders), job.ToDelivery(), m)
		return nil
	})
}

func jobContext(traceHeaders map[string]string) context.Context {
	return tracing.ExtractQueueHeaders(context.Background(), traceHeaders)
}

func (w *Worker) finishUnresponded(m *nsq.Message) {
	if !m.HasResponded() {
		w.logger.Plain().Warn("message had no response, finishing")
		m.Finish()
	}
}

// Malformed payloads are terminal. Requeueing one would redeliver it forever.
func (w *Worker) dropPoison(m *nsq.Message, err error) {
	w.logger.Plain().WithError(err).Error("bad job payload")
	metrics.RecordDiscard("bad_payload")
	m.Finish()
}

// process runs one attempt: re-resolve the endpoint, send, then route the
// outcome through the state machine. The message is finished exactly when
// the outcome is safely recorded elsewhere (retry topic, dead-letter row,
// or success); otherwise it is requeued so the attempt is never lost.
func (w *Worker) process(ctx context.Context, d delivery.Delivery, m *nsq.Message) {
	ctx, span := tracing.StartSpan(ctx, "worker.delivery",
		attribute.String("delivery.id", d.DeliveryID),
		attribute.String("tenant.id", d.TenantID),
		attribute.String("endpoint.id", d.EndpointID),
		attribute.String("event.type", d.Event.Type),
		attribute.Int("attempt", d.Attempt),
	)
	defer span.End()

	log := w.logger.WithContext(ctx).
		WithTenant(d.TenantID).
		WithEndpoint(d.EndpointID).
		WithDelivery(d.DeliveryID).
		WithAttempt(d.Attempt)

	ep, err := w.endpoints.Get(ctx, d.EndpointID)
	if errors.Is(err, endpoint.ErrNotFound) {
		w.discard(ctx, d, m, "endpoint_missing", log)
		return
	}
	if err != nil {
		// Transient registry failure. Hold the message; the attempt is not
		// consumed.
		tracing.SetSpanError(ctx, err)
		log.WithError(err).Error("resolve endpoint")
		m.Requeue(retry.Backoff(d.Attempt))
		return
	}
	if !ep.Active() {
		w.discard(ctx, d, m, "endpoint_inactive", log)
		return
	}

	tracing.AddSpanEvent(ctx, "http.send_webhook")
	res := w.sender.Send(ctx, ep, d)
	span.SetAttributes(
		attribute.Int("http.status_code", res.StatusCode),
		attribute.Int64("http.latency_ms", res.Latency.Milliseconds()),
	)
	if res.Err == nil {
		metrics.RecordHTTPDelivery(d.TenantID, d.EndpointID, strconv.Itoa(res.StatusCode), res.Latency)
	}

	outcome := retry.OutcomeFailure
	if res.OK() {
		outcome = retry.OutcomeSuccess
	}
	decision := retry.NextState(d.Attempt, d.MaxAttempts, outcome)
	span.SetAttributes(attribute.String("delivery.action", decision.Action.String()))

	switch decision.Action {
	case retry.Succeed:
		metrics.RecordDelivery("success", d.TenantID, d.EndpointID, res.Latency)
		w.collector.RecordOutcome(ctx, d.TenantID, d.EndpointID, stats.OutcomeSuccess)
		log.WithField("statusCode", res.StatusCode).Info("delivery succeeded")
		m.Finish()

	case retry.Retry:
		reason := delivery.Classify(res)
		metrics.RecordDelivery("failure", d.TenantID, d.EndpointID, res.Latency)
		_, delay, err := w.scheduler.ScheduleRetry(ctx, d, reason)
		if err != nil {
			// The next attempt never reached the retry topic. Hold the
			// original message for the same delay instead.
			tracing.SetSpanError(ctx, err)
			log.WithError(err).Error("schedule retry")
			m.Requeue(delay)
			return
		}
		log.WithFields(map[string]any{
			"reason": reason,
			"delay":  delay.String(),
		}).Warn("delivery failed, retry scheduled")
		m.Finish()

	case retry.DeadLetter:
		reason := delivery.Classify(res)
		metrics.RecordDelivery("failure", d.TenantID, d.EndpointID, res.Latency)
		if err := w.dlq.Handle(ctx, d, res.ErrString(), reason); err != nil {
			tracing.SetSpanError(ctx, err)
			log.WithError(err).Error("dead letter delivery")
			m.Requeue(retry.Backoff(d.Attempt))
			return
		}
		log.WithField("reason", reason).Warn("delivery exhausted attempts")
		m.Finish()
	}
}

// discard drops a delivery whose endpoint disappeared or went inactive
// between dispatch and execution. Counted separately from failures.
func (w *Worker) discard(ctx context.Context, d delivery.Delivery, m *nsq.Message, reason string, log *logging.LogEntry) {
	tracing.AddSpanEvent(ctx, "delivery.discard", attribute.String("reason", reason))
	metrics.RecordDiscard(reason)
	w.collector.RecordDiscarded(ctx, d.TenantID, d.EndpointID)
	log.WithField("reason", reason).Warn("delivery discarded")
	m.Finish()
}
