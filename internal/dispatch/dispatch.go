package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/EznRB/utmify-hooks/internal/config"
	"github.com/EznRB/utmify-hooks/internal/delivery"
	"github.com/EznRB/utmify-hooks/internal/endpoint"
	"github.com/EznRB/utmify-hooks/internal/event"
	"github.com/EznRB/utmify-hooks/internal/logging"
	"github.com/EznRB/utmify-hooks/internal/metrics"
	"github.com/EznRB/utmify-hooks/internal/queue"
	"github.com/EznRB/utmify-hooks/internal/stats"
	"github.com/EznRB/utmify-hooks/internal/tracing"
)

// ErrInvalidEvent wraps validation failures so the HTTP layer can map them
// to a 400 instead of a 502.
var ErrInvalidEvent = errors.New("invalid event")

// Sender performs one synchronous delivery attempt.
type Sender interface {
	Send(ctx context.Context, ep endpoint.Endpoint, d delivery.Delivery) delivery.Result
}

// DeadLetterer quarantines a delivery that has no attempts left.
type DeadLetterer interface {
	Handle(ctx context.Context, d delivery.Delivery, finalErr, reason string) error
}

// Dispatcher fans events out to subscribed endpoints and owns the
// synchronous test-delivery surface.
type Dispatcher struct {
	endpoints endpoint.Store
	producer  queue.Producer
	collector stats.Collector
	sender    Sender
	dlq       DeadLetterer
	cfg       *config.Config
	logger    *logging.Logger
}

func NewDispatcher(endpoints endpoint.Store, producer queue.Producer, collector stats.Collector,
	sender Sender, dlq DeadLetterer, cfg *config.Config, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		endpoints: endpoints,
		producer:  producer,
		collector: collector,
		sender:    sender,
		dlq:       dlq,
		cfg:       cfg,
		logger:    logger,
	}
}

// Dispatch enqueues one delivery job per active endpoint subscribed to the
// event's type and returns how many were enqueued. A registry failure
// enqueues nothing. Publish failures skip the affected endpoint; the rest
// are still enqueued and the failures come back joined into one error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event) (int, error) {
	if err := ev.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	ev.Normalize()

	ctx, span := tracing.StartSpan(ctx, "dispatch.event",
		attribute.String("event.type", ev.Type),
		attribute.String("tenant.id", ev.TenantID),
	)
	defer span.End()

	log := d.logger.WithContext(ctx).
		WithTenant(ev.TenantID).
		WithEvent(ev.ID).
		WithEventType(ev.Type)

	subscribers, err := d.endpoints.FindSubscribers(ctx, ev.TenantID, ev.Type)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return 0, fmt.Errorf("find subscribers: %w", err)
	}

	metrics.RecordEventDispatched(ev.TenantID)
	if len(subscribers) == 0 {
		log.Debug("no subscribed endpoints")
		return 0, nil
	}

	traceHeaders := tracing.InjectQueueHeaders(ctx)
	enqueued := 0
	var errs []error
	for _, ep := range subscribers {
		dl := delivery.New(ev, ep.ID, d.cfg.Delivery.MaxAttempts)
		body, err := json.Marshal(delivery.Job{Delivery: dl, TraceHeaders: traceHeaders})
		if err != nil {
			errs = append(errs, fmt.Errorf("endpoint %s: marshal job: %w", ep.ID, err))
			continue
		}
		if err := d.producer.Publish(d.cfg.NSQ.DeliveriesTopic, body); err != nil {
			errs = append(errs, fmt.Errorf("endpoint %s: publish job: %w", ep.ID, err))
			continue
		}
		enqueued++
		d.collector.RecordDispatched(ctx, ev.TenantID, ep.ID)
	}

	log.WithField("deliveries", enqueued).Info("event dispatched")
	if len(errs) > 0 {
		joined := errors.Join(errs...)
		tracing.SetSpanError(ctx, joined)
		return enqueued, joined
	}
	return enqueued, nil
}

// TestResult is the synchronous outcome of a manual endpoint test.
type TestResult struct {
	DeliveryID string `json:"deliveryId"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode,omitempty"`
	LatencyMS  int64  `json:"latencyMs"`
	Error      string `json:"error,omitempty"`
}

// TestEndpoint sends one synthetic delivery to the endpoint and waits for
// the outcome. Exactly one attempt is made: a failure goes straight to the
// dead-letter handler, never to the retry queue. Returns ErrNotFound for
// unknown endpoints and for endpoints owned by another tenant, ErrInactive
// for disabled ones.
func (d *Dispatcher) TestEndpoint(ctx context.Context, tenantID, endpointID string) (TestResult, error) {
	ep, err := d.endpoints.Get(ctx, endpointID)
	if err != nil {
		return TestResult{}, err
	}
	if ep.TenantID != tenantID {
		return TestResult{}, endpoint.ErrNotFound
	}
	if !ep.Active() {
		return TestResult{}, endpoint.ErrInactive
	}

	ev := event.NewTest(tenantID, endpointID)
	dl := delivery.New(ev, ep.ID, 1)
	d.collector.RecordDispatched(ctx, tenantID, ep.ID)

	res := d.sender.Send(ctx, ep, dl)
	if res.Err == nil {
		metrics.RecordHTTPDelivery(tenantID, ep.ID, strconv.Itoa(res.StatusCode), res.Latency)
	}

	log := d.logger.WithContext(ctx).
		WithTenant(tenantID).
		WithEndpoint(ep.ID).
		WithDelivery(dl.DeliveryID)

	out := TestResult{
		DeliveryID: dl.DeliveryID,
		StatusCode: res.StatusCode,
		LatencyMS:  res.Latency.Milliseconds(),
	}
	if res.OK() {
		out.Success = true
		d.collector.RecordOutcome(ctx, tenantID, ep.ID, stats.OutcomeSuccess)
		metrics.RecordDelivery("success", tenantID, ep.ID, res.Latency)
		log.WithField("statusCode", res.StatusCode).Info("test delivery succeeded")
		return out, nil
	}

	out.Error = res.ErrString()
	reason := delivery.Classify(res)
	metrics.RecordDelivery("failure", tenantID, ep.ID, res.Latency)
	if err := d.dlq.Handle(ctx, dl, out.Error, reason); err != nil {
		log.WithError(err).Error("dead letter test delivery")
	}
	log.WithField("reason", reason).Warn("test delivery failed")
	return out, nil
}
