package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EznRB/utmify-hooks/internal/config"
	"github.com/EznRB/utmify-hooks/internal/delivery"
	"github.com/EznRB/utmify-hooks/internal/endpoint"
	"github.com/EznRB/utmify-hooks/internal/logging"
	"github.com/EznRB/utmify-hooks/internal/metrics"
	"github.com/EznRB/utmify-hooks/internal/queue"
	"github.com/EznRB/utmify-hooks/internal/stats"
	"github.com/EznRB/utmify-hooks/internal/tracing"
)

// Notifier is the operator-alerting hook, invoked once per new dead letter.
type Notifier interface {
	Notify(ctx context.Context, e Entry)
}

// LogNotifier is the default Notifier: a structured error-level log line.
type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, e Entry) {
	n.logger.WithContext(ctx).
		WithTenant(e.TenantID).
		WithEndpoint(e.EndpointID).
		WithDelivery(e.DeliveryID).
		WithAttempt(e.FinalAttempt).
		WithField("reason", e.Reason).
		WithField("lastError", e.LastError).
		Error("delivery permanently failed")
}

// Handler records terminal failures and runs their side effects exactly once
// per delivery id, no matter how often the terminal job is redelivered.
type Handler struct {
	store     Store
	endpoints endpoint.Store
	producer  queue.Producer
	collector stats.Collector
	notifier  Notifier
	cfg       *config.Config
	logger    *logging.Logger
}

func NewHandler(store Store, endpoints endpoint.Store, producer queue.Producer,
	collector stats.Collector, notifier Notifier, cfg *config.Config, logger *logging.Logger) *Handler {
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Handler{
		store:     store,
		endpoints: endpoints,
		producer:  producer,
		collector: collector,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle quarantines the delivery. The insert is the gate: only the call that
// actually created the row increments the endpoint failure counter, publishes
// the audit envelope, notifies, and records the failed outcome. An insert
// error is returned so the caller can requeue and try again.
func (h *Handler) Handle(ctx context.Context, d delivery.Delivery, finalErr, reason string) error {
	now := time.Now().UTC()
	entry := Entry{
		DeliveryID:   d.DeliveryID,
		TenantID:     d.TenantID,
		EndpointID:   d.EndpointID,
		Event:        d.Event,
		FinalAttempt: d.Attempt,
		LastError:    finalErr,
		Reason:       reason,
		FailedAt:     now,
	}

	inserted, err := h.store.Insert(ctx, entry)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}

	log := h.logger.WithContext(ctx).
		WithTenant(d.TenantID).
		WithEndpoint(d.EndpointID).
		WithDelivery(d.DeliveryID).
		WithAttempt(d.Attempt)

	if !inserted {
		log.Debug("dead letter already recorded, skipping side effects")
		return nil
	}

	metrics.RecordDLQ(reason)
	h.collector.RecordOutcome(ctx, d.TenantID, d.EndpointID, stats.OutcomeFailure)

	totalFailed, disabled, err := h.endpoints.RecordFailure(ctx, d.EndpointID, now, h.cfg.Delivery.DisableAfterFailures)
	if err != nil {
		log.WithError(err).Error("record endpoint failure")
	} else if disabled {
		log.WithField("totalFailed", totalFailed).Warn("endpoint disabled after repeated dead letters")
	}

	if h.cfg.Delivery.PublishDLQTopic {
		h.publishEnvelope(ctx, d, finalErr, reason)
	}

	h.notifier.Notify(ctx, entry)
	return nil
}

// publishEnvelope puts the audit record on the DLQ topic. The row is already
// persisted, so a broker failure here only costs the envelope, not the entry.
func (h *Handler) publishEnvelope(ctx context.Context, d delivery.Delivery, finalErr, reason string) {
	body, err := json.Marshal(delivery.NewDeadLetter(d, finalErr, reason))
	if err != nil {
		h.logger.WithContext(ctx).WithDelivery(d.DeliveryID).WithError(err).Error("marshal dead letter envelope")
		return
	}
	if err := h.producer.Publish(h.cfg.NSQ.DLQTopic, body); err != nil {
		h.logger.WithContext(ctx).WithDelivery(d.DeliveryID).WithError(err).Error("publish dead letter envelope")
	}
}

// List returns the tenant's most recent dead letters, newest first.
func (h *Handler) List(ctx context.Context, tenantID string, limit int) ([]Entry, error) {
	return h.store.List(ctx, tenantID, limit)
}

// Replay re-dispatches a dead-lettered event to its endpoint as a fresh
// lineage: new delivery id, attempt 1, attempt ceiling from config. The
// original entry stays and is stamped with the replay time.
func (h *Handler) Replay(ctx context.Context, deliveryID string) (delivery.Delivery, error) {
	entry, err := h.store.Get(ctx, deliveryID)
	if err != nil {
		return delivery.Delivery{}, err
	}

	d := delivery.New(entry.Event, entry.EndpointID, h.cfg.Delivery.MaxAttempts)
	job := delivery.Job{Delivery: d, TraceHeaders: tracing.InjectQueueHeaders(ctx)}
	body, err := json.Marshal(job)
	if err != nil {
		return delivery.Delivery{}, fmt.Errorf("marshal replay job: %w", err)
	}
	if err := h.producer.Publish(h.cfg.NSQ.DeliveriesTopic, body); err != nil {
		return delivery.Delivery{}, fmt.Errorf("publish replay: %w", err)
	}

	h.collector.RecordDispatched(ctx, entry.TenantID, entry.EndpointID)
	if err := h.store.MarkReplayed(ctx, deliveryID, time.Now().UTC()); err != nil {
		h.logger.WithContext(ctx).WithDelivery(deliveryID).WithError(err).Error("mark dead letter replayed")
	}

	h.logger.WithContext(ctx).
		WithTenant(entry.TenantID).
		WithEndpoint(entry.EndpointID).
		WithDelivery(d.DeliveryID).
		WithField("replayOf", deliveryID).
		Info("dead letter replayed")
	return d, nil
}
