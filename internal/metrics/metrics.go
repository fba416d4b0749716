package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utmify_webhook_events_dispatched_total",
			Help: "Total number of domain events dispatched, by tenant.",
		},
		[]string{"tenant_id"},
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utmify_webhook_deliveries_total",
			Help: "Total number of delivery attempts by terminal status.",
		},
		[]string{"status", "tenant_id", "endpoint_id"},
	)

	DeliveryLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "utmify_webhook_delivery_latency_seconds",
			Help:    "End-to-end delivery attempt latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tenant_id"},
	)

	HTTPDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "utmify_webhook_http_delivery_duration_seconds",
			Help:    "Outbound HTTP request duration by response status code.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tenant_id", "endpoint_id", "status_code"},
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utmify_webhook_retries_total",
			Help: "Total number of delivery retries by reason.",
		},
		[]string{"reason"}, // e.g. http_5xx, timeout, network, other
	)

	DLQTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utmify_webhook_dlq_total",
			Help: "Total number of deliveries dead-lettered, by reason.",
		},
		[]string{"reason"},
	)

	DiscardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "utmify_webhook_discards_total",
			Help: "Total number of deliveries discarded without an attempt.",
		},
		[]string{"reason"}, // endpoint_missing, endpoint_inactive, bad_payload
	)

	WorkerBacklog = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "utmify_webhook_worker_backlog",
			Help: "Depth of the worker channel on the deliveries topic.",
		},
	)

	NSQTopicDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "utmify_webhook_nsq_topic_depth",
			Help: "Per-channel message depth reported by nsqd.",
		},
		[]string{"topic", "channel"},
	)
)

func MustRegister(reg *prometheus.Registry) {
	reg.MustRegister(
		EventsDispatchedTotal,
		DeliveriesTotal,
		DeliveryLatencySeconds,
		HTTPDeliveryDuration,
		RetriesTotal,
		DLQTotal,
		DiscardsTotal,
		WorkerBacklog,
		NSQTopicDepth,
	)
}

// RecordEventDispatched increments the dispatched-events counter for a tenant
func RecordEventDispatched(tenantID string) {
	EventsDispatchedTotal.WithLabelValues(tenantID).Inc()
}

// RecordDelivery records a delivery attempt outcome and its latency
func RecordDelivery(status, tenantID, endpointID string, duration time.Duration) {
	DeliveriesTotal.WithLabelValues(status, tenantID, endpointID).Inc()
	DeliveryLatencySeconds.WithLabelValues(tenantID).Observe(duration.Seconds())
}

// RecordHTTPDelivery records the outbound HTTP request duration
func RecordHTTPDelivery(tenantID, endpointID, statusCode string, duration time.Duration) {
	HTTPDeliveryDuration.WithLabelValues(tenantID, endpointID, statusCode).Observe(duration.Seconds())
}

// RecordRetry increments the retry counter for a failure reason
func RecordRetry(reason string) {
	RetriesTotal.WithLabelValues(reason).Inc()
}

// RecordDLQ increments the dead-letter counter for a failure reason
func RecordDLQ(reason string) {
	DLQTotal.WithLabelValues(reason).Inc()
}

// RecordDiscard increments the discard counter for a reason
func RecordDiscard(reason string) {
	DiscardsTotal.WithLabelValues(reason).Inc()
}

// UpdateWorkerBacklog sets the worker backlog gauge
func UpdateWorkerBacklog(count float64) {
	WorkerBacklog.Set(count)
}

// UpdateNSQTopicDepth sets the queue depth gauge for a topic/channel pair
func UpdateNSQTopicDepth(topic, channel string, depth float64) {
	NSQTopicDepth.WithLabelValues(topic, channel).Set(depth)
}
