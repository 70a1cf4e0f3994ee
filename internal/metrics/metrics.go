// Package metrics holds the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OutboxEventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_outbox_events_published_total",
		Help: "Outbox events successfully delivered to the transport.",
	})

	OutboxPublishRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_outbox_publish_retries_total",
		Help: "Outbox publish failures that were scheduled for retry.",
	})

	OutboxEventsParked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_outbox_events_parked_total",
		Help: "Outbox events that exhausted their retry budget and need operator intervention.",
	})

	OutboxEventsCleaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_outbox_events_cleaned_total",
		Help: "Published outbox events removed by the retention sweep.",
	})

	WebhooksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_webhooks_processed_total",
		Help: "Inbound gateway webhooks by outcome.",
	}, []string{"outcome"})

	OutboxParkedEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payments_outbox_parked_events",
		Help: "FAILED outbox events with an exhausted retry budget awaiting operator intervention.",
	})

	SagaTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_saga_timeouts_total",
		Help: "Payments force-failed after exceeding the PROCESSING deadline.",
	})

	SagaStuckSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payments_saga_stuck_success",
		Help: "SUCCESS payments past the acknowledgment deadline awaiting operator review.",
	})

	SagaFailedPaymentsAudited = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "payments_saga_failed_payments_audited",
		Help: "FAILED payments counted by the most recent audit window.",
	})

	ProcessedMarkersCleaned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_processed_markers_cleaned_total",
		Help: "Idempotency markers removed by the retention sweep.",
	})
)
