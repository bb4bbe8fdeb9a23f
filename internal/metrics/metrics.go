// Package metrics exposes Prometheus collectors for the settlement core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SettlementsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlements_processed_total",
		Help: "Settlement runs by gateway and outcome.",
	}, []string{"gateway", "outcome"})

	SettlementAmount = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_net_amount",
		Help:    "Net settlement amount distribution by gateway.",
		Buckets: prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"gateway"})

	WebhookVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_verifications_total",
		Help: "Webhook signature verification results by gateway.",
	}, []string{"gateway", "result"})

	GatewayCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_call_duration_seconds",
		Help:    "Outbound gateway call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway", "operation"})

	SecurityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "security_events_total",
		Help: "Security events by type and severity.",
	}, []string{"event_type", "severity"})
)
