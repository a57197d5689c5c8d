// Package metrics owns every process counter behind one struct so no
// package carries ad hoc globals; the set is exposed as Prometheus text
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the single process-lifetime counter set, shared by the
// webhook handler and the outbox poll loop
type Metrics struct {
	registry *prometheus.Registry

	WebhookEvents       prometheus.Counter
	WebhookIgnored      prometheus.Counter
	WebhookForwarded    *prometheus.CounterVec // by event kind
	WebhookIngestStatus *prometheus.CounterVec // by backend ingest status

	OutboxClaims         prometheus.Counter
	OutboxActionsClaimed prometheus.Counter
	ActionsSucceeded     prometheus.Counter
	ActionsRetryable     prometheus.Counter
	ActionsFailed        prometheus.Counter

	Errors prometheus.Counter
}

// New builds and registers the counter set on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		WebhookEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stakegate_webhook_events_total",
			Help: "Inbound webhook requests received",
		}),
		WebhookIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stakegate_webhook_ignored_total",
			Help: "Webhook requests dropped as unverified, unrecognized, or unsupported",
		}),
		WebhookForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stakegate_webhook_forwarded_total",
			Help: "Normalized events forwarded to the backend",
		}, []string{"kind"}),
		WebhookIngestStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stakegate_webhook_ingest_status_total",
			Help: "Backend ingest statuses relayed to webhook responses",
		}, []string{"status"}),
		OutboxClaims: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stakegate_outbox_claims_total",
			Help: "Outbox claim calls issued",
		}),
		OutboxActionsClaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stakegate_outbox_actions_claimed_total",
			Help: "Actions received from claim calls",
		}),
		ActionsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stakegate_outbox_actions_succeeded_total",
			Help: "Actions that executed successfully",
		}),
		ActionsRetryable: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stakegate_outbox_actions_retryable_total",
			Help: "Actions reported as retryable failures",
		}),
		ActionsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stakegate_outbox_actions_failed_total",
			Help: "Actions reported as permanent failures",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stakegate_errors_total",
			Help: "Unexpected errors (failed acks, failed ticks, handler faults)",
		}),
	}
	reg.MustRegister(
		m.WebhookEvents, m.WebhookIgnored, m.WebhookForwarded, m.WebhookIngestStatus,
		m.OutboxClaims, m.OutboxActionsClaimed,
		m.ActionsSucceeded, m.ActionsRetryable, m.ActionsFailed,
		m.Errors,
	)
	return m
}

// Handler serves the Prometheus text exposition for this counter set
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
