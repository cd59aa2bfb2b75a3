// Package duprmetrics records pipeline outcomes for the rating-authority integration.
package duprmetrics

import (
	"context"

	"github.com/Black-And-White-Club/dupr-bridge/app/shared/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcome labels.
const (
	OutcomeSubmitted = "submitted"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Webhook result labels.
const (
	WebhookProcessed = "processed"
	WebhookDuplicate = "duplicate"
	WebhookFailed    = "failed"
	WebhookIgnored   = "ignored"
)

// Metrics is everything the submission service records.
type Metrics interface {
	metrics.OperationMetrics
	RecordSubmission(ctx context.Context, outcome string)
	RecordBatchOutcome(ctx context.Context, status string)
	RecordTokenFailure(ctx context.Context)
	RecordWebhook(ctx context.Context, eventType, result string)
	RecordRatingUpdates(ctx context.Context, source string, count int)
}

// Prometheus is the Prometheus-backed Metrics.
type Prometheus struct {
	*metrics.Operations

	submissions   *prometheus.CounterVec
	batches       *prometheus.CounterVec
	tokenFailures prometheus.Counter
	webhooks      *prometheus.CounterVec
	ratings       *prometheus.CounterVec
}

// NewPrometheus registers the pipeline collectors on reg.
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	m := &Prometheus{
		Operations: metrics.NewOperations(reg, namespace),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dupr",
			Name:      "match_submissions_total",
			Help:      "Match submissions by outcome.",
		}, []string{"outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dupr",
			Name:      "batch_passes_total",
			Help:      "Finished batch passes by resulting status.",
		}, []string{"status"}),
		tokenFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dupr",
			Name:      "token_failures_total",
			Help:      "Credential exchanges that did not yield a token.",
		}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dupr",
			Name:      "webhook_events_total",
			Help:      "Inbound webhook deliveries by event type and result.",
		}, []string{"event", "result"}),
		ratings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dupr",
			Name:      "rating_updates_total",
			Help:      "Rating snapshots written, by source.",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(m.submissions, m.batches, m.tokenFailures, m.webhooks, m.ratings)
	}
	return m
}

func (m *Prometheus) RecordSubmission(_ context.Context, outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Prometheus) RecordBatchOutcome(_ context.Context, status string) {
	m.batches.WithLabelValues(status).Inc()
}

func (m *Prometheus) RecordTokenFailure(_ context.Context) {
	m.tokenFailures.Inc()
}

func (m *Prometheus) RecordWebhook(_ context.Context, eventType, result string) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.webhooks.WithLabelValues(eventType, result).Inc()
}

func (m *Prometheus) RecordRatingUpdates(_ context.Context, source string, count int) {
	if count <= 0 {
		return
	}
	m.ratings.WithLabelValues(source).Add(float64(count))
}

// Noop discards everything.
type Noop struct {
	metrics.NoopOperations
}

// NewNoop returns a Metrics that records nothing.
func NewNoop() *Noop { return &Noop{} }

func (Noop) RecordSubmission(context.Context, string)         {}
func (Noop) RecordBatchOutcome(context.Context, string)       {}
func (Noop) RecordTokenFailure(context.Context)               {}
func (Noop) RecordWebhook(context.Context, string, string)    {}
func (Noop) RecordRatingUpdates(context.Context, string, int) {}

var (
	_ Metrics = (*Prometheus)(nil)
	_ Metrics = (*Noop)(nil)
)
