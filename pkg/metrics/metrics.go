package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Emails scored, labelled by resulting tier.
	EmailsScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_scored_total",
			Help: "Total number of emails scored, by processing tier",
		},
		[]string{"tier"},
	)

	// Final score distribution.
	ScoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "email_final_score",
			Help:    "Distribution of clamped final scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 to 100
		},
	)

	// AI call latency, labelled by model and outcome.
	AICallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_call_latency_ms",
			Help:    "AI capability call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"model", "status"},
	)

	// AI spend in cents.
	AICostCents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_cost_cents_total",
			Help: "Total AI spend in cents",
		},
		[]string{"model"},
	)

	// Routing decisions (ai_invoked, budget_exhausted, breaker_open, low_tier...).
	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_decisions_total",
			Help: "Tier router decisions by reason",
		},
		[]string{"tier", "reason"},
	)

	// Circuit breaker state: 0 closed, 1 open, 2 half-open.
	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ai_breaker_state",
			Help: "AI circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
	)

	// Feedback actions applied by the learning loop.
	FeedbackApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_actions_total",
			Help: "User feedback actions applied by the learning loop",
		},
		[]string{"action"},
	)

	// Weekly digest runs.
	DigestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_runs_total",
			Help: "Weekly digest generation runs",
		},
		[]string{"status"},
	)

	// MQ consume latency (milliseconds).
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"routing_key", "queue"},
	)

	// Slow DB queries.
	SlowQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_queries_total",
			Help: "Queries slower than the configured threshold",
		},
	)
)

// RecordScore records one scored email.
func RecordScore(tier string, finalScore float64) {
	EmailsScored.WithLabelValues(tier).Inc()
	ScoreDistribution.Observe(finalScore)
}

// RecordAICall records one AI invocation attempt.
func RecordAICall(model, status string, duration time.Duration, costCents int) {
	AICallLatency.WithLabelValues(model, status).Observe(float64(duration.Milliseconds()))
	if costCents > 0 {
		AICostCents.WithLabelValues(model).Add(float64(costCents))
	}
}

// RecordRoutingDecision records a tier router outcome.
func RecordRoutingDecision(tier, reason string) {
	RoutingDecisions.WithLabelValues(tier, reason).Inc()
}

// SetBreakerState exports the breaker state as a gauge.
func SetBreakerState(state int) {
	BreakerState.Set(float64(state))
}

// RecordMQConsumeLatency records MQ consumption latency.
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementSlowQuery counts one slow query.
func IncrementSlowQuery() {
	SlowQueries.Inc()
}
