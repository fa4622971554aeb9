package mq

import "time"

// Routing keys published on the events exchange.
const (
	RoutingEmailReceived    = "email.received"
	RoutingFeedbackRecorded = "feedback.recorded"
	RoutingBudgetAlert      = "budget.alert"
	RoutingDigestReady      = "digest.ready"
)

// Queues bound by the worker.
const (
	QueueEmailReceivedScore = "email.received.score.q"
	QueueFeedbackRecorded   = "feedback.recorded.q"
	QueueBudgetAlert        = "budget.alert.q"
)

// EmailReceivedPayload announces a newly ingested email to the scoring worker.
type EmailReceivedPayload struct {
	EmailID    int       `json:"email_id"`
	UserID     int       `json:"user_id"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}

// FeedbackRecordedPayload carries one user action to the learning loop.
type FeedbackRecordedPayload struct {
	UserID     int       `json:"user_id"`
	EmailID    int       `json:"email_id"`
	Action     string    `json:"action"`
	Category   string    `json:"category,omitempty"` // set for category corrections
	RecordedAt time.Time `json:"recorded_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}

// BudgetAlertPayload fires once when daily spend crosses the alert threshold.
type BudgetAlertPayload struct {
	UserID          int     `json:"user_id"`
	DailySpentCents int     `json:"daily_spent_cents"`
	DailyLimitCents int     `json:"daily_limit_cents"`
	UtilizationPct  float64 `json:"utilization_pct"`
	TraceID         string  `json:"trace_id,omitempty"`
}

// DigestReadyPayload announces a freshly generated weekly digest.
type DigestReadyPayload struct {
	DigestID    int       `json:"digest_id"`
	UserID      int       `json:"user_id"`
	WeekStart   time.Time `json:"week_start"`
	TotalEmails int       `json:"total_emails"`
	TraceID     string    `json:"trace_id,omitempty"`
}
