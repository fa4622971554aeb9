package model

import "time"

// Budget tracks AI spend for one user against daily and monthly limits.
// Amounts are integer cents. Accumulators only grow within a window and are
// reset exactly once at each window boundary.
type Budget struct {
	UserID            int       `json:"user_id"`
	DailySpentCents   int       `json:"daily_spent_cents"`
	DailyLimitCents   int       `json:"daily_limit_cents"`
	MonthlySpentCents int       `json:"monthly_spent_cents"`
	MonthlyLimitCents int       `json:"monthly_limit_cents"`
	AlertThresholdPct int       `json:"alert_threshold_pct"`
	DailyResetAt      time.Time `json:"daily_reset_at"`
	MonthlyResetAt    time.Time `json:"monthly_reset_at"`
}

// DailyUtilization returns daily spend as a fraction of the daily limit.
func (b Budget) DailyUtilization() float64 {
	if b.DailyLimitCents <= 0 {
		return 0
	}
	return float64(b.DailySpentCents) / float64(b.DailyLimitCents)
}

// MonthlyUtilization returns monthly spend as a fraction of the monthly limit.
func (b Budget) MonthlyUtilization() float64 {
	if b.MonthlyLimitCents <= 0 {
		return 0
	}
	return float64(b.MonthlySpentCents) / float64(b.MonthlyLimitCents)
}

// OverAlertThreshold reports whether daily spend has crossed the alert
// threshold percentage. Crossing the threshold is a signal, not a hard stop.
func (b Budget) OverAlertThreshold() bool {
	if b.AlertThresholdPct <= 0 {
		return false
	}
	return b.DailyUtilization()*100 >= float64(b.AlertThresholdPct)
}

// AIUsageEntry is one logged AI invocation attempt, success or failure.
type AIUsageEntry struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	EmailID      int       `json:"email_id"`
	Model        string    `json:"model"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	CostCents    int       `json:"cost_cents"`
	LatencyMS    int64     `json:"latency_ms"`
	Success      bool      `json:"success"`
	ErrorType    string    `json:"error_type,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
