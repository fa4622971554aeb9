package model

import "time"

// Tier determines how much processing an email receives.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// FactorBreakdown is the fixed decomposition of a score into independent
// additive contributions. Fields are named so that the API layer can expose
// them verbatim.
type FactorBreakdown struct {
	Base              float64 `json:"base"`
	VIPBoost          float64 `json:"vip_boost"`
	UrgencyBoost      float64 `json:"urgency_boost"`
	MarketingPenalty  float64 `json:"marketing_penalty"`
	ProviderSignals   float64 `json:"provider_signals"`
	TimeDecay         float64 `json:"time_decay"`
	ContentAnalysis   float64 `json:"content_analysis"`
	SenderReputation  float64 `json:"sender_reputation"`
	PatternAdjustment float64 `json:"pattern_adjustment"`
}

// Total sums all contributions. This is the raw (unclamped) score.
func (f FactorBreakdown) Total() float64 {
	return f.Base +
		f.VIPBoost +
		f.UrgencyBoost +
		f.MarketingPenalty +
		f.ProviderSignals +
		f.TimeDecay +
		f.ContentAnalysis +
		f.SenderReputation +
		f.PatternAdjustment
}

// AIResult holds the structured output of a successful AI analysis.
type AIResult struct {
	Category    string   `json:"category"`
	Priority    int      `json:"priority"`
	Summary     string   `json:"summary"`
	ActionItems []string `json:"action_items"`
	Confidence  float64  `json:"confidence"`
	Model       string   `json:"model"`
	CostCents   int      `json:"cost_cents"`
	LatencyMS   int64    `json:"latency_ms"`
}

// ScoreRecord is the one-to-one scoring result for an email.
type ScoreRecord struct {
	ID          int             `json:"id"`
	EmailID     int             `json:"email_id"`
	UserID      int             `json:"user_id"`
	RawScore    float64         `json:"raw_score"`
	FinalScore  float64         `json:"final_score"`
	Tier        Tier            `json:"processing_tier"`
	Factors     FactorBreakdown `json:"factors"`
	AIProcessed bool            `json:"ai_processed"`
	AIResult    *AIResult       `json:"ai_result,omitempty"`
	ScoredAt    time.Time       `json:"scored_at"`
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
