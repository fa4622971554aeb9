package model

import "fmt"

// UserPrefs is the per-user configuration surface: scoring weights, tier
// thresholds, budget limit and feature toggles.
type UserPrefs struct {
	UserID int `json:"user_id"`

	// Scoring weights, each in [0, 2]. 1.0 leaves the factor unchanged.
	VIPSenderWeight        float64 `json:"vip_sender_weight"`
	UrgentKeywordsWeight   float64 `json:"urgent_keywords_weight"`
	MarketingPenaltyWeight float64 `json:"marketing_penalty_weight"`
	TimeDecayWeight        float64 `json:"time_decay_weight"`
	GmailSignalsWeight     float64 `json:"gmail_signals_weight"`

	// Tier thresholds against the clamped final score.
	HighPriorityThreshold   float64 `json:"high_priority_threshold"`   // [50, 100]
	MediumPriorityThreshold float64 `json:"medium_priority_threshold"` // [10, 80], < high

	MaxAICostPerDayCents int `json:"max_ai_cost_per_day_cents"`

	EnablePatternLearning   bool `json:"enable_pattern_learning"`
	EnableWeeklyDigest      bool `json:"enable_weekly_digest"`
	EnableBulkUnsubscribe   bool `json:"enable_bulk_unsubscribe"`
	AutoApplyVIPSuggestions bool `json:"auto_apply_vip_suggestions"`
}

// DefaultPrefs returns the system defaults for a new user.
func DefaultPrefs(userID int) UserPrefs {
	return UserPrefs{
		UserID:                  userID,
		VIPSenderWeight:         1.0,
		UrgentKeywordsWeight:    1.0,
		MarketingPenaltyWeight:  1.0,
		TimeDecayWeight:         1.0,
		GmailSignalsWeight:      1.0,
		HighPriorityThreshold:   70,
		MediumPriorityThreshold: 40,
		MaxAICostPerDayCents:    500,
		EnablePatternLearning:   true,
		EnableWeeklyDigest:      true,
		EnableBulkUnsubscribe:   false,
	}
}

// Validate enforces the documented ranges for every tunable.
func (p *UserPrefs) Validate() error {
	weights := map[string]float64{
		"vip_sender_weight":        p.VIPSenderWeight,
		"urgent_keywords_weight":   p.UrgentKeywordsWeight,
		"marketing_penalty_weight": p.MarketingPenaltyWeight,
		"time_decay_weight":        p.TimeDecayWeight,
		"gmail_signals_weight":     p.GmailSignalsWeight,
	}
	for name, w := range weights {
		if w < 0 || w > 2 {
			return fmt.Errorf("%s must be in [0, 2], got %v", name, w)
		}
	}
	if p.HighPriorityThreshold < 50 || p.HighPriorityThreshold > 100 {
		return fmt.Errorf("high_priority_threshold must be in [50, 100], got %v", p.HighPriorityThreshold)
	}
	if p.MediumPriorityThreshold < 10 || p.MediumPriorityThreshold > 80 {
		return fmt.Errorf("medium_priority_threshold must be in [10, 80], got %v", p.MediumPriorityThreshold)
	}
	if p.MediumPriorityThreshold >= p.HighPriorityThreshold {
		return fmt.Errorf("medium_priority_threshold (%v) must be below high_priority_threshold (%v)",
			p.MediumPriorityThreshold, p.HighPriorityThreshold)
	}
	if p.MaxAICostPerDayCents < 0 {
		return fmt.Errorf("max_ai_cost_per_day_cents must not be negative, got %d", p.MaxAICostPerDayCents)
	}
	return nil
}

// TierFor maps a clamped final score to exactly one tier.
func (p *UserPrefs) TierFor(finalScore float64) Tier {
	switch {
	case finalScore >= p.HighPriorityThreshold:
		return TierHigh
	case finalScore >= p.MediumPriorityThreshold:
		return TierMedium
	default:
		return TierLow
	}
}
