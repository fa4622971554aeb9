package scoring

import (
	"strings"
	"testing"
	"time"

	"mailtriage/internal/model"
)

func TestUrgencyBoostSaturates(t *testing.T) {
	e := NewEngine(DefaultConfig())

	cases := []struct {
		subject string
		want    float64
	}{
		{"lunch?", 0},
		{"URGENT: server down", 15},
		{"URGENT: respond ASAP", 18},
		{"URGENT ASAP deadline immediately overdue action required", 20},
	}
	for _, tc := range cases {
		email := &model.Email{Subject: tc.subject}
		if got := e.urgencyBoost(email); got != tc.want {
			t.Errorf("urgencyBoost(%q)=%v, want %v", tc.subject, got, tc.want)
		}
	}
}

func TestMarketingPenaltyBounded(t *testing.T) {
	e := NewEngine(DefaultConfig())
	email := &model.Email{
		Sender:  "no-reply@news.mailchimp.com",
		Subject: "Huge sale! 50% off, limited time, free shipping deal",
		Body:    strings.Repeat("Unsubscribe. View in browser. ", 10),
		Labels:  []string{"CATEGORY_PROMOTIONS"},
	}
	got := e.marketingPenalty(email)
	if got <= 0 {
		t.Fatalf("expected a penalty, got %v", got)
	}
	if got > e.cfg.MaxMarketingPenalty {
		t.Errorf("penalty %v exceeds cap %v", got, e.cfg.MaxMarketingPenalty)
	}
}

func TestTimeDecayMonotone(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	ages := []time.Duration{
		time.Hour,
		6 * time.Hour,
		49 * time.Hour,
		5 * 24 * time.Hour,
		30 * 24 * time.Hour,
	}

	prev := timeDecay(&model.Email{IsUnread: true, ReceivedAt: now.Add(-ages[0])}, now)
	for _, age := range ages[1:] {
		cur := timeDecay(&model.Email{IsUnread: true, ReceivedAt: now.Add(-age)}, now)
		if cur > prev {
			t.Errorf("decay increased with age: age=%v got %v after %v", age, cur, prev)
		}
		prev = cur
	}

	// Read emails do not get the old-age penalty.
	if got := timeDecay(&model.Email{IsUnread: false, ReceivedAt: now.Add(-10 * 24 * time.Hour)}, now); got != 0 {
		t.Errorf("read email decayed: %v", got)
	}
}

func TestSenderReputationBounds(t *testing.T) {
	cases := []struct {
		name  string
		stats model.SenderStats
		min   float64
		max   float64
	}{
		{"no history", model.SenderStats{}, 0, 0},
		{"all positive", model.SenderStats{PositiveCount: 20}, 15, 15},
		{"all negative", model.SenderStats{NegativeCount: 20}, -10, -10},
		{"small sample damped", model.SenderStats{PositiveCount: 1}, 0, 3.01},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := senderReputation(tc.stats)
			if got < tc.min || got > tc.max {
				t.Errorf("senderReputation(%+v)=%v, want in [%v, %v]", tc.stats, got, tc.min, tc.max)
			}
		})
	}
}

func TestPatternAdjustmentClamped(t *testing.T) {
	email := &model.Email{Sender: "x@spam.biz", Subject: "offer", Body: "offer"}
	var patterns []model.LearnedPattern
	for i := 0; i < 10; i++ {
		patterns = append(patterns, model.LearnedPattern{
			PatternType: model.PatternDomain, PatternValue: "spam.biz",
			ScoreImpact: -50, ConfidenceScore: 1, SampleCount: 10,
		})
	}
	if got := patternAdjustment(email, patterns); got != -50 {
		t.Errorf("aggregate adjustment=%v, want clamped -50", got)
	}
}
