package scoring

import (
	"reflect"
	"testing"
	"time"

	"mailtriage/internal/model"
)

var testNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func baseEmail() *model.Email {
	return &model.Email{
		ID:         1,
		UserID:     1,
		MessageID:  "msg-1",
		Sender:     "someone@example.com",
		Subject:    "hello",
		Body:       "just checking in",
		ReceivedAt: testNow.Add(-1 * time.Hour),
	}
}

func TestScoreFinalIsClampedRaw(t *testing.T) {
	e := NewEngine(DefaultConfig())

	cases := []struct {
		name  string
		email *model.Email
		prof  Profile
	}{
		{"cold start", baseEmail(), EmptyProfile(1)},
		{
			"heavy boost",
			&model.Email{
				ID: 2, UserID: 1, MessageID: "m2",
				Sender:  "boss@company.com",
				Subject: "URGENT: deadline ASAP, action required immediately",
				Body:    "please review?", IsImportant: true, IsStarred: true, IsUnread: true,
				ReceivedAt: testNow.Add(-30 * time.Minute),
			},
			Profile{
				Prefs: model.DefaultPrefs(1),
				VIPs: map[string]model.VIPSender{
					"boss@company.com": {SenderAddress: "boss@company.com", ScoreBoost: 50, Confirmed: true},
				},
			},
		},
		{
			"heavy penalty",
			&model.Email{
				ID: 3, UserID: 1, MessageID: "m3",
				Sender:  "noreply@mailchimp.com",
				Subject: "50% OFF flash sale, limited time deal",
				Body:    "unsubscribe here, view in browser",
				Labels:  []string{"PROMOTIONS"},
				// Old and unread so the decay penalty also applies.
				IsUnread:   true,
				ReceivedAt: testNow.Add(-10 * 24 * time.Hour),
			},
			EmptyProfile(1),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.Score(tc.email, tc.prof, testNow)
			want := model.Clamp(rec.RawScore, 0, 100)
			if rec.FinalScore != want {
				t.Errorf("final=%v, want clamp(raw)=%v (raw=%v)", rec.FinalScore, want, rec.RawScore)
			}
			if got := rec.Factors.Total(); got != rec.RawScore {
				t.Errorf("raw=%v does not equal factor total %v", rec.RawScore, got)
			}
			if rec.Tier != tc.prof.Prefs.TierFor(rec.FinalScore) {
				t.Errorf("tier=%q, want %q", rec.Tier, tc.prof.Prefs.TierFor(rec.FinalScore))
			}
		})
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	e := NewEngine(DefaultConfig())
	email := baseEmail()
	prof := Profile{
		Prefs: model.DefaultPrefs(1),
		VIPs: map[string]model.VIPSender{
			"someone@example.com": {SenderAddress: "someone@example.com", ScoreBoost: 10, Confirmed: true},
		},
		Patterns: []model.LearnedPattern{
			{PatternType: model.PatternDomain, PatternValue: "example.com", ScoreImpact: 5, ConfidenceScore: 0.8, SampleCount: 4},
		},
		Stats: map[string]model.SenderStats{
			"someone@example.com": {PositiveCount: 4, NegativeCount: 1},
		},
	}

	first := e.Score(email, prof, testNow)
	second := e.Score(email, prof, testNow)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-scoring unchanged input diverged:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestColdStartNeverFails(t *testing.T) {
	e := NewEngine(DefaultConfig())
	rec := e.Score(baseEmail(), EmptyProfile(1), testNow)
	if rec.FinalScore < 0 || rec.FinalScore > 100 {
		t.Fatalf("cold-start score out of range: %v", rec.FinalScore)
	}
	if rec.Factors.VIPBoost != 0 || rec.Factors.PatternAdjustment != 0 || rec.Factors.SenderReputation != 0 {
		t.Errorf("cold start should have no learned contributions: %+v", rec.Factors)
	}
}

func TestVIPUrgentScenario(t *testing.T) {
	e := NewEngine(DefaultConfig())
	email := &model.Email{
		ID: 10, UserID: 1, MessageID: "m10",
		Sender:      "boss@company.com",
		Subject:     "URGENT: Client meeting moved to 2pm",
		IsImportant: true,
		IsUnread:    true,
		ReceivedAt:  testNow.Add(-10 * time.Minute),
	}
	prof := Profile{
		Prefs: model.DefaultPrefs(1),
		VIPs: map[string]model.VIPSender{
			"boss@company.com": {SenderAddress: "boss@company.com", ScoreBoost: 30, Confirmed: true},
		},
	}

	rec := e.Score(email, prof, testNow)

	// base + VIP + urgency + important, at minimum
	if rec.RawScore < 30+30+15+10 {
		t.Errorf("raw=%v, want >= %v", rec.RawScore, 30+30+15+10)
	}
	if rec.FinalScore > 100 {
		t.Errorf("final=%v exceeds clamp", rec.FinalScore)
	}
	if rec.Tier != model.TierHigh {
		t.Errorf("tier=%q, want high", rec.Tier)
	}
}

func TestPromotionalScenario(t *testing.T) {
	e := NewEngine(DefaultConfig())
	email := &model.Email{
		ID: 11, UserID: 1, MessageID: "m11",
		Sender:     "promo@store.com",
		Subject:    "50% OFF Flash Sale",
		Body:       "Click here to shop. Unsubscribe at any time.",
		Labels:     []string{"PROMOTIONS"},
		ReceivedAt: testNow.Add(-6 * time.Hour),
	}
	prof := EmptyProfile(1)

	rec := e.Score(email, prof, testNow)

	if rec.Factors.MarketingPenalty >= 0 {
		t.Errorf("expected marketing penalty, got %v", rec.Factors.MarketingPenalty)
	}
	if rec.FinalScore >= prof.Prefs.MediumPriorityThreshold {
		t.Errorf("final=%v, want below medium threshold %v", rec.FinalScore, prof.Prefs.MediumPriorityThreshold)
	}
	if rec.Tier != model.TierLow {
		t.Errorf("tier=%q, want low", rec.Tier)
	}
}

func TestIneligiblePatternsNeverInfluence(t *testing.T) {
	e := NewEngine(DefaultConfig())
	email := baseEmail()

	cases := []struct {
		name    string
		pattern model.LearnedPattern
	}{
		{"low confidence", model.LearnedPattern{
			PatternType: model.PatternDomain, PatternValue: "example.com",
			ScoreImpact: 40, ConfidenceScore: 0.5, SampleCount: 10,
		}},
		{"too few samples", model.LearnedPattern{
			PatternType: model.PatternDomain, PatternValue: "example.com",
			ScoreImpact: 40, ConfidenceScore: 0.9, SampleCount: 1,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prof := EmptyProfile(1)
			prof.Patterns = []model.LearnedPattern{tc.pattern}
			rec := e.Score(email, prof, testNow)
			if rec.Factors.PatternAdjustment != 0 {
				t.Errorf("ineligible pattern influenced score: %v", rec.Factors.PatternAdjustment)
			}
		})
	}
}

func TestTierMapping(t *testing.T) {
	prefs := model.DefaultPrefs(1) // medium=40, high=70

	cases := []struct {
		score float64
		want  model.Tier
	}{
		{0, model.TierLow},
		{39.9, model.TierLow},
		{40, model.TierMedium},
		{69.9, model.TierMedium},
		{70, model.TierHigh},
		{100, model.TierHigh},
	}
	for _, tc := range cases {
		if got := prefs.TierFor(tc.score); got != tc.want {
			t.Errorf("TierFor(%v)=%q, want %q", tc.score, got, tc.want)
		}
	}
}
