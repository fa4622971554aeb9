package model

import "testing"

func TestDefaultPrefsValid(t *testing.T) {
	p := DefaultPrefs(1)
	if err := p.Validate(); err != nil {
		t.Fatalf("default prefs should validate, got %v", err)
	}
	if !p.EnablePatternLearning {
		t.Error("pattern learning should default on")
	}
	if p.AutoApplyVIPSuggestions {
		t.Error("auto-apply VIP suggestions should default off")
	}
}

func TestPrefsValidateBounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*UserPrefs)
		ok     bool
	}{
		{"weight at upper bound", func(p *UserPrefs) { p.VIPSenderWeight = 2.0 }, true},
		{"weight above bound", func(p *UserPrefs) { p.UrgentKeywordsWeight = 2.1 }, false},
		{"negative weight", func(p *UserPrefs) { p.TimeDecayWeight = -0.1 }, false},
		{"high threshold too low", func(p *UserPrefs) { p.HighPriorityThreshold = 49 }, false},
		{"high threshold above 100", func(p *UserPrefs) { p.HighPriorityThreshold = 101 }, false},
		{"medium threshold too low", func(p *UserPrefs) { p.MediumPriorityThreshold = 9 }, false},
		{"medium threshold above 80", func(p *UserPrefs) { p.MediumPriorityThreshold = 81 }, false},
		{"medium at high", func(p *UserPrefs) { p.MediumPriorityThreshold = 70 }, false},
		{"negative budget", func(p *UserPrefs) { p.MaxAICostPerDayCents = -1 }, false},
		{"zero budget allowed", func(p *UserPrefs) { p.MaxAICostPerDayCents = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPrefs(1)
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestTierForThresholds(t *testing.T) {
	p := DefaultPrefs(1)

	tests := []struct {
		score float64
		want  Tier
	}{
		{100, TierHigh},
		{70, TierHigh},
		{69.9, TierMedium},
		{40, TierMedium},
		{39.9, TierLow},
		{0, TierLow},
	}
	for _, tt := range tests {
		if got := p.TierFor(tt.score); got != tt.want {
			t.Errorf("TierFor(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestTierForCustomThresholds(t *testing.T) {
	p := DefaultPrefs(1)
	p.HighPriorityThreshold = 80
	p.MediumPriorityThreshold = 20

	if got := p.TierFor(75); got != TierMedium {
		t.Errorf("TierFor(75) = %v, want medium with raised high threshold", got)
	}
	if got := p.TierFor(25); got != TierMedium {
		t.Errorf("TierFor(25) = %v, want medium with lowered medium threshold", got)
	}
}
