package learning

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/model"
)

var loopNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type fakePatternStore struct {
	patterns map[string]*model.LearnedPattern
}

func newFakePatternStore() *fakePatternStore {
	return &fakePatternStore{patterns: make(map[string]*model.LearnedPattern)}
}

func patternKey(userID int, ptype model.PatternType, value string) string {
	return string(rune(userID)) + "|" + string(ptype) + "|" + value
}

func (s *fakePatternStore) Get(_ context.Context, userID int, ptype model.PatternType, value string) (*model.LearnedPattern, error) {
	p, ok := s.patterns[patternKey(userID, ptype, value)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *fakePatternStore) Upsert(_ context.Context, p *model.LearnedPattern) error {
	cp := *p
	s.patterns[patternKey(p.UserID, p.PatternType, p.PatternValue)] = &cp
	return nil
}

type fakeVIPStore struct {
	vips map[string]*model.VIPSender
}

func newFakeVIPStore() *fakeVIPStore {
	return &fakeVIPStore{vips: make(map[string]*model.VIPSender)}
}

func (s *fakeVIPStore) Get(_ context.Context, userID int, address string) (*model.VIPSender, error) {
	v, ok := s.vips[address]
	if !ok || v.UserID != userID {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (s *fakeVIPStore) Upsert(_ context.Context, v *model.VIPSender) error {
	cp := *v
	s.vips[v.SenderAddress] = &cp
	return nil
}

type fakeStatsStore struct {
	stats map[string]*model.SenderStats
}

func newFakeStatsStore() *fakeStatsStore {
	return &fakeStatsStore{stats: make(map[string]*model.SenderStats)}
}

func (s *fakeStatsStore) Bump(_ context.Context, userID int, address string, signal int, at time.Time) (model.SenderStats, error) {
	st, ok := s.stats[address]
	if !ok {
		st = &model.SenderStats{UserID: userID, SenderAddress: address}
		s.stats[address] = st
	}
	st.EmailCount++
	if signal > 0 {
		st.PositiveCount++
	} else if signal < 0 {
		st.NegativeCount++
	}
	st.LastSeenAt = at
	return *st, nil
}

type loopFixture struct {
	loop     *Loop
	patterns *fakePatternStore
	vips     *fakeVIPStore
	stats    *fakeStatsStore
}

func newLoopFixture() *loopFixture {
	f := &loopFixture{
		patterns: newFakePatternStore(),
		vips:     newFakeVIPStore(),
		stats:    newFakeStatsStore(),
	}
	f.loop = NewLoop(f.patterns, f.vips, f.stats, DefaultLoopConfig(), zap.NewNop())
	return f
}

func learningEmail(sender string) *model.Email {
	return &model.Email{
		UserID:    1,
		MessageID: "msg-1",
		Sender:    sender,
		Subject:   "project update",
	}
}

func learningPrefs() model.UserPrefs {
	p := model.DefaultPrefs(1)
	return p
}

func TestRecordActionNudgesSenderAndDomainPatterns(t *testing.T) {
	f := newLoopFixture()
	out, err := f.loop.RecordAction(context.Background(), learningEmail("Boss@Corp.com"), learningPrefs(), ActionStar, loopNow)
	if err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	if len(out.PatternUpdates) != 2 {
		t.Fatalf("expected sender and domain updates, got %d", len(out.PatternUpdates))
	}

	sp := out.PatternUpdates[0]
	if sp.PatternType != model.PatternSender || sp.PatternValue != "boss@corp.com" {
		t.Errorf("sender pattern = %s %q", sp.PatternType, sp.PatternValue)
	}
	if sp.ScoreImpact != impactStep {
		t.Errorf("sender impact = %v, want %v", sp.ScoreImpact, impactStep)
	}
	if sp.SampleCount != 1 {
		t.Errorf("sample count = %d, want 1", sp.SampleCount)
	}

	dp := out.PatternUpdates[1]
	if dp.PatternType != model.PatternDomain || dp.PatternValue != "corp.com" {
		t.Errorf("domain pattern = %s %q", dp.PatternType, dp.PatternValue)
	}
}

func TestRecordActionNegativeSignalPushesImpactDown(t *testing.T) {
	f := newLoopFixture()
	email := learningEmail("noise@spam.example")
	prefs := learningPrefs()

	for i := 0; i < 3; i++ {
		if _, err := f.loop.RecordAction(context.Background(), email, prefs, ActionArchive, loopNow); err != nil {
			t.Fatalf("RecordAction: %v", err)
		}
	}

	p, _ := f.patterns.Get(context.Background(), 1, model.PatternSender, "noise@spam.example")
	if p == nil {
		t.Fatal("expected learned sender pattern")
	}
	if p.ScoreImpact != -3*impactStep {
		t.Errorf("impact = %v, want %v", p.ScoreImpact, -3*impactStep)
	}
	if p.SuccessRate != 0 {
		t.Errorf("success rate = %v, want 0", p.SuccessRate)
	}
}

func TestPatternConfidenceGrowsMonotonically(t *testing.T) {
	f := newLoopFixture()
	email := learningEmail("boss@corp.com")
	prefs := learningPrefs()

	prev := 0.0
	for i := 0; i < 10; i++ {
		out, err := f.loop.RecordAction(context.Background(), email, prefs, ActionReply, loopNow)
		if err != nil {
			t.Fatalf("RecordAction: %v", err)
		}
		conf := out.PatternUpdates[0].ConfidenceScore
		if conf <= prev {
			t.Fatalf("confidence not increasing at sample %d: %v <= %v", i+1, conf, prev)
		}
		if conf >= 1 {
			t.Fatalf("confidence must stay below 1, got %v", conf)
		}
		prev = conf
	}
}

func TestPatternImpactBounded(t *testing.T) {
	f := newLoopFixture()
	email := learningEmail("boss@corp.com")
	prefs := learningPrefs()

	for i := 0; i < 100; i++ {
		if _, err := f.loop.RecordAction(context.Background(), email, prefs, ActionStar, loopNow); err != nil {
			t.Fatalf("RecordAction: %v", err)
		}
	}

	p, _ := f.patterns.Get(context.Background(), 1, model.PatternSender, "boss@corp.com")
	if p.ScoreImpact > 50 {
		t.Errorf("impact %v exceeds cap", p.ScoreImpact)
	}
}

func TestVIPPromotionIsSuggestedNotSilent(t *testing.T) {
	f := newLoopFixture()
	email := learningEmail("boss@corp.com")
	prefs := learningPrefs() // AutoApplyVIPSuggestions defaults off

	var suggestion *model.VIPSender
	for i := 0; i < 10; i++ {
		out, err := f.loop.RecordAction(context.Background(), email, prefs, ActionReply, loopNow)
		if err != nil {
			t.Fatalf("RecordAction: %v", err)
		}
		if out.VIPSuggestion != nil {
			suggestion = out.VIPSuggestion
			if out.VIPAutoApplied {
				t.Fatal("suggestion must not be auto-applied without the pref")
			}
			break
		}
	}
	if suggestion == nil {
		t.Fatal("expected a VIP suggestion after sustained positive signals")
	}
	if suggestion.Confirmed {
		t.Error("suggested VIP must start unconfirmed")
	}
	if suggestion.Source != "learned" {
		t.Errorf("source = %q, want learned", suggestion.Source)
	}
	if suggestion.ConfidenceScore < DefaultLoopConfig().PromotionConfidence {
		t.Errorf("confidence %v below promotion threshold", suggestion.ConfidenceScore)
	}
}

func TestVIPPromotionAutoAppliesWhenEnabled(t *testing.T) {
	f := newLoopFixture()
	email := learningEmail("boss@corp.com")
	prefs := learningPrefs()
	prefs.AutoApplyVIPSuggestions = true

	applied := false
	for i := 0; i < 10; i++ {
		out, err := f.loop.RecordAction(context.Background(), email, prefs, ActionReply, loopNow)
		if err != nil {
			t.Fatalf("RecordAction: %v", err)
		}
		if out.VIPAutoApplied {
			applied = true
			if !out.VIPSuggestion.Confirmed {
				t.Error("auto-applied VIP must be confirmed")
			}
			break
		}
	}
	if !applied {
		t.Fatal("expected auto-applied VIP with the pref enabled")
	}
}

func TestNoPromotionBelowMinSamples(t *testing.T) {
	f := newLoopFixture()
	email := learningEmail("new@corp.com")
	prefs := learningPrefs()

	for i := 0; i < DefaultLoopConfig().PromotionMinSamples-1; i++ {
		out, err := f.loop.RecordAction(context.Background(), email, prefs, ActionReply, loopNow)
		if err != nil {
			t.Fatalf("RecordAction: %v", err)
		}
		if out.VIPSuggestion != nil {
			t.Fatalf("suggestion after only %d samples", i+1)
		}
	}
}

func TestNegativeSignalsDemoteLearnedVIP(t *testing.T) {
	f := newLoopFixture()
	email := learningEmail("was-important@corp.com")
	prefs := learningPrefs()

	f.vips.vips["was-important@corp.com"] = &model.VIPSender{
		UserID:          1,
		SenderAddress:   "was-important@corp.com",
		ScoreBoost:      20,
		Source:          "learned",
		Confirmed:       true,
		ConfidenceScore: 0.8,
	}

	for i := 0; i < 10; i++ {
		if _, err := f.loop.RecordAction(context.Background(), email, prefs, ActionDelete, loopNow); err != nil {
			t.Fatalf("RecordAction: %v", err)
		}
	}

	vip, _ := f.vips.Get(context.Background(), 1, "was-important@corp.com")
	if vip.Confirmed {
		t.Error("learned VIP should be demoted after sustained negative signals")
	}
	if vip.ConfidenceScore >= 0.35 {
		t.Errorf("confidence = %v, want below demotion threshold", vip.ConfidenceScore)
	}
}

func TestUserVIPNeverDemoted(t *testing.T) {
	f := newLoopFixture()
	email := learningEmail("spouse@home.example")
	prefs := learningPrefs()

	f.vips.vips["spouse@home.example"] = &model.VIPSender{
		UserID:        1,
		SenderAddress: "spouse@home.example",
		ScoreBoost:    40,
		Source:        "user",
		Confirmed:     true,
	}

	for i := 0; i < 10; i++ {
		if _, err := f.loop.RecordAction(context.Background(), email, prefs, ActionArchive, loopNow); err != nil {
			t.Fatalf("RecordAction: %v", err)
		}
	}

	vip, _ := f.vips.Get(context.Background(), 1, "spouse@home.example")
	if !vip.Confirmed {
		t.Error("user-created VIP must not be demoted by the loop")
	}
}

func TestLearningDisabledIsNoOp(t *testing.T) {
	f := newLoopFixture()
	prefs := learningPrefs()
	prefs.EnablePatternLearning = false

	out, err := f.loop.RecordAction(context.Background(), learningEmail("boss@corp.com"), prefs, ActionStar, loopNow)
	if err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	if len(out.PatternUpdates) != 0 || out.VIPSuggestion != nil {
		t.Error("disabled learning must not change state")
	}
	if len(f.patterns.patterns) != 0 {
		t.Error("pattern store written while learning disabled")
	}
}

func TestNeutralActionsDoNotNudge(t *testing.T) {
	f := newLoopFixture()
	out, err := f.loop.RecordAction(context.Background(), learningEmail("boss@corp.com"), learningPrefs(), ActionMarkRead, loopNow)
	if err != nil {
		t.Fatalf("RecordAction: %v", err)
	}
	if len(out.PatternUpdates) != 0 {
		t.Error("neutral action must not produce pattern updates")
	}
}

func TestUnknownActionRejected(t *testing.T) {
	f := newLoopFixture()
	if _, err := f.loop.RecordAction(context.Background(), learningEmail("boss@corp.com"), learningPrefs(), Action("shred"), loopNow); err == nil {
		t.Fatal("expected error for unknown action")
	}
}
