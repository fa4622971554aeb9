package digest

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/model"
)

var digestWeek = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC) // a Monday

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()
	tests := []struct {
		name  string
		email model.Email
		want  string
	}{
		{
			name:  "flash sale",
			email: model.Email{Sender: "promo@store.com", Subject: "50% OFF Flash Sale"},
			want:  model.CategoryMarketing,
		},
		{
			name:  "promotions label",
			email: model.Email{Sender: "news@store.com", Subject: "hello", Labels: []string{"CATEGORY_PROMOTIONS"}},
			want:  model.CategoryMarketing,
		},
		{
			name:  "newsletter subject",
			email: model.Email{Sender: "hello@curious.dev", Subject: "Weekly Roundup: Go internals"},
			want:  model.CategoryNewsletter,
		},
		{
			name:  "unsubscribe footer without other signals",
			email: model.Email{Sender: "updates@blog.example", Subject: "New post", Body: "Read more... unsubscribe here"},
			want:  model.CategoryNewsletter,
		},
		{
			name:  "social network",
			email: model.Email{Sender: "notification@facebookmail.com", Subject: "You have 3 new notifications"},
			want:  model.CategorySocial,
		},
		{
			name:  "automated sender",
			email: model.Email{Sender: "noreply@ci.example", Subject: "Build #1042 passed"},
			want:  model.CategoryAutomated,
		},
		{
			name:  "plain mail",
			email: model.Email{Sender: "colleague@corp.com", Subject: "lunch?"},
			want:  model.CategoryOther,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(&tt.email); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnsubscribeConfidenceFrequentSpamIsSafe(t *testing.T) {
	w := senderWeek{
		sender:   "spam@x.com",
		domain:   "x.com",
		category: model.CategoryMarketing,
		count:    10,
		hasUnsub: true,
	}
	conf := unsubscribeConfidence(w)
	if conf <= SafeConfidence {
		t.Errorf("confidence = %v, want > %v", conf, SafeConfidence)
	}
}

func TestUnsubscribeConfidenceMonotoneInFrequency(t *testing.T) {
	prev := -1.0
	for count := 1; count <= 15; count++ {
		w := senderWeek{domain: "x.com", category: model.CategoryMarketing, count: count, hasUnsub: true}
		conf := unsubscribeConfidence(w)
		if conf < prev {
			t.Fatalf("confidence decreased at count %d: %v < %v", count, conf, prev)
		}
		prev = conf
	}
}

func TestUnsubscribeConfidencePenalizesContentRichDomains(t *testing.T) {
	base := senderWeek{domain: "x.com", category: model.CategoryNewsletter, count: 6, hasUnsub: true}
	rich := base
	rich.domain = "author.substack.com"
	if got, want := unsubscribeConfidence(rich), unsubscribeConfidence(base)-0.25; got != want {
		t.Errorf("content-rich confidence = %v, want %v", got, want)
	}
}

func TestUnsubscribeConfidencePenalizesEngagement(t *testing.T) {
	w := senderWeek{domain: "x.com", category: model.CategoryMarketing, count: 10, hasUnsub: true}
	opened := w
	opened.anyOpened = true
	if unsubscribeConfidence(opened) >= unsubscribeConfidence(w) {
		t.Error("opened mail must lower unsubscribe confidence")
	}
}

func TestUnsubscribeConfidenceBounded(t *testing.T) {
	w := senderWeek{domain: "x.com", category: model.CategoryMarketing, count: 1000, hasUnsub: true}
	if conf := unsubscribeConfidence(w); conf > 1 {
		t.Errorf("confidence = %v, want <= 1", conf)
	}
	empty := senderWeek{domain: "author.substack.com", count: 1, anyOpened: true}
	if conf := unsubscribeConfidence(empty); conf < 0 {
		t.Errorf("confidence = %v, want >= 0", conf)
	}
}

type fakeScoreSource struct {
	emails []model.Email
	calls  int
}

func (s *fakeScoreSource) LowTierEmails(_ context.Context, _ int, _, _ time.Time) ([]model.Email, error) {
	s.calls++
	return s.emails, nil
}

type fakeDigestStore struct {
	digests map[string]*model.WeeklyDigest
	upserts int
}

func newFakeDigestStore() *fakeDigestStore {
	return &fakeDigestStore{digests: make(map[string]*model.WeeklyDigest)}
}

func digestKey(userID int, weekStart time.Time) string {
	return fmt.Sprintf("%d|%s", userID, weekStart.Format("2006-01-02"))
}

func (s *fakeDigestStore) GetByWeek(_ context.Context, userID int, weekStart time.Time) (*model.WeeklyDigest, error) {
	d, ok := s.digests[digestKey(userID, weekStart)]
	if !ok {
		return nil, nil
	}
	return d, nil
}

func (s *fakeDigestStore) Upsert(_ context.Context, d *model.WeeklyDigest) (*model.WeeklyDigest, error) {
	s.upserts++
	d.ID = s.upserts
	s.digests[digestKey(d.UserID, d.WeekStart)] = d
	return d, nil
}

func promoEmail(sender, subject string, n int) []model.Email {
	out := make([]model.Email, n)
	for i := range out {
		out[i] = model.Email{
			UserID:     1,
			MessageID:  fmt.Sprintf("%s-%d", sender, i),
			Sender:     sender,
			Subject:    subject,
			Body:       "Huge sale! Click to unsubscribe.",
			IsUnread:   true,
			ReceivedAt: digestWeek.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func newTestAggregator(emails []model.Email) (*Aggregator, *fakeScoreSource, *fakeDigestStore) {
	source := &fakeScoreSource{emails: emails}
	store := newFakeDigestStore()
	agg := NewAggregator(source, store, NewKeywordClassifier(), zap.NewNop())
	return agg, source, store
}

func TestBuildDigestGroupsAndSuggests(t *testing.T) {
	emails := append(promoEmail("spam@x.com", "50% OFF everything", 10),
		model.Email{UserID: 1, MessageID: "a-1", Sender: "alerts@ci.example", Subject: "Build passed", IsUnread: true},
	)
	agg, _, _ := newTestAggregator(emails)

	d, err := agg.BuildDigest(context.Background(), 1, digestWeek, false)
	if err != nil {
		t.Fatalf("BuildDigest: %v", err)
	}
	if d.TotalEmails != 11 {
		t.Errorf("total = %d, want 11", d.TotalEmails)
	}
	if d.Categories[model.CategoryMarketing].Count != 10 {
		t.Errorf("marketing count = %d, want 10", d.Categories[model.CategoryMarketing].Count)
	}
	if d.Categories[model.CategoryAutomated].Count != 1 {
		t.Errorf("automated count = %d, want 1", d.Categories[model.CategoryAutomated].Count)
	}
	if len(d.SafeToUnsubscribe) != 1 || d.SafeToUnsubscribe[0].Sender != "spam@x.com" {
		t.Fatalf("safe_to_unsubscribe = %+v", d.SafeToUnsubscribe)
	}
	if d.SafeToUnsubscribe[0].Confidence <= SafeConfidence {
		t.Errorf("confidence = %v, want > %v", d.SafeToUnsubscribe[0].Confidence, SafeConfidence)
	}
}

func TestBuildDigestIdempotentPerWeek(t *testing.T) {
	agg, source, store := newTestAggregator(promoEmail("spam@x.com", "SALE", 5))

	first, err := agg.BuildDigest(context.Background(), 1, digestWeek, false)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	second, err := agg.BuildDigest(context.Background(), 1, digestWeek, false)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("second build must return the stored digest")
	}
	if source.calls != 1 {
		t.Errorf("source queried %d times, want 1", source.calls)
	}
	if store.upserts != 1 {
		t.Errorf("upserts = %d, want 1", store.upserts)
	}
}

func TestBuildDigestForceRegenerates(t *testing.T) {
	agg, source, store := newTestAggregator(promoEmail("spam@x.com", "SALE", 5))

	if _, err := agg.BuildDigest(context.Background(), 1, digestWeek, false); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := agg.BuildDigest(context.Background(), 1, digestWeek, true); err != nil {
		t.Fatalf("forced build: %v", err)
	}
	if source.calls != 2 {
		t.Errorf("source queried %d times, want 2", source.calls)
	}
	if store.upserts != 2 {
		t.Errorf("upserts = %d, want 2", store.upserts)
	}
}

func TestBuildDigestCancellationCommitsNothing(t *testing.T) {
	agg, _, store := newTestAggregator(promoEmail("spam@x.com", "SALE", 50))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := agg.BuildDigest(ctx, 1, digestWeek, false); err == nil {
		t.Fatal("expected cancellation error")
	}
	if store.upserts != 0 {
		t.Errorf("cancelled run committed %d digests", store.upserts)
	}
}

func TestBuildDigestProposesBulkActionsPerDomain(t *testing.T) {
	emails := append(promoEmail("deals@x.com", "BIG SALE", 10),
		promoEmail("offers@x.com", "MEGA SALE", 10)...)
	agg, _, _ := newTestAggregator(emails)

	d, err := agg.BuildDigest(context.Background(), 1, digestWeek, false)
	if err != nil {
		t.Fatalf("BuildDigest: %v", err)
	}
	if len(d.BulkActions) != 1 {
		t.Fatalf("bulk actions = %+v, want one for x.com", d.BulkActions)
	}
	ba := d.BulkActions[0]
	if ba.Domain != "x.com" || ba.Action != "unsubscribe" || len(ba.Senders) != 2 {
		t.Errorf("bulk action = %+v", ba)
	}
}

func TestBuildDigestSkipsInvalidEmailsWithPartialResult(t *testing.T) {
	emails := append(promoEmail("spam@x.com", "SALE", 10),
		model.Email{UserID: 1, MessageID: "broken", Sender: ""},
	)
	agg, _, _ := newTestAggregator(emails)

	d, err := agg.BuildDigest(context.Background(), 1, digestWeek, false)
	if err != nil {
		t.Fatalf("BuildDigest: %v", err)
	}
	if len(d.Errors) != 1 {
		t.Errorf("errors = %v, want one entry", d.Errors)
	}
	if len(d.SafeToUnsubscribe) != 1 {
		t.Error("valid senders must still be aggregated")
	}
}

func TestWeekStartOf(t *testing.T) {
	tests := []struct {
		in   time.Time
		want time.Time
	}{
		{time.Date(2025, 6, 2, 15, 4, 5, 0, time.UTC), digestWeek},  // Monday
		{time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC), digestWeek},   // Thursday
		{time.Date(2025, 6, 8, 23, 59, 59, 0, time.UTC), digestWeek}, // Sunday
	}
	for _, tt := range tests {
		if got := WeekStartOf(tt.in); !got.Equal(tt.want) {
			t.Errorf("WeekStartOf(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
