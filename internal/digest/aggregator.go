package digest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/pkg/metrics"
)

const maxSampleSubjects = 3

// ScoreSource yields the low-tier emails of one user's digest window.
type ScoreSource interface {
	LowTierEmails(ctx context.Context, userID int, from, to time.Time) ([]model.Email, error)
}

// DigestStore persists weekly digests, unique per (user, week_start).
type DigestStore interface {
	GetByWeek(ctx context.Context, userID int, weekStart time.Time) (*model.WeeklyDigest, error)
	Upsert(ctx context.Context, d *model.WeeklyDigest) (*model.WeeklyDigest, error)
}

// Aggregator builds the weekly digest from everything routed to the low
// tier. The digest is assembled fully in memory and committed with a single
// upsert, so a cancelled run leaves nothing partial behind.
type Aggregator struct {
	source     ScoreSource
	store      DigestStore
	classifier CategoryClassifier
	logger     *zap.Logger
}

func NewAggregator(source ScoreSource, store DigestStore, classifier CategoryClassifier, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		source:     source,
		store:      store,
		classifier: classifier,
		logger:     logger,
	}
}

// BuildDigest generates the digest for the week starting at weekStart.
// Without force it returns the stored digest when one already exists.
func (a *Aggregator) BuildDigest(ctx context.Context, userID int, weekStart time.Time, force bool) (*model.WeeklyDigest, error) {
	weekStart = WeekStartOf(weekStart)
	weekEnd := weekStart.AddDate(0, 0, 7)

	if !force {
		existing, err := a.store.GetByWeek(ctx, userID, weekStart)
		if err != nil {
			return nil, fmt.Errorf("failed to look up existing digest: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	emails, err := a.source.LowTierEmails(ctx, userID, weekStart, weekEnd)
	if err != nil {
		metrics.DigestRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load low-tier emails: %w", err)
	}

	d := &model.WeeklyDigest{
		UserID:      userID,
		WeekStart:   weekStart,
		WeekEnd:     weekEnd,
		TotalEmails: len(emails),
		Categories:  make(map[string]model.DigestCategory),
		GeneratedAt: time.Now().UTC(),
	}

	weeks := make(map[string]*senderWeek)
	for i := range emails {
		if err := ctx.Err(); err != nil {
			metrics.DigestRuns.WithLabelValues("cancelled").Inc()
			return nil, err
		}
		e := &emails[i]
		if err := e.Validate(); err != nil {
			d.Errors = append(d.Errors, fmt.Sprintf("email %s skipped: %v", e.MessageID, err))
			continue
		}
		a.fold(weeks, e)
	}

	a.buildCategories(d, weeks)
	a.buildSuggestions(d, weeks)
	a.buildBulkActions(d, weeks)

	stored, err := a.store.Upsert(ctx, d)
	if err != nil {
		metrics.DigestRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to persist digest: %w", err)
	}

	metrics.DigestRuns.WithLabelValues("ok").Inc()
	a.logger.Info("Weekly digest generated",
		zap.Int("user_id", userID),
		zap.Time("week_start", weekStart),
		zap.Int("total_emails", d.TotalEmails),
		zap.Int("safe_to_unsubscribe", len(d.SafeToUnsubscribe)),
		zap.Int("needs_review", len(d.NeedsReview)),
	)
	return stored, nil
}

// fold merges one email into its sender's weekly aggregate.
func (a *Aggregator) fold(weeks map[string]*senderWeek, e *model.Email) {
	sender := model.NormalizeAddress(e.Sender)
	w, ok := weeks[sender]
	if !ok {
		w = &senderWeek{
			sender:   sender,
			domain:   e.SenderDomain(),
			category: a.classifier.Classify(e),
		}
		weeks[sender] = w
	}
	w.count++
	if hasUnsubscribeSignal(e) {
		w.hasUnsub = true
	}
	if !e.IsUnread {
		w.anyOpened = true
	}
	if len(w.subjects) < maxSampleSubjects && e.Subject != "" {
		w.subjects = append(w.subjects, e.Subject)
	}
}

func (a *Aggregator) buildCategories(d *model.WeeklyDigest, weeks map[string]*senderWeek) {
	for _, w := range sortedWeeks(weeks) {
		cat := d.Categories[w.category]
		cat.Count += w.count
		cat.Senders = append(cat.Senders, w.sender)
		for _, s := range w.subjects {
			if len(cat.SampleSubjects) >= maxSampleSubjects {
				break
			}
			cat.SampleSubjects = append(cat.SampleSubjects, s)
		}
		d.Categories[w.category] = cat
	}
}

func (a *Aggregator) buildSuggestions(d *model.WeeklyDigest, weeks map[string]*senderWeek) {
	for _, w := range sortedWeeks(weeks) {
		conf := unsubscribeConfidence(*w)
		if conf < ReviewConfidence {
			continue
		}
		s := model.UnsubscribeSuggestion{
			Sender:     w.sender,
			Domain:     w.domain,
			Category:   w.category,
			EmailCount: w.count,
			Confidence: conf,
		}
		if conf > SafeConfidence {
			d.SafeToUnsubscribe = append(d.SafeToUnsubscribe, s)
		} else {
			d.NeedsReview = append(d.NeedsReview, s)
		}
	}
}

// buildBulkActions proposes one unsubscribe per domain where several
// suggested senders share it.
func (a *Aggregator) buildBulkActions(d *model.WeeklyDigest, weeks map[string]*senderWeek) {
	byDomain := make(map[string][]string)
	for _, s := range d.SafeToUnsubscribe {
		byDomain[s.Domain] = append(byDomain[s.Domain], s.Sender)
	}
	domains := make([]string, 0, len(byDomain))
	for domain, senders := range byDomain {
		if len(senders) >= 2 {
			domains = append(domains, domain)
		}
	}
	sort.Strings(domains)
	for _, domain := range domains {
		d.BulkActions = append(d.BulkActions, model.BulkActionProposal{
			Domain:  domain,
			Senders: byDomain[domain],
			Action:  "unsubscribe",
		})
	}
}

// sortedWeeks returns the aggregates in stable sender order so repeated
// generation of the same window produces identical digests.
func sortedWeeks(weeks map[string]*senderWeek) []*senderWeek {
	out := make([]*senderWeek, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sender < out[j].sender })
	return out
}

// WeekStartOf normalizes a timestamp to the preceding Monday at midnight UTC.
func WeekStartOf(t time.Time) time.Time {
	t = t.UTC()
	day := t.Truncate(24 * time.Hour)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
