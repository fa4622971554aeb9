package learning

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/pkg/metrics"
)

// PatternStore reads and writes learned patterns.
type PatternStore interface {
	Get(ctx context.Context, userID int, ptype model.PatternType, value string) (*model.LearnedPattern, error)
	Upsert(ctx context.Context, p *model.LearnedPattern) error
}

// VIPStore reads and writes VIP sender records.
type VIPStore interface {
	Get(ctx context.Context, userID int, address string) (*model.VIPSender, error)
	Upsert(ctx context.Context, v *model.VIPSender) error
}

// StatsStore atomically bumps per-sender interaction counts.
type StatsStore interface {
	Bump(ctx context.Context, userID int, address string, signal int, at time.Time) (model.SenderStats, error)
}

// Config names every learning threshold explicitly so each can be tested
// independently of the scoring math.
type Config struct {
	// PromotionConfidence is the VIP confidence a sender must reach.
	PromotionConfidence float64
	// PromotionMinSamples is the minimum interaction count before a sender
	// can be promoted, however positive the ratio.
	PromotionMinSamples int
	// SuggestedBoost is the score boost attached to a suggested VIP.
	SuggestedBoost float64
}

func DefaultLoopConfig() Config {
	return Config{
		PromotionConfidence: 0.7,
		PromotionMinSamples: 5,
		SuggestedBoost:      20,
	}
}

// Outcome reports what one observation changed.
type Outcome struct {
	PatternUpdates []model.LearnedPattern `json:"pattern_updates"`
	VIPSuggestion  *model.VIPSender       `json:"vip_suggestion,omitempty"`
	VIPAutoApplied bool                   `json:"vip_auto_applied"`
}

// Loop consumes user actions and adjusts the pattern store.
type Loop struct {
	patterns PatternStore
	vips     VIPStore
	stats    StatsStore
	cfg      Config
	logger   *zap.Logger
}

func NewLoop(patterns PatternStore, vips VIPStore, stats StatsStore, cfg Config, logger *zap.Logger) *Loop {
	return &Loop{
		patterns: patterns,
		vips:     vips,
		stats:    stats,
		cfg:      cfg,
		logger:   logger,
	}
}

// RecordAction applies one observed action for an email. Idempotency is the
// caller's concern (the MQ handler dedupes); the math here is a bounded
// nudge either way.
func (l *Loop) RecordAction(ctx context.Context, email *model.Email, prefs model.UserPrefs, action Action, now time.Time) (Outcome, error) {
	if !action.Valid() {
		return Outcome{}, fmt.Errorf("unknown feedback action %q", action)
	}
	if !prefs.EnablePatternLearning {
		return Outcome{}, nil
	}

	metrics.FeedbackApplied.WithLabelValues(string(action)).Inc()

	signal := action.Signal()
	if signal == 0 {
		return Outcome{}, nil
	}

	sender := model.NormalizeAddress(email.Sender)
	stats, err := l.stats.Bump(ctx, email.UserID, sender, signal, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to bump sender stats: %w", err)
	}

	var out Outcome

	senderPattern, err := l.nudgePattern(ctx, email.UserID, model.PatternSender, sender, signal, now)
	if err != nil {
		return Outcome{}, err
	}
	out.PatternUpdates = append(out.PatternUpdates, *senderPattern)

	if domain := email.SenderDomain(); domain != "" {
		domainPattern, err := l.nudgePattern(ctx, email.UserID, model.PatternDomain, domain, signal, now)
		if err != nil {
			return Outcome{}, err
		}
		out.PatternUpdates = append(out.PatternUpdates, *domainPattern)
	}

	if signal > 0 {
		if err := l.maybePromote(ctx, email.UserID, sender, stats, prefs, now, &out); err != nil {
			return Outcome{}, err
		}
	} else {
		if err := l.demoteVIP(ctx, email.UserID, sender, stats); err != nil {
			return Outcome{}, err
		}
	}

	return out, nil
}

// nudgePattern moves one pattern a bounded step toward the observed outcome.
func (l *Loop) nudgePattern(ctx context.Context, userID int, ptype model.PatternType, value string, signal int, now time.Time) (*model.LearnedPattern, error) {
	p, err := l.patterns.Get(ctx, userID, ptype, value)
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern: %w", err)
	}
	if p == nil {
		p = &model.LearnedPattern{
			UserID:       userID,
			PatternType:  ptype,
			PatternValue: value,
		}
	}

	p.ScoreImpact = nudgeImpact(p.ScoreImpact, signal)
	p.SuccessRate = updateSuccessRate(p.SuccessRate, p.SampleCount, signal > 0)
	p.SampleCount++
	p.ConfidenceScore = saturatingConfidence(p.SampleCount)
	p.LastSeenAt = now

	if err := l.patterns.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to upsert pattern: %w", err)
	}
	return p, nil
}

// maybePromote surfaces a sender as a suggested VIP once confidence crosses
// the promotion threshold over the minimum sample size. Promotion is
// explicit: the suggestion is only auto-confirmed when the user's policy
// allows it.
func (l *Loop) maybePromote(ctx context.Context, userID int, sender string, stats model.SenderStats, prefs model.UserPrefs, now time.Time, out *Outcome) error {
	total := stats.PositiveCount + stats.NegativeCount
	conf := vipConfidence(stats)
	if total < l.cfg.PromotionMinSamples || conf < l.cfg.PromotionConfidence {
		return nil
	}

	existing, err := l.vips.Get(ctx, userID, sender)
	if err != nil {
		return fmt.Errorf("failed to load vip: %w", err)
	}
	if existing != nil && existing.Confirmed {
		// Already a VIP: just refresh the learned confidence.
		existing.ConfidenceScore = conf
		return l.vips.Upsert(ctx, existing)
	}

	vip := existing
	if vip == nil {
		vip = &model.VIPSender{
			UserID:        userID,
			SenderAddress: sender,
			ScoreBoost:    l.cfg.SuggestedBoost,
			Source:        "learned",
			CreatedAt:     now,
		}
	}
	vip.ConfidenceScore = conf
	vip.Confirmed = prefs.AutoApplyVIPSuggestions
	vip.LastUsedAt = now

	if err := l.vips.Upsert(ctx, vip); err != nil {
		return fmt.Errorf("failed to upsert vip suggestion: %w", err)
	}

	out.VIPSuggestion = vip
	out.VIPAutoApplied = vip.Confirmed
	l.logger.Info("Sender crossed VIP promotion threshold",
		zap.Int("user_id", userID),
		zap.String("sender", sender),
		zap.Float64("confidence", conf),
		zap.Bool("auto_applied", vip.Confirmed),
	)
	return nil
}

// demoteVIP nudges a learned VIP's confidence down on negative signals.
// User-created VIPs are left alone.
func (l *Loop) demoteVIP(ctx context.Context, userID int, sender string, stats model.SenderStats) error {
	vip, err := l.vips.Get(ctx, userID, sender)
	if err != nil {
		return fmt.Errorf("failed to load vip: %w", err)
	}
	if vip == nil || vip.Source != "learned" {
		return nil
	}

	vip.ConfidenceScore = vipConfidence(stats)
	if vip.Confirmed && vip.ConfidenceScore < l.cfg.PromotionConfidence/2 {
		vip.Confirmed = false
		l.logger.Info("Learned VIP demoted",
			zap.Int("user_id", userID),
			zap.String("sender", sender),
			zap.Float64("confidence", vip.ConfidenceScore),
		)
	}
	return l.vips.Upsert(ctx, vip)
}
