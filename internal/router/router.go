package router

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"mailtriage/internal/ai"
	"mailtriage/internal/budget"
	"mailtriage/internal/model"
	"mailtriage/pkg/circuitbreaker"
	"mailtriage/pkg/metrics"
)

// Routing decision reasons, exposed in responses and metrics.
const (
	ReasonHighTier        = "high_tier"
	ReasonBudgetOK        = "budget_ok"
	ReasonBudgetExhausted = "budget_exhausted"
	ReasonBreakerOpen     = "breaker_open"
	ReasonAIFailed        = "ai_failed"
	ReasonLowTierDeferred = "low_tier_deferred"
)

// Analyzer is what the router needs from the AI invoker.
type Analyzer interface {
	Analyze(ctx context.Context, userID, emailID int, prompt string) (*ai.Result, error)
	EstimateCents(promptLen int) int
}

// AlertSink receives budget alert signals. Crossing the alert threshold is
// a signal, never a hard stop.
type AlertSink interface {
	BudgetAlert(ctx context.Context, b model.Budget) error
}

// Decision is the outcome of routing one scored email.
type Decision struct {
	Tier      model.Tier `json:"tier"`
	AIInvoked bool       `json:"ai_invoked"`
	Reason    string     `json:"reason"`
	Result    *ai.Result `json:"-"`
}

// Router applies the tier policy: high always gets AI (breaker permitting),
// medium gets AI only while the daily budget holds, low is deferred to the
// weekly aggregator.
type Router struct {
	ledger   budget.Ledger
	analyzer Analyzer
	alerts   AlertSink
	logger   *zap.Logger
}

func New(ledger budget.Ledger, analyzer Analyzer, alerts AlertSink, logger *zap.Logger) *Router {
	return &Router{
		ledger:   ledger,
		analyzer: analyzer,
		alerts:   alerts,
		logger:   logger,
	}
}

// Route decides and, when warranted, performs the AI invocation for a scored
// email. AI failure is never propagated as a routing failure: the caller
// keeps the rule-based score.
func (r *Router) Route(ctx context.Context, email *model.Email, score *model.ScoreRecord) (Decision, error) {
	switch score.Tier {
	case model.TierHigh:
		return r.routeHigh(ctx, email, score)
	case model.TierMedium:
		return r.routeMedium(ctx, email, score)
	default:
		metrics.RecordRoutingDecision(string(model.TierLow), ReasonLowTierDeferred)
		return Decision{Tier: model.TierLow, Reason: ReasonLowTierDeferred}, nil
	}
}

// routeHigh invokes AI regardless of budget state; the breaker protects
// against an unbounded-cost outage, not against correctly-prioritized spend.
func (r *Router) routeHigh(ctx context.Context, email *model.Email, score *model.ScoreRecord) (Decision, error) {
	prompt := ai.BuildPrompt(email)

	result, err := r.analyzer.Analyze(ctx, email.UserID, email.ID, prompt)
	if err != nil {
		reason := ReasonAIFailed
		if errors.Is(err, circuitbreaker.ErrOpen) {
			reason = ReasonBreakerOpen
		}
		metrics.RecordRoutingDecision(string(model.TierHigh), reason)
		r.logger.Warn("High-tier AI invocation failed, keeping rule-based score",
			zap.Int("email_id", email.ID),
			zap.String("reason", reason),
			zap.Error(err),
		)
		return Decision{Tier: model.TierHigh, Reason: reason}, nil
	}

	b, err := r.ledger.Spend(ctx, email.UserID, result.CostCents)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to record high-tier spend: %w", err)
	}
	r.maybeAlert(ctx, b, result.CostCents)

	metrics.RecordRoutingDecision(string(model.TierHigh), ReasonHighTier)
	return Decision{Tier: model.TierHigh, AIInvoked: true, Reason: ReasonHighTier, Result: result}, nil
}

func (r *Router) routeMedium(ctx context.Context, email *model.Email, score *model.ScoreRecord) (Decision, error) {
	prompt := ai.BuildPrompt(email)
	est := r.analyzer.EstimateCents(len(prompt))

	ok, err := r.ledger.Reserve(ctx, email.UserID, est)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to reserve budget: %w", err)
	}
	if !ok {
		// Budget exhaustion is a routing decision, not an error.
		metrics.RecordRoutingDecision(string(model.TierMedium), ReasonBudgetExhausted)
		r.logger.Info("Daily budget exhausted, falling back to rule-based score",
			zap.Int("user_id", email.UserID),
			zap.Int("email_id", email.ID),
		)
		return Decision{Tier: model.TierMedium, Reason: ReasonBudgetExhausted}, nil
	}

	result, err := r.analyzer.Analyze(ctx, email.UserID, email.ID, prompt)
	if err != nil {
		// Release the reservation: nothing was spent.
		if _, cerr := r.ledger.Commit(ctx, email.UserID, est, 0); cerr != nil {
			r.logger.Error("Failed to release budget reservation",
				zap.Int("user_id", email.UserID),
				zap.Error(cerr),
			)
		}
		reason := ReasonAIFailed
		if errors.Is(err, circuitbreaker.ErrOpen) {
			reason = ReasonBreakerOpen
		}
		metrics.RecordRoutingDecision(string(model.TierMedium), reason)
		return Decision{Tier: model.TierMedium, Reason: reason}, nil
	}

	b, err := r.ledger.Commit(ctx, email.UserID, est, result.CostCents)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to commit budget: %w", err)
	}
	r.maybeAlert(ctx, b, result.CostCents)

	metrics.RecordRoutingDecision(string(model.TierMedium), ReasonBudgetOK)
	return Decision{Tier: model.TierMedium, AIInvoked: true, Reason: ReasonBudgetOK, Result: result}, nil
}

// maybeAlert emits the alert signal when this spend crossed the threshold.
func (r *Router) maybeAlert(ctx context.Context, after model.Budget, spentCents int) {
	if r.alerts == nil || !after.OverAlertThreshold() {
		return
	}
	before := after
	before.DailySpentCents -= spentCents
	if before.OverAlertThreshold() {
		// Already over before this spend; alert only on the crossing.
		return
	}
	if err := r.alerts.BudgetAlert(ctx, after); err != nil {
		r.logger.Warn("Failed to emit budget alert",
			zap.Int("user_id", after.UserID),
			zap.Error(err),
		)
	}
}
