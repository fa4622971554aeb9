package ai

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/pkg/circuitbreaker"
	"mailtriage/pkg/metrics"
	"mailtriage/pkg/util"
)

// UsageSink persists per-attempt usage records for budget and observability.
type UsageSink interface {
	Record(ctx context.Context, entry model.AIUsageEntry) error
}

// Invoker drives the AI capability: per-call timeout, bounded retries with
// exponential backoff, fallback to a cheaper model, all behind the circuit
// breaker. Rule-based-only fallback is the caller's job; the invoker just
// reports failure.
type Invoker struct {
	capability Capability
	breaker    *circuitbreaker.CircuitBreaker
	cfg        Config
	usage      UsageSink
	logger     *zap.Logger
}

func NewInvoker(capability Capability, breaker *circuitbreaker.CircuitBreaker, cfg Config, usage UsageSink, logger *zap.Logger) *Invoker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Invoker{
		capability: capability,
		breaker:    breaker,
		cfg:        cfg,
		usage:      usage,
		logger:     logger,
	}
}

// EstimateCents exposes the config estimate for the tier router.
func (inv *Invoker) EstimateCents(promptLen int) int {
	return inv.cfg.EstimateCents(promptLen)
}

// Analyze runs the full invocation policy for one email. Returns
// circuitbreaker.ErrOpen (wrapped) when the breaker fast-fails, so callers
// can tell "AI unavailable" apart from a capability error.
func (inv *Invoker) Analyze(ctx context.Context, userID, emailID int, prompt string) (*Result, error) {
	models := []string{inv.cfg.PrimaryModel}
	if inv.cfg.FallbackModel != "" && inv.cfg.FallbackModel != inv.cfg.PrimaryModel {
		models = append(models, inv.cfg.FallbackModel)
	}

	var lastErr error
	for _, mdl := range models {
		result, err := inv.tryModel(ctx, userID, emailID, prompt, mdl)
		if err == nil {
			return result, nil
		}
		if _, errType := util.IsRetryableError(err); errType == "breaker_open" {
			return nil, fmt.Errorf("ai invocation: %w", err)
		}
		lastErr = err
		inv.logger.Warn("Model exhausted, trying fallback",
			zap.String("model", mdl),
			zap.Int("email_id", emailID),
			zap.Error(err),
		)
	}
	return nil, fmt.Errorf("all models failed: %w", lastErr)
}

// tryModel attempts one model with bounded retries and backoff.
func (inv *Invoker) tryModel(ctx context.Context, userID, emailID int, prompt, mdl string) (*Result, error) {
	var lastErr error

	for attempt := 1; attempt <= inv.cfg.MaxAttempts; attempt++ {
		result, err := inv.attempt(ctx, userID, emailID, prompt, mdl)
		if err == nil {
			return result, nil
		}
		lastErr = err

		retryable, errType := util.IsRetryableError(err)
		if errType == "breaker_open" || !retryable {
			return nil, err
		}

		if attempt < inv.cfg.MaxAttempts {
			backoff := inv.cfg.BackoffBase << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

// attempt is a single capability call under the breaker with its own timeout.
func (inv *Invoker) attempt(ctx context.Context, userID, emailID int, prompt, mdl string) (*Result, error) {
	var (
		analysis Analysis
		usage    Usage
	)

	start := time.Now()
	err := inv.breaker.Execute(func() error {
		callCtx, cancel := context.WithTimeout(ctx, inv.cfg.CallTimeout)
		defer cancel()

		var callErr error
		analysis, usage, callErr = inv.capability.Invoke(callCtx, prompt, mdl, inv.cfg.MaxTokens)
		return callErr
	})
	latency := time.Since(start)
	metrics.SetBreakerState(int(inv.breaker.GetState()))

	costCents := inv.cfg.CostCents(mdl, usage)

	entry := model.AIUsageEntry{
		UserID:       userID,
		EmailID:      emailID,
		Model:        mdl,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		CostCents:    costCents,
		LatencyMS:    latency.Milliseconds(),
		Success:      err == nil,
		CreatedAt:    time.Now(),
	}

	if err != nil {
		_, entry.ErrorType = util.IsRetryableError(err)
		metrics.RecordAICall(mdl, "error", latency, costCents)
		inv.recordUsage(ctx, entry)
		inv.logger.Warn("AI invocation attempt failed",
			zap.String("model", mdl),
			zap.Int("email_id", emailID),
			zap.String("error_type", entry.ErrorType),
			zap.Int64("tokens", usage.TotalTokens()),
			zap.Int("cost_cents", costCents),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.RecordAICall(mdl, "success", latency, costCents)
	inv.recordUsage(ctx, entry)
	inv.logger.Info("AI invocation succeeded",
		zap.String("model", mdl),
		zap.Int("email_id", emailID),
		zap.Int64("input_tokens", usage.InputTokens),
		zap.Int64("output_tokens", usage.OutputTokens),
		zap.Int("cost_cents", costCents),
		zap.Duration("latency", latency),
	)

	return &Result{
		Analysis:  analysis,
		Usage:     usage,
		Model:     mdl,
		CostCents: costCents,
		Latency:   latency,
	}, nil
}

// recordUsage must never fail the invocation itself.
func (inv *Invoker) recordUsage(ctx context.Context, entry model.AIUsageEntry) {
	if inv.usage == nil {
		return
	}
	if err := inv.usage.Record(ctx, entry); err != nil {
		inv.logger.Warn("Failed to record AI usage entry",
			zap.Int("email_id", entry.EmailID),
			zap.Error(err),
		)
	}
}
