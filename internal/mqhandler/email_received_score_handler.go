package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "mailtriage/contracts/mq"
	"mailtriage/internal/service"
	"mailtriage/pkg/util"
)

const maxScoreRetries = 5

// DLQSink receives messages that exhausted their retries.
type DLQSink interface {
	PublishToDLQ(routingKey string, payload []byte, originalError string) error
}

// EmailReceivedScoreHandler scores newly ingested emails. Idempotent: the
// score upsert makes re-delivery harmless, the redis deduper just cuts the
// duplicate work.
type EmailReceivedScoreHandler struct {
	scores       *service.ScoreService
	deduper      *util.Deduper
	retryCounter *util.RetryCounter
	dlq          DLQSink
	logger       *zap.Logger
}

func NewEmailReceivedScoreHandler(
	scores *service.ScoreService,
	deduper *util.Deduper,
	retryCounter *util.RetryCounter,
	dlq DLQSink,
	logger *zap.Logger,
) *EmailReceivedScoreHandler {
	return &EmailReceivedScoreHandler{
		scores:       scores,
		deduper:      deduper,
		retryCounter: retryCounter,
		dlq:          dlq,
		logger:       logger,
	}
}

// Handle processes one email.received event. Returns an error only for
// retryable failures below the retry ceiling; everything else is acked.
func (h *EmailReceivedScoreHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.EmailReceivedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal email.received payload, dropping",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		return nil
	}

	h.logger.Info("Processing email.received",
		zap.Int("email_id", p.EmailID),
		zap.Int("user_id", p.UserID),
	)

	if existing, err := h.scores.GetScore(ctx, p.UserID, p.EmailID); err == nil && existing != nil {
		h.logger.Debug("Email already scored, skipping",
			zap.Int("email_id", p.EmailID),
		)
		return nil
	}

	if !h.deduper.AcquireOnce(ctx, "score", p.EmailID) {
		h.logger.Info("Skipped duplicated score event",
			zap.Int("email_id", p.EmailID),
			zap.Int("user_id", p.UserID),
		)
		return nil
	}

	retryKey := util.FormatRetryKey("score", p.EmailID)
	retryCount, err := h.retryCounter.IncrementAndGet(ctx, retryKey)
	if err != nil {
		h.logger.Warn("Failed to get retry count, continuing anyway",
			zap.Int("email_id", p.EmailID),
			zap.Error(err),
		)
		retryCount = 1
	}

	if _, _, err := h.scores.ScoreEmail(ctx, p.UserID, p.EmailID); err != nil {
		isRetryable, errType := util.IsRetryableError(err)
		h.logger.Error("Failed to score email",
			zap.Int("email_id", p.EmailID),
			zap.String("error_type", errType),
			zap.Bool("retryable", isRetryable),
			zap.Int64("retry_count", retryCount),
			zap.Error(err),
		)

		if util.ShouldRetry(retryCount, maxScoreRetries, isRetryable) {
			// Release the dedup hold so the redelivery is processed.
			h.deduper.Release(ctx, "score", p.EmailID)
			return fmt.Errorf("scoring email %d: %w", p.EmailID, err)
		}

		// Exhausted or non-retryable: park it on the DLQ and ack. The email
		// stays visible through the backfill path.
		if h.dlq != nil {
			if dlqErr := h.dlq.PublishToDLQ(mqcontracts.RoutingEmailReceived, raw, err.Error()); dlqErr != nil {
				h.logger.Error("Failed to publish to DLQ",
					zap.Int("email_id", p.EmailID),
					zap.Error(dlqErr),
				)
			}
		}
		_ = h.retryCounter.Reset(ctx, retryKey)
		return nil
	}

	_ = h.retryCounter.Reset(ctx, retryKey)
	return nil
}
