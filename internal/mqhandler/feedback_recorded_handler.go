package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "mailtriage/contracts/mq"
	"mailtriage/internal/learning"
	"mailtriage/internal/repository"
	"mailtriage/internal/service"
	"mailtriage/pkg/util"
)

// FeedbackRecordedHandler applies recorded user actions to the learning
// loop asynchronously, for feedback arriving from provider sync rather than
// the HTTP API.
type FeedbackRecordedHandler struct {
	feedback  *service.FeedbackService
	emailRepo *repository.EmailRepository
	deduper   *util.Deduper
	logger    *zap.Logger
}

func NewFeedbackRecordedHandler(
	feedback *service.FeedbackService,
	emailRepo *repository.EmailRepository,
	deduper *util.Deduper,
	logger *zap.Logger,
) *FeedbackRecordedHandler {
	return &FeedbackRecordedHandler{
		feedback:  feedback,
		emailRepo: emailRepo,
		deduper:   deduper,
		logger:    logger,
	}
}

func (h *FeedbackRecordedHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.FeedbackRecordedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal feedback.recorded payload, dropping",
			zap.Error(err),
			zap.String("raw_payload", string(raw)),
		)
		return nil
	}

	action := learning.Action(p.Action)
	if !action.Valid() {
		h.logger.Warn("Unknown feedback action, dropping",
			zap.String("action", p.Action),
			zap.Int("email_id", p.EmailID),
		)
		return nil
	}

	// The learning nudge is not idempotent, so duplicates must be dropped
	// here rather than absorbed downstream.
	if !h.deduper.AcquireOnce(ctx, "feedback:"+p.Action, p.EmailID) {
		h.logger.Info("Skipped duplicated feedback event",
			zap.Int("email_id", p.EmailID),
			zap.String("action", p.Action),
		)
		return nil
	}

	email, err := h.emailRepo.GetByID(ctx, p.UserID, p.EmailID)
	if err != nil {
		isRetryable, errType := util.IsRetryableError(err)
		h.logger.Error("Failed to load email for feedback",
			zap.Int("email_id", p.EmailID),
			zap.String("error_type", errType),
			zap.Error(err),
		)
		if isRetryable {
			h.deduper.Release(ctx, "feedback:"+p.Action, p.EmailID)
			return err
		}
		return nil
	}
	if email == nil {
		h.logger.Warn("Feedback for unknown email, dropping",
			zap.Int("email_id", p.EmailID),
			zap.Int("user_id", p.UserID),
		)
		return nil
	}

	if _, err := h.feedback.Apply(ctx, email, action, p.Category); err != nil {
		isRetryable, errType := util.IsRetryableError(err)
		h.logger.Error("Failed to apply feedback",
			zap.Int("email_id", p.EmailID),
			zap.String("action", p.Action),
			zap.String("error_type", errType),
			zap.Bool("retryable", isRetryable),
			zap.Error(err),
		)
		if isRetryable {
			h.deduper.Release(ctx, "feedback:"+p.Action, p.EmailID)
			return fmt.Errorf("applying feedback for email %d: %w", p.EmailID, err)
		}
		return nil
	}

	return nil
}
