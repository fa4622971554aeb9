package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	mqcontracts "mailtriage/contracts/mq"
	"mailtriage/internal/learning"
	"mailtriage/internal/model"
	"mailtriage/internal/repository"
	"mailtriage/pkg/trace"
)

// EventPublisher publishes domain events to the broker.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// FeedbackService accepts user actions, applies the learning loop and
// announces the feedback event for any downstream consumers.
type FeedbackService struct {
	loop      *learning.Loop
	emailRepo *repository.EmailRepository
	prefsRepo *repository.PrefsRepository
	publisher EventPublisher
	logger    *zap.Logger
}

func NewFeedbackService(
	loop *learning.Loop,
	emailRepo *repository.EmailRepository,
	prefsRepo *repository.PrefsRepository,
	publisher EventPublisher,
	logger *zap.Logger,
) *FeedbackService {
	return &FeedbackService{
		loop:      loop,
		emailRepo: emailRepo,
		prefsRepo: prefsRepo,
		publisher: publisher,
		logger:    logger,
	}
}

// Submit records one explicit user action against an email.
func (s *FeedbackService) Submit(ctx context.Context, userID, emailID int, action learning.Action, category string) (learning.Outcome, error) {
	email, err := s.emailRepo.GetByID(ctx, userID, emailID)
	if err != nil {
		return learning.Outcome{}, err
	}
	if email == nil {
		return learning.Outcome{}, fmt.Errorf("email %d not found for user %d", emailID, userID)
	}

	outcome, err := s.Apply(ctx, email, action, category)
	if err != nil {
		return learning.Outcome{}, err
	}

	payload := mqcontracts.FeedbackRecordedPayload{
		UserID:     userID,
		EmailID:    emailID,
		Action:     string(action),
		Category:   category,
		RecordedAt: time.Now().UTC(),
		TraceID:    trace.FromContext(ctx),
	}
	if err := s.publisher.Publish(mqcontracts.RoutingFeedbackRecorded, payload); err != nil {
		// Learning already applied; the event is best effort.
		s.logger.Warn("Failed to publish feedback event",
			zap.Int("email_id", emailID),
			zap.Error(err),
		)
	}

	return outcome, nil
}

// Apply runs the learning loop for an already-loaded email. Also the entry
// point for the MQ feedback handler.
func (s *FeedbackService) Apply(ctx context.Context, email *model.Email, action learning.Action, category string) (learning.Outcome, error) {
	prefs, err := s.prefsRepo.Get(ctx, email.UserID)
	if err != nil {
		return learning.Outcome{}, err
	}

	outcome, err := s.loop.RecordAction(ctx, email, prefs, action, time.Now().UTC())
	if err != nil {
		return learning.Outcome{}, err
	}

	if action == learning.ActionCategoryCorrection && category != "" {
		s.logger.Info("Category correction recorded",
			zap.Int("user_id", email.UserID),
			zap.Int("email_id", email.ID),
			zap.String("category", category),
		)
	}
	return outcome, nil
}
