package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	mqcontracts "mailtriage/contracts/mq"
	"mailtriage/internal/digest"
	"mailtriage/internal/learning"
	"mailtriage/internal/model"
	"mailtriage/internal/repository"
	"mailtriage/pkg/trace"
)

var (
	ErrDigestDisabled = errors.New("weekly digest disabled for user")
	ErrDigestNotFound = errors.New("digest not found")
)

// DigestService wraps the aggregator with preference gates and closes the
// learning loop from digest actions.
type DigestService struct {
	aggregator *digest.Aggregator
	digestRepo *repository.DigestRepository
	prefsRepo  *repository.PrefsRepository
	userRepo   *repository.UserRepository
	feedback   *FeedbackService
	publisher  EventPublisher
	logger     *zap.Logger
}

func NewDigestService(
	aggregator *digest.Aggregator,
	digestRepo *repository.DigestRepository,
	prefsRepo *repository.PrefsRepository,
	userRepo *repository.UserRepository,
	feedback *FeedbackService,
	publisher EventPublisher,
	logger *zap.Logger,
) *DigestService {
	return &DigestService{
		aggregator: aggregator,
		digestRepo: digestRepo,
		prefsRepo:  prefsRepo,
		userRepo:   userRepo,
		feedback:   feedback,
		publisher:  publisher,
		logger:     logger,
	}
}

// Generate builds (or returns) the digest for one user's week.
func (s *DigestService) Generate(ctx context.Context, userID int, weekStart time.Time, force bool) (*model.WeeklyDigest, error) {
	prefs, err := s.prefsRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !prefs.EnableWeeklyDigest {
		return nil, ErrDigestDisabled
	}

	d, err := s.aggregator.BuildDigest(ctx, userID, weekStart, force)
	if err != nil {
		return nil, err
	}

	payload := mqcontracts.DigestReadyPayload{
		DigestID:    d.ID,
		UserID:      userID,
		WeekStart:   d.WeekStart,
		TotalEmails: d.TotalEmails,
		TraceID:     trace.FromContext(ctx),
	}
	if err := s.publisher.Publish(mqcontracts.RoutingDigestReady, payload); err != nil {
		s.logger.Warn("Failed to publish digest event",
			zap.Int("digest_id", d.ID),
			zap.Error(err),
		)
	}
	return d, nil
}

// Get returns one stored digest with its recorded actions.
func (s *DigestService) Get(ctx context.Context, userID, digestID int) (*model.WeeklyDigest, []model.DigestAction, error) {
	d, err := s.digestRepo.GetByID(ctx, userID, digestID)
	if err != nil {
		return nil, nil, err
	}
	if d == nil {
		return nil, nil, ErrDigestNotFound
	}
	actions, err := s.digestRepo.ListActions(ctx, digestID)
	if err != nil {
		return nil, nil, err
	}
	return d, actions, nil
}

// ExecuteActions records the user's decisions against a digest and feeds
// each one back into the learning loop: unsubscribe as a negative signal,
// keep as a positive one. Failures on individual senders are collected, not
// fatal.
func (s *DigestService) ExecuteActions(ctx context.Context, userID, digestID int, actions []model.DigestAction) ([]string, error) {
	d, err := s.digestRepo.GetByID(ctx, userID, digestID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrDigestNotFound
	}

	var failures []string
	for i := range actions {
		a := &actions[i]
		a.DigestID = digestID

		act := learning.Action(a.Action)
		if act != learning.ActionUnsubscribe && act != learning.ActionKeep {
			failures = append(failures, fmt.Sprintf("%s: unsupported action %q", a.Sender, a.Action))
			continue
		}

		if _, err := s.digestRepo.RecordAction(ctx, a); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", a.Sender, err))
			continue
		}

		// The sender itself carries the signal; the digest has no email id,
		// so the loop runs against a synthetic email for that sender.
		e := &model.Email{
			UserID:    userID,
			MessageID: fmt.Sprintf("digest-%d-%s", digestID, model.NormalizeAddress(a.Sender)),
			Sender:    a.Sender,
		}
		if _, err := s.feedback.Apply(ctx, e, act, ""); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", a.Sender, err))
		}
	}

	s.logger.Info("Digest actions executed",
		zap.Int("digest_id", digestID),
		zap.Int("user_id", userID),
		zap.Int("actions", len(actions)),
		zap.Int("failures", len(failures)),
	)
	return failures, nil
}

// GenerateAll builds last week's digest for every user, used by the weekly
// cron. Users with the digest disabled are skipped.
func (s *DigestService) GenerateAll(ctx context.Context, now time.Time) error {
	ids, err := s.userRepo.ListIDs(ctx)
	if err != nil {
		return err
	}

	weekStart := digest.WeekStartOf(now.AddDate(0, 0, -7))
	for _, userID := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.Generate(ctx, userID, weekStart, false); err != nil {
			if errors.Is(err, ErrDigestDisabled) {
				continue
			}
			s.logger.Error("Weekly digest generation failed",
				zap.Int("user_id", userID),
				zap.Error(err),
			)
		}
	}
	return nil
}
