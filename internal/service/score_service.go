package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/internal/repository"
	"mailtriage/internal/router"
	"mailtriage/internal/scoring"
	"mailtriage/pkg/metrics"
)

// ScoreService loads the user profile, runs the deterministic engine and
// hands the result to the tier router. AI failures degrade to the rule-based
// score, never to a scoring failure.
type ScoreService struct {
	engine      *scoring.Engine
	router      *router.Router
	emailRepo   *repository.EmailRepository
	scoreRepo   *repository.ScoreRepository
	vipRepo     *repository.VIPRepository
	patternRepo *repository.PatternRepository
	prefsRepo   *repository.PrefsRepository
	statsRepo   *repository.SenderStatsRepository
	workers     int
	logger      *zap.Logger
}

func NewScoreService(
	engine *scoring.Engine,
	rt *router.Router,
	emailRepo *repository.EmailRepository,
	scoreRepo *repository.ScoreRepository,
	vipRepo *repository.VIPRepository,
	patternRepo *repository.PatternRepository,
	prefsRepo *repository.PrefsRepository,
	statsRepo *repository.SenderStatsRepository,
	workers int,
	logger *zap.Logger,
) *ScoreService {
	if workers <= 0 {
		workers = 3
	}
	return &ScoreService{
		engine:      engine,
		router:      rt,
		emailRepo:   emailRepo,
		scoreRepo:   scoreRepo,
		vipRepo:     vipRepo,
		patternRepo: patternRepo,
		prefsRepo:   prefsRepo,
		statsRepo:   statsRepo,
		workers:     workers,
		logger:      logger,
	}
}

// LoadProfile assembles the scoring snapshot for one user.
func (s *ScoreService) LoadProfile(ctx context.Context, userID int) (scoring.Profile, error) {
	prefs, err := s.prefsRepo.Get(ctx, userID)
	if err != nil {
		return scoring.Profile{}, fmt.Errorf("failed to load prefs: %w", err)
	}

	vips, err := s.vipRepo.ListByUser(ctx, userID)
	if err != nil {
		return scoring.Profile{}, fmt.Errorf("failed to load vips: %w", err)
	}
	vipMap := make(map[string]model.VIPSender, len(vips))
	for _, v := range vips {
		vipMap[model.NormalizeAddress(v.SenderAddress)] = v
	}

	var patterns []model.LearnedPattern
	if prefs.EnablePatternLearning {
		patterns, err = s.patternRepo.ListEligible(ctx, userID)
		if err != nil {
			return scoring.Profile{}, fmt.Errorf("failed to load patterns: %w", err)
		}
	}

	stats, err := s.statsRepo.ListByUser(ctx, userID)
	if err != nil {
		return scoring.Profile{}, fmt.Errorf("failed to load sender stats: %w", err)
	}
	statMap := make(map[string]model.SenderStats, len(stats))
	for _, st := range stats {
		statMap[st.SenderAddress] = st
	}

	return scoring.Profile{
		Prefs:    prefs,
		VIPs:     vipMap,
		Patterns: patterns,
		Stats:    statMap,
	}, nil
}

// ScoreEmail scores one stored email, routes it and persists the outcome.
func (s *ScoreService) ScoreEmail(ctx context.Context, userID, emailID int) (*model.ScoreRecord, router.Decision, error) {
	email, err := s.emailRepo.GetByID(ctx, userID, emailID)
	if err != nil {
		return nil, router.Decision{}, err
	}
	if email == nil {
		return nil, router.Decision{}, fmt.Errorf("email %d not found for user %d", emailID, userID)
	}

	profile, err := s.LoadProfile(ctx, userID)
	if err != nil {
		return nil, router.Decision{}, err
	}

	record := s.engine.Score(email, profile, time.Now().UTC())

	decision, err := s.router.Route(ctx, email, &record)
	if err != nil {
		return nil, router.Decision{}, fmt.Errorf("failed to route email %d: %w", emailID, err)
	}
	if decision.Result != nil {
		record.AIProcessed = true
		record.AIResult = &model.AIResult{
			Category:    decision.Result.Analysis.Category,
			Priority:    decision.Result.Analysis.Priority,
			Summary:     decision.Result.Analysis.Summary,
			ActionItems: decision.Result.Analysis.ActionItems,
			Confidence:  decision.Result.Analysis.Confidence,
			Model:       decision.Result.Model,
			CostCents:   decision.Result.CostCents,
			LatencyMS:   decision.Result.Latency.Milliseconds(),
		}
	}

	if _, err := s.scoreRepo.Upsert(ctx, &record); err != nil {
		return nil, router.Decision{}, fmt.Errorf("failed to persist score: %w", err)
	}

	if record.Factors.VIPBoost > 0 {
		if err := s.vipRepo.IncrementUsage(ctx, userID, email.Sender); err != nil {
			s.logger.Warn("Failed to bump vip usage", zap.Error(err), zap.Int("email_id", emailID))
		}
	}
	if err := s.statsRepo.RecordSeen(ctx, userID, email.Sender, email.ReceivedAt); err != nil {
		s.logger.Warn("Failed to record sender sighting", zap.Error(err), zap.Int("email_id", emailID))
	}

	metrics.RecordScore(string(record.Tier), record.FinalScore)
	s.logger.Info("Email scored",
		zap.Int("email_id", emailID),
		zap.Int("user_id", userID),
		zap.Float64("final_score", record.FinalScore),
		zap.String("tier", string(record.Tier)),
		zap.String("routing_reason", decision.Reason),
		zap.Bool("ai_invoked", decision.AIInvoked),
	)
	return &record, decision, nil
}

// GetScore returns the stored score for an email, or nil.
func (s *ScoreService) GetScore(ctx context.Context, userID, emailID int) (*model.ScoreRecord, error) {
	return s.scoreRepo.GetByEmailID(ctx, userID, emailID)
}

// RescoreBackfill re-scores a user's scored emails with bounded concurrency.
// Scoring is deterministic, so re-running over an unchanged profile is
// idempotent; after profile changes it brings old scores up to date.
func (s *ScoreService) RescoreBackfill(ctx context.Context, userID, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	pool := router.NewPool(s.workers)
	total := 0
	afterID := 0
	for {
		ids, err := s.scoreRepo.ListForRescore(ctx, userID, afterID, batchSize)
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			break
		}

		for _, emailID := range ids {
			if err := ctx.Err(); err != nil {
				pool.Wait()
				return total, err
			}
			id := emailID
			pool.Submit(func() {
				if _, _, err := s.ScoreEmail(ctx, userID, id); err != nil {
					s.logger.Error("Backfill rescore failed",
						zap.Int("email_id", id),
						zap.Int("user_id", userID),
						zap.Error(err),
					)
				}
			})
			total++
		}
		afterID = ids[len(ids)-1]
		pool.Wait()
	}
	return total, nil
}
