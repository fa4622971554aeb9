package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mailtriage/internal/model"
)

type PrefsRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPrefsRepository(db *pgxpool.Pool, logger *zap.Logger) *PrefsRepository {
	return &PrefsRepository{db: db, logger: logger}
}

// Get returns the user's preferences, falling back to the system defaults
// when none are stored yet.
func (r *PrefsRepository) Get(ctx context.Context, userID int) (model.UserPrefs, error) {
	query := `
        SELECT user_id, vip_sender_weight, urgent_keywords_weight, marketing_penalty_weight,
               time_decay_weight, gmail_signals_weight, high_priority_threshold,
               medium_priority_threshold, max_ai_cost_per_day_cents,
               enable_pattern_learning, enable_weekly_digest, enable_bulk_unsubscribe,
               auto_apply_vip_suggestions
        FROM user_prefs
        WHERE user_id = $1
    `
	var p model.UserPrefs
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.VIPSenderWeight,
		&p.UrgentKeywordsWeight,
		&p.MarketingPenaltyWeight,
		&p.TimeDecayWeight,
		&p.GmailSignalsWeight,
		&p.HighPriorityThreshold,
		&p.MediumPriorityThreshold,
		&p.MaxAICostPerDayCents,
		&p.EnablePatternLearning,
		&p.EnableWeeklyDigest,
		&p.EnableBulkUnsubscribe,
		&p.AutoApplyVIPSuggestions,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return model.DefaultPrefs(userID), nil
		}
		r.logger.Error("Failed to load prefs", zap.Error(err), zap.Int("user_id", userID))
		return model.UserPrefs{}, err
	}
	return p, nil
}

func (r *PrefsRepository) Upsert(ctx context.Context, p *model.UserPrefs) error {
	query := `
        INSERT INTO user_prefs (user_id, vip_sender_weight, urgent_keywords_weight,
                                marketing_penalty_weight, time_decay_weight, gmail_signals_weight,
                                high_priority_threshold, medium_priority_threshold,
                                max_ai_cost_per_day_cents, enable_pattern_learning,
                                enable_weekly_digest, enable_bulk_unsubscribe,
                                auto_apply_vip_suggestions)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT (user_id) DO UPDATE
        SET vip_sender_weight = EXCLUDED.vip_sender_weight,
            urgent_keywords_weight = EXCLUDED.urgent_keywords_weight,
            marketing_penalty_weight = EXCLUDED.marketing_penalty_weight,
            time_decay_weight = EXCLUDED.time_decay_weight,
            gmail_signals_weight = EXCLUDED.gmail_signals_weight,
            high_priority_threshold = EXCLUDED.high_priority_threshold,
            medium_priority_threshold = EXCLUDED.medium_priority_threshold,
            max_ai_cost_per_day_cents = EXCLUDED.max_ai_cost_per_day_cents,
            enable_pattern_learning = EXCLUDED.enable_pattern_learning,
            enable_weekly_digest = EXCLUDED.enable_weekly_digest,
            enable_bulk_unsubscribe = EXCLUDED.enable_bulk_unsubscribe,
            auto_apply_vip_suggestions = EXCLUDED.auto_apply_vip_suggestions
    `
	_, err := r.db.Exec(ctx, query,
		p.UserID,
		p.VIPSenderWeight,
		p.UrgentKeywordsWeight,
		p.MarketingPenaltyWeight,
		p.TimeDecayWeight,
		p.GmailSignalsWeight,
		p.HighPriorityThreshold,
		p.MediumPriorityThreshold,
		p.MaxAICostPerDayCents,
		p.EnablePatternLearning,
		p.EnableWeeklyDigest,
		p.EnableBulkUnsubscribe,
		p.AutoApplyVIPSuggestions,
	)
	if err != nil {
		r.logger.Error("Failed to upsert prefs", zap.Error(err), zap.Int("user_id", p.UserID))
		return err
	}
	return nil
}
