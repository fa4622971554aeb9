package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mailtriage/internal/model"
)

type ScoreRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewScoreRepository(db *pgxpool.Pool, logger *zap.Logger) *ScoreRepository {
	return &ScoreRepository{db: db, logger: logger}
}

// Upsert stores a score record. Re-scoring the same email overwrites the
// previous breakdown.
func (r *ScoreRepository) Upsert(ctx context.Context, s *model.ScoreRecord) (int, error) {
	query := `
        INSERT INTO email_scores (email_id, user_id, raw_score, final_score,
                                  processing_tier, factors, ai_processed, ai_result, scored_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (email_id) DO UPDATE
        SET raw_score = EXCLUDED.raw_score,
            final_score = EXCLUDED.final_score,
            processing_tier = EXCLUDED.processing_tier,
            factors = EXCLUDED.factors,
            ai_processed = EXCLUDED.ai_processed,
            ai_result = EXCLUDED.ai_result,
            scored_at = EXCLUDED.scored_at
        RETURNING id
    `
	var id int
	err := r.db.QueryRow(ctx, query,
		s.EmailID,
		s.UserID,
		s.RawScore,
		s.FinalScore,
		s.Tier,
		s.Factors,
		s.AIProcessed,
		s.AIResult,
		s.ScoredAt,
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to upsert score",
			zap.Error(err),
			zap.Int("email_id", s.EmailID),
			zap.Int("user_id", s.UserID),
		)
		return 0, err
	}
	return id, nil
}

func (r *ScoreRepository) GetByEmailID(ctx context.Context, userID, emailID int) (*model.ScoreRecord, error) {
	query := `
        SELECT id, email_id, user_id, raw_score, final_score, processing_tier,
               factors, ai_processed, ai_result, scored_at
        FROM email_scores
        WHERE email_id = $1 AND user_id = $2
    `
	var s model.ScoreRecord
	err := r.db.QueryRow(ctx, query, emailID, userID).Scan(
		&s.ID,
		&s.EmailID,
		&s.UserID,
		&s.RawScore,
		&s.FinalScore,
		&s.Tier,
		&s.Factors,
		&s.AIProcessed,
		&s.AIResult,
		&s.ScoredAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to load score", zap.Error(err), zap.Int("email_id", emailID))
		return nil, err
	}
	return &s, nil
}

// ListForRescore pages through a user's scored emails by email id, for
// bounded-concurrency backfill.
func (r *ScoreRepository) ListForRescore(ctx context.Context, userID, afterEmailID, limit int) ([]int, error) {
	query := `
        SELECT email_id
        FROM email_scores
        WHERE user_id = $1 AND email_id > $2
        ORDER BY email_id
        LIMIT $3
    `
	rows, err := r.db.Query(ctx, query, userID, afterEmailID, limit)
	if err != nil {
		r.logger.Error("Failed to list emails for rescore", zap.Error(err), zap.Int("user_id", userID))
		return nil, err
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
