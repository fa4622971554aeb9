package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mailtriage/internal/model"
)

type PatternRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPatternRepository(db *pgxpool.Pool, logger *zap.Logger) *PatternRepository {
	return &PatternRepository{db: db, logger: logger}
}

const patternColumns = `id, user_id, pattern_type, pattern_value, score_impact,
               confidence_score, sample_count, success_rate, last_seen_at`

func scanPattern(row pgx.Row) (*model.LearnedPattern, error) {
	var p model.LearnedPattern
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.PatternType,
		&p.PatternValue,
		&p.ScoreImpact,
		&p.ConfidenceScore,
		&p.SampleCount,
		&p.SuccessRate,
		&p.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PatternRepository) Get(ctx context.Context, userID int, ptype model.PatternType, value string) (*model.LearnedPattern, error) {
	query := `
        SELECT ` + patternColumns + `
        FROM learned_patterns
        WHERE user_id = $1 AND pattern_type = $2 AND pattern_value = $3
    `
	p, err := scanPattern(r.db.QueryRow(ctx, query, userID, ptype, value))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to load pattern", zap.Error(err), zap.Int("user_id", userID))
		return nil, err
	}
	return p, nil
}

func (r *PatternRepository) Upsert(ctx context.Context, p *model.LearnedPattern) error {
	query := `
        INSERT INTO learned_patterns (user_id, pattern_type, pattern_value, score_impact,
                                      confidence_score, sample_count, success_rate, last_seen_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (user_id, pattern_type, pattern_value) DO UPDATE
        SET score_impact = EXCLUDED.score_impact,
            confidence_score = EXCLUDED.confidence_score,
            sample_count = EXCLUDED.sample_count,
            success_rate = EXCLUDED.success_rate,
            last_seen_at = EXCLUDED.last_seen_at
        RETURNING id
    `
	err := r.db.QueryRow(ctx, query,
		p.UserID,
		p.PatternType,
		p.PatternValue,
		p.ScoreImpact,
		p.ConfidenceScore,
		p.SampleCount,
		p.SuccessRate,
		p.LastSeenAt,
	).Scan(&p.ID)
	if err != nil {
		r.logger.Error("Failed to upsert pattern",
			zap.Error(err),
			zap.Int("user_id", p.UserID),
			zap.String("pattern_type", string(p.PatternType)),
			zap.String("pattern_value", p.PatternValue),
		)
		return err
	}
	return nil
}

// ListEligible returns the patterns allowed to influence scoring.
func (r *PatternRepository) ListEligible(ctx context.Context, userID int) ([]model.LearnedPattern, error) {
	query := `
        SELECT ` + patternColumns + `
        FROM learned_patterns
        WHERE user_id = $1
        AND confidence_score > $2
        AND sample_count >= $3
    `
	rows, err := r.db.Query(ctx, query, userID, model.PatternMinConfidence, model.PatternMinSampleCount)
	if err != nil {
		r.logger.Error("Failed to list eligible patterns", zap.Error(err), zap.Int("user_id", userID))
		return nil, err
	}
	defer rows.Close()

	patterns := []model.LearnedPattern{}
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *p)
	}
	return patterns, rows.Err()
}

func (r *PatternRepository) ListByUser(ctx context.Context, userID int) ([]model.LearnedPattern, error) {
	query := `
        SELECT ` + patternColumns + `
        FROM learned_patterns
        WHERE user_id = $1
        ORDER BY confidence_score DESC, sample_count DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list patterns", zap.Error(err), zap.Int("user_id", userID))
		return nil, err
	}
	defer rows.Close()

	patterns := []model.LearnedPattern{}
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *p)
	}
	return patterns, rows.Err()
}
