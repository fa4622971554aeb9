package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mailtriage/internal/model"
)

type SenderStatsRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewSenderStatsRepository(db *pgxpool.Pool, logger *zap.Logger) *SenderStatsRepository {
	return &SenderStatsRepository{db: db, logger: logger}
}

// Bump atomically folds one interaction signal into the sender's counts and
// returns the updated stats. A single upsert keeps concurrent feedback
// handlers from losing increments.
func (r *SenderStatsRepository) Bump(ctx context.Context, userID int, address string, signal int, at time.Time) (model.SenderStats, error) {
	pos, neg := 0, 0
	if signal > 0 {
		pos = 1
	} else if signal < 0 {
		neg = 1
	}
	query := `
        INSERT INTO sender_stats (user_id, sender_address, email_count, positive_count,
                                  negative_count, last_seen_at)
        VALUES ($1, $2, 1, $3, $4, $5)
        ON CONFLICT (user_id, sender_address) DO UPDATE
        SET email_count = sender_stats.email_count + 1,
            positive_count = sender_stats.positive_count + EXCLUDED.positive_count,
            negative_count = sender_stats.negative_count + EXCLUDED.negative_count,
            last_seen_at = EXCLUDED.last_seen_at
        RETURNING user_id, sender_address, email_count, positive_count, negative_count, last_seen_at
    `
	var s model.SenderStats
	err := r.db.QueryRow(ctx, query, userID, model.NormalizeAddress(address), pos, neg, at).Scan(
		&s.UserID,
		&s.SenderAddress,
		&s.EmailCount,
		&s.PositiveCount,
		&s.NegativeCount,
		&s.LastSeenAt,
	)
	if err != nil {
		r.logger.Error("Failed to bump sender stats",
			zap.Error(err),
			zap.Int("user_id", userID),
			zap.String("sender", address),
		)
		return model.SenderStats{}, err
	}
	return s, nil
}

// RecordSeen counts an inbound email without an interaction signal.
func (r *SenderStatsRepository) RecordSeen(ctx context.Context, userID int, address string, at time.Time) error {
	query := `
        INSERT INTO sender_stats (user_id, sender_address, email_count, last_seen_at)
        VALUES ($1, $2, 1, $3)
        ON CONFLICT (user_id, sender_address) DO UPDATE
        SET email_count = sender_stats.email_count + 1,
            last_seen_at = EXCLUDED.last_seen_at
    `
	_, err := r.db.Exec(ctx, query, userID, model.NormalizeAddress(address), at)
	return err
}

func (r *SenderStatsRepository) ListByUser(ctx context.Context, userID int) ([]model.SenderStats, error) {
	query := `
        SELECT user_id, sender_address, email_count, positive_count, negative_count, last_seen_at
        FROM sender_stats
        WHERE user_id = $1
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list sender stats", zap.Error(err), zap.Int("user_id", userID))
		return nil, err
	}
	defer rows.Close()

	stats := []model.SenderStats{}
	for rows.Next() {
		var s model.SenderStats
		if err := rows.Scan(
			&s.UserID,
			&s.SenderAddress,
			&s.EmailCount,
			&s.PositiveCount,
			&s.NegativeCount,
			&s.LastSeenAt,
		); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
