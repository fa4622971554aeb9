package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mailtriage/internal/model"
)

// UsageRepository logs every AI invocation attempt for cost accounting and
// audit. It is the durable sink behind the invoker.
type UsageRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUsageRepository(db *pgxpool.Pool, logger *zap.Logger) *UsageRepository {
	return &UsageRepository{db: db, logger: logger}
}

func (r *UsageRepository) Record(ctx context.Context, entry model.AIUsageEntry) error {
	query := `
        INSERT INTO ai_usage_log (user_id, email_id, model, input_tokens, output_tokens,
                                  cost_cents, latency_ms, success, error_type, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
    `
	_, err := r.db.Exec(ctx, query,
		entry.UserID,
		entry.EmailID,
		entry.Model,
		entry.InputTokens,
		entry.OutputTokens,
		entry.CostCents,
		entry.LatencyMS,
		entry.Success,
		entry.ErrorType,
	)
	if err != nil {
		r.logger.Error("Failed to record AI usage",
			zap.Error(err),
			zap.Int("user_id", entry.UserID),
			zap.String("model", entry.Model),
		)
		return err
	}
	return nil
}

// SpendSince sums successful spend from a point in time, for reconciling the
// ledger against the log.
func (r *UsageRepository) SpendSince(ctx context.Context, userID int, since time.Time) (int, error) {
	query := `
        SELECT COALESCE(SUM(cost_cents), 0)
        FROM ai_usage_log
        WHERE user_id = $1 AND success AND created_at >= $2
    `
	var cents int
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&cents); err != nil {
		r.logger.Error("Failed to sum AI spend", zap.Error(err), zap.Int("user_id", userID))
		return 0, err
	}
	return cents, nil
}
