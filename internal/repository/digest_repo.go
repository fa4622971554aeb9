package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mailtriage/internal/model"
)

type DigestRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDigestRepository(db *pgxpool.Pool, logger *zap.Logger) *DigestRepository {
	return &DigestRepository{db: db, logger: logger}
}

const digestColumns = `id, user_id, week_start, week_end, total_emails, categories,
               safe_to_unsubscribe, needs_review, bulk_actions, errors, generated_at`

func scanDigest(row pgx.Row) (*model.WeeklyDigest, error) {
	var d model.WeeklyDigest
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.WeekStart,
		&d.WeekEnd,
		&d.TotalEmails,
		&d.Categories,
		&d.SafeToUnsubscribe,
		&d.NeedsReview,
		&d.BulkActions,
		&d.Errors,
		&d.GeneratedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DigestRepository) GetByWeek(ctx context.Context, userID int, weekStart time.Time) (*model.WeeklyDigest, error) {
	query := `
        SELECT ` + digestColumns + `
        FROM weekly_digests
        WHERE user_id = $1 AND week_start = $2
    `
	d, err := scanDigest(r.db.QueryRow(ctx, query, userID, weekStart))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to load digest", zap.Error(err), zap.Int("user_id", userID))
		return nil, err
	}
	return d, nil
}

func (r *DigestRepository) GetByID(ctx context.Context, userID, digestID int) (*model.WeeklyDigest, error) {
	query := `
        SELECT ` + digestColumns + `
        FROM weekly_digests
        WHERE id = $1 AND user_id = $2
    `
	d, err := scanDigest(r.db.QueryRow(ctx, query, digestID, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to load digest", zap.Error(err), zap.Int("digest_id", digestID))
		return nil, err
	}
	return d, nil
}

// Upsert commits one digest as a single write, keyed by (user, week_start).
func (r *DigestRepository) Upsert(ctx context.Context, d *model.WeeklyDigest) (*model.WeeklyDigest, error) {
	query := `
        INSERT INTO weekly_digests (user_id, week_start, week_end, total_emails, categories,
                                    safe_to_unsubscribe, needs_review, bulk_actions, errors,
                                    generated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (user_id, week_start) DO UPDATE
        SET week_end = EXCLUDED.week_end,
            total_emails = EXCLUDED.total_emails,
            categories = EXCLUDED.categories,
            safe_to_unsubscribe = EXCLUDED.safe_to_unsubscribe,
            needs_review = EXCLUDED.needs_review,
            bulk_actions = EXCLUDED.bulk_actions,
            errors = EXCLUDED.errors,
            generated_at = EXCLUDED.generated_at
        RETURNING id
    `
	err := r.db.QueryRow(ctx, query,
		d.UserID,
		d.WeekStart,
		d.WeekEnd,
		d.TotalEmails,
		d.Categories,
		d.SafeToUnsubscribe,
		d.NeedsReview,
		d.BulkActions,
		d.Errors,
		d.GeneratedAt,
	).Scan(&d.ID)
	if err != nil {
		r.logger.Error("Failed to upsert digest",
			zap.Error(err),
			zap.Int("user_id", d.UserID),
			zap.Time("week_start", d.WeekStart),
		)
		return nil, err
	}
	return d, nil
}

// RecordAction stores one user action taken against a digest.
func (r *DigestRepository) RecordAction(ctx context.Context, a *model.DigestAction) (int, error) {
	query := `
        INSERT INTO digest_actions (digest_id, sender, action, recorded_at)
        VALUES ($1, $2, $3, NOW())
        RETURNING id
    `
	var id int
	err := r.db.QueryRow(ctx, query, a.DigestID, model.NormalizeAddress(a.Sender), a.Action).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to record digest action",
			zap.Error(err),
			zap.Int("digest_id", a.DigestID),
		)
		return 0, err
	}
	return id, nil
}

func (r *DigestRepository) ListActions(ctx context.Context, digestID int) ([]model.DigestAction, error) {
	query := `
        SELECT id, digest_id, sender, action, recorded_at
        FROM digest_actions
        WHERE digest_id = $1
        ORDER BY recorded_at
    `
	rows, err := r.db.Query(ctx, query, digestID)
	if err != nil {
		r.logger.Error("Failed to list digest actions", zap.Error(err), zap.Int("digest_id", digestID))
		return nil, err
	}
	defer rows.Close()

	actions := []model.DigestAction{}
	for rows.Next() {
		var a model.DigestAction
		if err := rows.Scan(&a.ID, &a.DigestID, &a.Sender, &a.Action, &a.RecordedAt); err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}
