package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mailtriage/internal/model"
)

type VIPRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewVIPRepository(db *pgxpool.Pool, logger *zap.Logger) *VIPRepository {
	return &VIPRepository{db: db, logger: logger}
}

const vipColumns = `id, user_id, sender_address, score_boost, auto_category,
               confidence_score, usage_count, source, confirmed, created_at, last_used_at`

func scanVIP(row pgx.Row) (*model.VIPSender, error) {
	var v model.VIPSender
	err := row.Scan(
		&v.ID,
		&v.UserID,
		&v.SenderAddress,
		&v.ScoreBoost,
		&v.AutoCategory,
		&v.ConfidenceScore,
		&v.UsageCount,
		&v.Source,
		&v.Confirmed,
		&v.CreatedAt,
		&v.LastUsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *VIPRepository) Get(ctx context.Context, userID int, address string) (*model.VIPSender, error) {
	query := `
        SELECT ` + vipColumns + `
        FROM vip_senders
        WHERE user_id = $1 AND sender_address = $2
    `
	v, err := scanVIP(r.db.QueryRow(ctx, query, userID, model.NormalizeAddress(address)))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to load vip sender", zap.Error(err), zap.Int("user_id", userID))
		return nil, err
	}
	return v, nil
}

func (r *VIPRepository) ListByUser(ctx context.Context, userID int) ([]model.VIPSender, error) {
	query := `
        SELECT ` + vipColumns + `
        FROM vip_senders
        WHERE user_id = $1
        ORDER BY confidence_score DESC, sender_address
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list vip senders", zap.Error(err), zap.Int("user_id", userID))
		return nil, err
	}
	defer rows.Close()

	vips := []model.VIPSender{}
	for rows.Next() {
		v, err := scanVIP(rows)
		if err != nil {
			return nil, err
		}
		vips = append(vips, *v)
	}
	return vips, rows.Err()
}

func (r *VIPRepository) Upsert(ctx context.Context, v *model.VIPSender) error {
	query := `
        INSERT INTO vip_senders (user_id, sender_address, score_boost, auto_category,
                                 confidence_score, usage_count, source, confirmed,
                                 created_at, last_used_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), $9)
        ON CONFLICT (user_id, sender_address) DO UPDATE
        SET score_boost = EXCLUDED.score_boost,
            auto_category = EXCLUDED.auto_category,
            confidence_score = EXCLUDED.confidence_score,
            source = EXCLUDED.source,
            confirmed = EXCLUDED.confirmed,
            last_used_at = EXCLUDED.last_used_at
        RETURNING id
    `
	err := r.db.QueryRow(ctx, query,
		v.UserID,
		model.NormalizeAddress(v.SenderAddress),
		v.ScoreBoost,
		v.AutoCategory,
		v.ConfidenceScore,
		v.UsageCount,
		v.Source,
		v.Confirmed,
		v.LastUsedAt,
	).Scan(&v.ID)
	if err != nil {
		r.logger.Error("Failed to upsert vip sender",
			zap.Error(err),
			zap.Int("user_id", v.UserID),
			zap.String("sender", v.SenderAddress),
		)
		return err
	}
	return nil
}

// Confirm flips a suggested VIP into an active one.
func (r *VIPRepository) Confirm(ctx context.Context, userID, vipID int) error {
	query := `
        UPDATE vip_senders
        SET confirmed = TRUE, source = 'user'
        WHERE id = $1 AND user_id = $2
    `
	result, err := r.db.Exec(ctx, query, vipID, userID)
	if err != nil {
		r.logger.Error("Failed to confirm vip sender", zap.Error(err), zap.Int("vip_id", vipID))
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *VIPRepository) Delete(ctx context.Context, userID, vipID int) error {
	query := `DELETE FROM vip_senders WHERE id = $1 AND user_id = $2`
	result, err := r.db.Exec(ctx, query, vipID, userID)
	if err != nil {
		r.logger.Error("Failed to delete vip sender", zap.Error(err), zap.Int("vip_id", vipID))
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// IncrementUsage bumps the usage counter when a VIP boost is applied.
func (r *VIPRepository) IncrementUsage(ctx context.Context, userID int, address string) error {
	query := `
        UPDATE vip_senders
        SET usage_count = usage_count + 1, last_used_at = NOW()
        WHERE user_id = $1 AND sender_address = $2
    `
	_, err := r.db.Exec(ctx, query, userID, model.NormalizeAddress(address))
	return err
}
