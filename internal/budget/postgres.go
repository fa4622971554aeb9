package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailtriage/internal/model"
)

// PostgresLedger backs the ledger with a user_budgets row per user. The
// reserve check is a single conditional UPDATE so the read-check-increment
// is atomic at the database, which makes it safe across multiple instances.
type PostgresLedger struct {
	db *pgxpool.Pool
}

func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Reserve(ctx context.Context, userID, estCents int) (bool, error) {
	query := `
        UPDATE user_budgets
        SET daily_spent_cents = daily_spent_cents + $2,
            monthly_spent_cents = monthly_spent_cents + $2,
            updated_at = NOW()
        WHERE user_id = $1
          AND daily_spent_cents + $2 <= daily_limit_cents
          AND monthly_spent_cents + $2 <= monthly_limit_cents
    `
	tag, err := l.db.Exec(ctx, query, userID, estCents)
	if err != nil {
		return false, fmt.Errorf("failed to reserve budget: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (l *PostgresLedger) Commit(ctx context.Context, userID, reservedCents, actualCents int) (model.Budget, error) {
	query := `
        UPDATE user_budgets
        SET daily_spent_cents = GREATEST(0, daily_spent_cents + $2),
            monthly_spent_cents = GREATEST(0, monthly_spent_cents + $2),
            updated_at = NOW()
        WHERE user_id = $1
        RETURNING user_id, daily_spent_cents, daily_limit_cents,
                  monthly_spent_cents, monthly_limit_cents,
                  alert_threshold_pct, daily_reset_at, monthly_reset_at
    `
	return l.scanBudget(ctx, query, userID, actualCents-reservedCents)
}

func (l *PostgresLedger) Spend(ctx context.Context, userID, cents int) (model.Budget, error) {
	query := `
        UPDATE user_budgets
        SET daily_spent_cents = daily_spent_cents + $2,
            monthly_spent_cents = monthly_spent_cents + $2,
            updated_at = NOW()
        WHERE user_id = $1
        RETURNING user_id, daily_spent_cents, daily_limit_cents,
                  monthly_spent_cents, monthly_limit_cents,
                  alert_threshold_pct, daily_reset_at, monthly_reset_at
    `
	return l.scanBudget(ctx, query, userID, cents)
}

func (l *PostgresLedger) Status(ctx context.Context, userID int) (model.Budget, error) {
	query := `
        SELECT user_id, daily_spent_cents, daily_limit_cents,
               monthly_spent_cents, monthly_limit_cents,
               alert_threshold_pct, daily_reset_at, monthly_reset_at
        FROM user_budgets
        WHERE user_id = $1
    `
	var b model.Budget
	err := l.db.QueryRow(ctx, query, userID).Scan(
		&b.UserID,
		&b.DailySpentCents,
		&b.DailyLimitCents,
		&b.MonthlySpentCents,
		&b.MonthlyLimitCents,
		&b.AlertThresholdPct,
		&b.DailyResetAt,
		&b.MonthlyResetAt,
	)
	if err != nil {
		return model.Budget{}, fmt.Errorf("failed to load budget: %w", err)
	}
	return b, nil
}

// ResetDaily zeroes the daily accumulator for every window that has lapsed.
// The WHERE guard makes the reset idempotent: a window is reset exactly once.
func (l *PostgresLedger) ResetDaily(ctx context.Context, now time.Time) error {
	query := `
        UPDATE user_budgets
        SET daily_spent_cents = 0, daily_reset_at = $1, updated_at = NOW()
        WHERE daily_reset_at < date_trunc('day', $1::timestamptz)
    `
	_, err := l.db.Exec(ctx, query, now)
	if err != nil {
		return fmt.Errorf("failed to reset daily budgets: %w", err)
	}
	return nil
}

func (l *PostgresLedger) ResetMonthly(ctx context.Context, now time.Time) error {
	query := `
        UPDATE user_budgets
        SET monthly_spent_cents = 0, monthly_reset_at = $1, updated_at = NOW()
        WHERE monthly_reset_at < date_trunc('month', $1::timestamptz)
    `
	_, err := l.db.Exec(ctx, query, now)
	if err != nil {
		return fmt.Errorf("failed to reset monthly budgets: %w", err)
	}
	return nil
}

// EnsureBudget creates the budget row for a user if it does not exist.
func (l *PostgresLedger) EnsureBudget(ctx context.Context, userID, dailyLimitCents, monthlyLimitCents, alertPct int) error {
	query := `
        INSERT INTO user_budgets (user_id, daily_spent_cents, daily_limit_cents,
                                  monthly_spent_cents, monthly_limit_cents,
                                  alert_threshold_pct, daily_reset_at, monthly_reset_at, updated_at)
        VALUES ($1, 0, $2, 0, $3, $4, NOW(), NOW(), NOW())
        ON CONFLICT (user_id) DO NOTHING
    `
	_, err := l.db.Exec(ctx, query, userID, dailyLimitCents, monthlyLimitCents, alertPct)
	if err != nil {
		return fmt.Errorf("failed to ensure budget row: %w", err)
	}
	return nil
}

// SetDailyLimit applies a preference change to the ledger row.
func (l *PostgresLedger) SetDailyLimit(ctx context.Context, userID, dailyLimitCents int) error {
	query := `
        UPDATE user_budgets
        SET daily_limit_cents = $2, updated_at = NOW()
        WHERE user_id = $1
    `
	_, err := l.db.Exec(ctx, query, userID, dailyLimitCents)
	if err != nil {
		return fmt.Errorf("failed to set daily limit: %w", err)
	}
	return nil
}

func (l *PostgresLedger) scanBudget(ctx context.Context, query string, userID, delta int) (model.Budget, error) {
	var b model.Budget
	err := l.db.QueryRow(ctx, query, userID, delta).Scan(
		&b.UserID,
		&b.DailySpentCents,
		&b.DailyLimitCents,
		&b.MonthlySpentCents,
		&b.MonthlyLimitCents,
		&b.AlertThresholdPct,
		&b.DailyResetAt,
		&b.MonthlyResetAt,
	)
	if err != nil {
		return model.Budget{}, fmt.Errorf("failed to update budget: %w", err)
	}
	return b, nil
}
