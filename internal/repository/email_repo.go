package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mailtriage/internal/model"
)

type EmailRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewEmailRepository(db *pgxpool.Pool, logger *zap.Logger) *EmailRepository {
	return &EmailRepository{db: db, logger: logger}
}

// Insert stores an ingested email. Re-delivery of the same provider message
// for the same user returns the existing row's id.
func (r *EmailRepository) Insert(ctx context.Context, e *model.Email) (int, error) {
	query := `
        INSERT INTO emails (user_id, message_id, thread_id, sender, sender_name, subject,
                            snippet, body, labels, is_important, is_starred, is_unread,
                            has_attachments, received_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())
        ON CONFLICT (user_id, message_id) DO UPDATE
        SET is_important = EXCLUDED.is_important,
            is_starred = EXCLUDED.is_starred,
            is_unread = EXCLUDED.is_unread,
            labels = EXCLUDED.labels
        RETURNING id
    `
	var id int
	err := r.db.QueryRow(ctx, query,
		e.UserID,
		e.MessageID,
		e.ThreadID,
		model.NormalizeAddress(e.Sender),
		e.SenderName,
		e.Subject,
		e.Snippet,
		e.Body,
		e.Labels,
		e.IsImportant,
		e.IsStarred,
		e.IsUnread,
		e.HasAttachments,
		e.ReceivedAt,
	).Scan(&id)
	if err != nil {
		r.logger.Error("Failed to insert email",
			zap.Error(err),
			zap.Int("user_id", e.UserID),
			zap.String("message_id", e.MessageID),
		)
		return 0, err
	}
	return id, nil
}

func (r *EmailRepository) GetByID(ctx context.Context, userID, emailID int) (*model.Email, error) {
	query := `
        SELECT id, user_id, message_id, thread_id, sender, sender_name, subject,
               snippet, body, labels, is_important, is_starred, is_unread,
               has_attachments, received_at, created_at
        FROM emails
        WHERE id = $1 AND user_id = $2
    `
	var e model.Email
	err := r.db.QueryRow(ctx, query, emailID, userID).Scan(
		&e.ID,
		&e.UserID,
		&e.MessageID,
		&e.ThreadID,
		&e.Sender,
		&e.SenderName,
		&e.Subject,
		&e.Snippet,
		&e.Body,
		&e.Labels,
		&e.IsImportant,
		&e.IsStarred,
		&e.IsUnread,
		&e.HasAttachments,
		&e.ReceivedAt,
		&e.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to load email", zap.Error(err), zap.Int("email_id", emailID))
		return nil, err
	}
	return &e, nil
}

// LowTierEmails returns the user's emails routed to the low tier during the
// given window, for digest aggregation.
func (r *EmailRepository) LowTierEmails(ctx context.Context, userID int, from, to time.Time) ([]model.Email, error) {
	query := `
        SELECT e.id, e.user_id, e.message_id, e.thread_id, e.sender, e.sender_name,
               e.subject, e.snippet, e.body, e.labels, e.is_important, e.is_starred,
               e.is_unread, e.has_attachments, e.received_at, e.created_at
        FROM emails e
        JOIN email_scores s ON s.email_id = e.id
        WHERE e.user_id = $1
        AND s.processing_tier = 'low'
        AND e.received_at >= $2
        AND e.received_at < $3
        ORDER BY e.received_at
    `
	rows, err := r.db.Query(ctx, query, userID, from, to)
	if err != nil {
		r.logger.Error("Failed to query low-tier emails",
			zap.Error(err),
			zap.Int("user_id", userID),
		)
		return nil, err
	}
	defer rows.Close()

	emails := []model.Email{}
	for rows.Next() {
		var e model.Email
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.MessageID,
			&e.ThreadID,
			&e.Sender,
			&e.SenderName,
			&e.Subject,
			&e.Snippet,
			&e.Body,
			&e.Labels,
			&e.IsImportant,
			&e.IsStarred,
			&e.IsUnread,
			&e.HasAttachments,
			&e.ReceivedAt,
			&e.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to scan email row", zap.Error(err))
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}
