package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mqcontracts "mailtriage/contracts/mq"
	"mailtriage/internal/model"
	"mailtriage/pkg/outbox"
	"mailtriage/pkg/trace"
)

// MailService ingests emails and announces them through the outbox, so the
// stored email and its email.received event commit atomically.
type MailService struct {
	db         *pgxpool.Pool
	outboxRepo *outbox.Repository
	logger     *zap.Logger
}

func NewMailService(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *MailService {
	return &MailService{
		db:         db,
		outboxRepo: outboxRepo,
		logger:     logger,
	}
}

// Ingest validates and stores one email, enqueueing the scoring event in the
// same transaction. Re-delivery of the same provider message is a no-op
// beyond refreshing the provider flags.
func (s *MailService) Ingest(ctx context.Context, e *model.Email) (int, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin ingest transaction: %w", err)
	}
	defer tx.Rollback(ctx)

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
        RETURNING id, (xmax = 0) AS inserted
    `
	var emailID int
	var inserted bool
	err = tx.QueryRow(ctx, query,
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
	).Scan(&emailID, &inserted)
	if err != nil {
		return 0, fmt.Errorf("failed to insert email: %w", err)
	}

	if inserted {
		payload := mqcontracts.EmailReceivedPayload{
			EmailID:    emailID,
			UserID:     e.UserID,
			Sender:     model.NormalizeAddress(e.Sender),
			Subject:    e.Subject,
			ReceivedAt: e.ReceivedAt,
			TraceID:    trace.FromContext(ctx),
		}
		aggID := int64(emailID)
		if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "email", &aggID,
			mqcontracts.RoutingEmailReceived, payload); err != nil {
			return 0, fmt.Errorf("failed to enqueue email event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit ingest transaction: %w", err)
	}

	s.logger.Info("Email ingested",
		zap.Int("email_id", emailID),
		zap.Int("user_id", e.UserID),
		zap.Bool("new", inserted),
	)
	return emailID, nil
}
