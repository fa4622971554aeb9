package service

import (
	"context"

	"go.uber.org/zap"

	mqcontracts "mailtriage/contracts/mq"
	"mailtriage/internal/model"
	"mailtriage/pkg/trace"
)

// BudgetAlerter publishes budget.alert events when the router reports a
// threshold crossing.
type BudgetAlerter struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func NewBudgetAlerter(publisher EventPublisher, logger *zap.Logger) *BudgetAlerter {
	return &BudgetAlerter{publisher: publisher, logger: logger}
}

func (a *BudgetAlerter) BudgetAlert(ctx context.Context, b model.Budget) error {
	payload := mqcontracts.BudgetAlertPayload{
		UserID:          b.UserID,
		DailySpentCents: b.DailySpentCents,
		DailyLimitCents: b.DailyLimitCents,
		UtilizationPct:  b.DailyUtilization() * 100,
		TraceID:         trace.FromContext(ctx),
	}

	a.logger.Warn("Daily AI budget crossed alert threshold",
		zap.Int("user_id", b.UserID),
		zap.Int("spent_cents", b.DailySpentCents),
		zap.Int("limit_cents", b.DailyLimitCents),
	)
	return a.publisher.Publish(mqcontracts.RoutingBudgetAlert, payload)
}
