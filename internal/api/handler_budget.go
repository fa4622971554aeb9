package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mailtriage/internal/budget"
)

type BudgetHandler struct {
	ledger *budget.PostgresLedger
}

func NewBudgetHandler(ledger *budget.PostgresLedger) *BudgetHandler {
	return &BudgetHandler{ledger: ledger}
}

// Status handles GET /budget
func (h *BudgetHandler) Status(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	b, err := h.ledger.Status(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load budget"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"budget":              b,
		"daily_utilization":   b.DailyUtilization(),
		"monthly_utilization": b.MonthlyUtilization(),
		"over_threshold":      b.OverAlertThreshold(),
	})
}
