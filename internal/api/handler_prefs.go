package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"mailtriage/internal/model"
)

// PrefsStore is the preference persistence the handler needs.
type PrefsStore interface {
	Get(ctx context.Context, userID int) (model.UserPrefs, error)
	Upsert(ctx context.Context, p *model.UserPrefs) error
}

// DailyLimitSetter pushes a preference change into the budget ledger so
// Reserve enforces the new limit.
type DailyLimitSetter interface {
	SetDailyLimit(ctx context.Context, userID, dailyLimitCents int) error
}

type PrefsHandler struct {
	prefsRepo PrefsStore
	ledger    DailyLimitSetter
}

func NewPrefsHandler(prefsRepo PrefsStore, ledger DailyLimitSetter) *PrefsHandler {
	return &PrefsHandler{prefsRepo: prefsRepo, ledger: ledger}
}

// Get handles GET /prefs
func (h *PrefsHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	prefs, err := h.prefsRepo.Get(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preferences"})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// Update handles PUT /prefs. The full document is replaced, so clients
// should GET first and send back the whole object. The daily cost limit is
// mirrored into the budget ledger, which is what the tier router enforces.
func (h *PrefsHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var prefs model.UserPrefs
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	prefs.UserID = userID
	if err := prefs.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.prefsRepo.Upsert(c.Request.Context(), &prefs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save preferences"})
		return
	}

	if err := h.ledger.SetDailyLimit(c.Request.Context(), userID, prefs.MaxAICostPerDayCents); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply budget limit"})
		return
	}

	c.JSON(http.StatusOK, prefs)
}
