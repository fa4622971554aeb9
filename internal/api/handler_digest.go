package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mailtriage/internal/digest"
	"mailtriage/internal/model"
	"mailtriage/internal/service"
)

type DigestHandler struct {
	digestService *service.DigestService
}

func NewDigestHandler(digestService *service.DigestService) *DigestHandler {
	return &DigestHandler{digestService: digestService}
}

type generateDigestRequest struct {
	WeekStart string `json:"week_start"` // YYYY-MM-DD, defaults to last week
	Force     bool   `json:"force"`
}

// Generate handles POST /digests/generate
func (h *DigestHandler) Generate(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req generateDigestRequest
	_ = c.ShouldBindJSON(&req)

	weekStart := digest.WeekStartOf(time.Now().UTC().AddDate(0, 0, -7))
	if req.WeekStart != "" {
		t, err := time.Parse("2006-01-02", req.WeekStart)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "week_start must be YYYY-MM-DD"})
			return
		}
		weekStart = digest.WeekStartOf(t)
	}

	d, err := h.digestService.Generate(c.Request.Context(), userID, weekStart, req.Force)
	if err != nil {
		if err == service.ErrDigestDisabled {
			c.JSON(http.StatusConflict, gin.H{"error": "weekly digest is disabled in preferences"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate digest"})
		return
	}
	c.JSON(http.StatusOK, d)
}

// Get handles GET /digests/:id
func (h *DigestHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	digestID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid digest id"})
		return
	}

	d, actions, err := h.digestService.Get(c.Request.Context(), userID, digestID)
	if err != nil {
		if err == service.ErrDigestNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "digest not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load digest"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"digest":  d,
		"actions": actions,
	})
}

type digestActionsRequest struct {
	Actions []struct {
		Sender string `json:"sender" binding:"required"`
		Action string `json:"action" binding:"required"`
	} `json:"actions" binding:"required"`
}

// ExecuteActions handles POST /digests/:id/actions
func (h *DigestHandler) ExecuteActions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	digestID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid digest id"})
		return
	}

	var req digestActionsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Actions) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	actions := make([]model.DigestAction, 0, len(req.Actions))
	for _, a := range req.Actions {
		actions = append(actions, model.DigestAction{
			Sender:     a.Sender,
			Action:     a.Action,
			RecordedAt: time.Now().UTC(),
		})
	}

	failures, err := h.digestService.ExecuteActions(c.Request.Context(), userID, digestID, actions)
	if err != nil {
		if err == service.ErrDigestNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "digest not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to execute digest actions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"executed": len(actions) - len(failures),
		"failures": failures,
	})
}
