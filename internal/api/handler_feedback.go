package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mailtriage/internal/learning"
	"mailtriage/internal/service"
)

type FeedbackHandler struct {
	feedbackService *service.FeedbackService
}

func NewFeedbackHandler(feedbackService *service.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

type feedbackRequest struct {
	EmailID  int    `json:"email_id" binding:"required"`
	Action   string `json:"action" binding:"required"`
	Category string `json:"category"`
}

// Submit handles POST /feedback
func (h *FeedbackHandler) Submit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	action := learning.Action(req.Action)
	if !action.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown feedback action"})
		return
	}

	outcome, err := h.feedbackService.Submit(c.Request.Context(), userID, req.EmailID, action, req.Category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record feedback"})
		return
	}

	c.JSON(http.StatusOK, outcome)
}
