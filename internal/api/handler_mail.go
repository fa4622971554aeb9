package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mailtriage/internal/model"
	"mailtriage/internal/service"
)

type MailHandler struct {
	mailService  *service.MailService
	scoreService *service.ScoreService
}

func NewMailHandler(mailService *service.MailService, scoreService *service.ScoreService) *MailHandler {
	return &MailHandler{
		mailService:  mailService,
		scoreService: scoreService,
	}
}

type ingestRequest struct {
	MessageID      string    `json:"message_id" binding:"required"`
	ThreadID       string    `json:"thread_id"`
	Sender         string    `json:"sender" binding:"required"`
	SenderName     string    `json:"sender_name"`
	Subject        string    `json:"subject"`
	Snippet        string    `json:"snippet"`
	Body           string    `json:"body"`
	Labels         []string  `json:"labels"`
	IsImportant    bool      `json:"is_important"`
	IsStarred      bool      `json:"is_starred"`
	IsUnread       bool      `json:"is_unread"`
	HasAttachments bool      `json:"has_attachments"`
	ReceivedAt     time.Time `json:"received_at"`
}

// Ingest handles POST /emails/ingest
func (h *MailHandler) Ingest(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	email := &model.Email{
		UserID:         userID,
		MessageID:      req.MessageID,
		ThreadID:       req.ThreadID,
		Sender:         req.Sender,
		SenderName:     req.SenderName,
		Subject:        req.Subject,
		Snippet:        req.Snippet,
		Body:           req.Body,
		Labels:         req.Labels,
		IsImportant:    req.IsImportant,
		IsStarred:      req.IsStarred,
		IsUnread:       req.IsUnread,
		HasAttachments: req.HasAttachments,
		ReceivedAt:     req.ReceivedAt,
	}

	emailID, err := h.mailService.Ingest(c.Request.Context(), email)
	if err != nil {
		if err == model.ErrMissingSender || err == model.ErrMissingMessageID {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest email"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"email_id": emailID,
		"status":   "queued",
	})
}

// GetScore handles GET /emails/:id/score
func (h *MailHandler) GetScore(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	emailID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email id"})
		return
	}

	score, err := h.scoreService.GetScore(c.Request.Context(), userID, emailID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load score"})
		return
	}
	if score == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "score not found"})
		return
	}

	c.JSON(http.StatusOK, score)
}

// Score handles POST /emails/:id/score, a synchronous (re-)score.
func (h *MailHandler) Score(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	emailID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email id"})
		return
	}

	record, decision, err := h.scoreService.ScoreEmail(c.Request.Context(), userID, emailID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to score email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"score":    record,
		"decision": decision,
	})
}

// Rescore handles POST /emails/rescore, a bounded-concurrency backfill.
func (h *MailHandler) Rescore(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req struct {
		BatchSize int `json:"batch_size"`
	}
	_ = c.ShouldBindJSON(&req)

	count, err := h.scoreService.RescoreBackfill(c.Request.Context(), userID, req.BatchSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    "rescore interrupted",
			"rescored": count,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rescored": count})
}
