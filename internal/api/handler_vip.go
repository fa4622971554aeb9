package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"mailtriage/internal/model"
	"mailtriage/internal/repository"
)

type VIPHandler struct {
	vipRepo *repository.VIPRepository
}

func NewVIPHandler(vipRepo *repository.VIPRepository) *VIPHandler {
	return &VIPHandler{vipRepo: vipRepo}
}

// List handles GET /vips
func (h *VIPHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	vips, err := h.vipRepo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list vip senders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vips": vips})
}

type vipRequest struct {
	SenderAddress string  `json:"sender_address" binding:"required,email"`
	ScoreBoost    float64 `json:"score_boost"`
	AutoCategory  string  `json:"auto_category"`
}

// Upsert handles PUT /vips, creating or replacing a user-defined VIP.
func (h *VIPHandler) Upsert(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req vipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.ScoreBoost < 0 || req.ScoreBoost > 50 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score_boost must be between 0 and 50"})
		return
	}

	vip := &model.VIPSender{
		UserID:          userID,
		SenderAddress:   req.SenderAddress,
		ScoreBoost:      req.ScoreBoost,
		AutoCategory:    req.AutoCategory,
		ConfidenceScore: 1.0,
		Source:          "user",
		Confirmed:       true,
		LastUsedAt:      time.Now().UTC(),
	}
	if err := h.vipRepo.Upsert(c.Request.Context(), vip); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save vip sender"})
		return
	}
	c.JSON(http.StatusOK, vip)
}

// Confirm handles POST /vips/:id/confirm, accepting a learned suggestion.
func (h *VIPHandler) Confirm(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	vipID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vip id"})
		return
	}

	if err := h.vipRepo.Confirm(c.Request.Context(), userID, vipID); err != nil {
		if err == pgx.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "vip sender not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to confirm vip sender"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

// Delete handles DELETE /vips/:id
func (h *VIPHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	vipID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vip id"})
		return
	}

	if err := h.vipRepo.Delete(c.Request.Context(), userID, vipID); err != nil {
		if err == pgx.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "vip sender not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete vip sender"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
