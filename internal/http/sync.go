package http

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"cardperks-go/internal/database"
	"cardperks-go/internal/ingest"
	"cardperks-go/internal/models"
)

// POST /v1/items/:itemID/sync
//
// Status semantics: 401 unauthenticated, 404 unknown item, 429 over the
// per-user budget (with a Retry-After hint), 500 on secret resolution or
// commit failure. Everything else is 200 — including a partial sync where
// the upstream died mid-pagination, and a sync with zero changes.
func (s *Server) syncItem(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var input struct {
		Cursor string `json:"cursor"`
	}
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}

	var item models.Item
	err := database.DB.Where("external_item_id = ? AND user_id = ?", c.Param("itemID"), userID).
		First(&item).Error
	if err != nil {
		c.JSON(404, gin.H{"error": "item_not_found"})
		return
	}

	// Admission control before any aggregator traffic.
	ok, retryAfter := s.limiter.Allow(userID)
	if !ok {
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(429, gin.H{
			"error":   "rate_limited",
			"message": fmt.Sprintf("rate limit exceeded: %d syncs per hour", s.cfg.SyncPerHour),
		})
		return
	}

	result, err := s.orchestrator.Run(c.Request.Context(), &item, input.Cursor)
	if err != nil {
		if errors.Is(err, ingest.ErrSecretResolution) {
			c.JSON(500, gin.H{"error": "secret_resolution_failed"})
			return
		}
		c.JSON(500, gin.H{"error": "sync_failed"})
		return
	}

	c.JSON(200, result)
}
