package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cardperks-go/internal/cycle"
	"cardperks-go/internal/database"
	"cardperks-go/internal/models"
)

type AccountView struct {
	models.Account
	CycleStatus cycle.State `json:"cycle_status"`
}

// GET /v1/accounts
//
// Cycle status is derived on the way out, never stored, so it can't go
// stale between balance refreshes.
func (s *Server) listAccounts(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var accounts []models.Account
	err := database.DB.Where("user_id = ?", userID).Order("id ASC").Find(&accounts).Error
	if err != nil {
		c.JSON(500, gin.H{"error": "account_query_failed"})
		return
	}

	now := time.Now()
	views := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, AccountView{
			Account: a,
			CycleStatus: cycle.Classify(
				a.StatementBalance, a.StatementIssueDate,
				a.CurrentBalance, a.MarkedPaidAt, now,
			),
		})
	}
	c.JSON(200, views)
}

// POST /v1/accounts/:accountID/mark-paid
func (s *Server) markPaid(c *gin.Context) {
	s.setMarkedPaid(c, true)
}

// DELETE /v1/accounts/:accountID/mark-paid
func (s *Server) unmarkPaid(c *gin.Context) {
	s.setMarkedPaid(c, false)
}

func (s *Server) setMarkedPaid(c *gin.Context, paid bool) {
	userID := c.MustGet("userID").(uint)
	id, err := strconv.ParseUint(c.Param("accountID"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid_account_id"})
		return
	}

	var account models.Account
	if err := database.DB.Where("id = ? AND user_id = ?", id, userID).First(&account).Error; err != nil {
		c.JSON(404, gin.H{"error": "account_not_found"})
		return
	}

	var marked *time.Time
	if paid {
		now := time.Now()
		marked = &now
	}
	err = database.DB.Model(&account).Update("marked_paid_at", marked).Error
	if err != nil {
		c.JSON(500, gin.H{"error": "account_update_failed"})
		return
	}

	account.MarkedPaidAt = marked
	c.JSON(200, AccountView{
		Account: account,
		CycleStatus: cycle.Classify(
			account.StatementBalance, account.StatementIssueDate,
			account.CurrentBalance, account.MarkedPaidAt, time.Now(),
		),
	})
}
