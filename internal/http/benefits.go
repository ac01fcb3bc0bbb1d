package http

import (
	"encoding/json"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xeipuuv/gojsonschema"

	"cardperks-go/internal/database"
	"cardperks-go/internal/models"
)

// GET /v1/benefits/usage?account_id=
func (s *Server) benefitUsage(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var accountID *uint
	if raw := c.Query("account_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "invalid_account_id"})
			return
		}
		u := uint(id)
		accountID = &u
	}

	summaries, err := s.matcher.Usage(c.Request.Context(), userID, accountID)
	if err != nil {
		c.JSON(500, gin.H{"error": "usage_query_failed"})
		return
	}
	c.JSON(200, summaries)
}

// POST /v1/benefits/scan
//
// Manual trigger for the same scan the sync dispatches asynchronously;
// useful after new rules are approved.
func (s *Server) scanBenefits(c *gin.Context) {
	userID := c.MustGet("userID").(uint)

	var accountID *uint
	if raw := c.Query("account_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "invalid_account_id"})
			return
		}
		u := uint(id)
		accountID = &u
	}

	result, err := s.matcher.ScanAndMatch(c.Request.Context(), userID, accountID)
	if err != nil {
		c.JSON(500, gin.H{"error": "scan_failed"})
		return
	}
	c.JSON(200, result)
}

// POST /v1/rules (admin)
//
// The rule payload, amount_range included, is validated against a JSON
// schema before it touches storage so a malformed range can never reach the
// matcher.
func (s *Server) createRule(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}

	res, err := s.ruleValidator.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		c.JSON(500, gin.H{"error": "validation_failed"})
		return
	}
	if !res.Valid() {
		details := []string{}
		for _, e := range res.Errors() {
			details = append(details, e.String())
		}
		c.JSON(422, gin.H{"error": "schema_invalid", "details": details})
		return
	}

	var rule models.BenefitRule
	if err := json.Unmarshal(raw, &rule); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	rule.ID = 0

	if err := database.DB.Create(&rule).Error; err != nil {
		c.JSON(500, gin.H{"error": "rule_create_failed"})
		return
	}
	c.JSON(201, rule)
}

// PUT /v1/users/:userID/role (admin)
func (s *Server) setUserRole(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("userID"), 10, 32)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid_user_id"})
		return
	}

	var input struct {
		IsAdmin bool `json:"is_admin"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}

	err = database.DB.Model(&models.User{}).Where("id = ?", id).
		Update("is_admin", input.IsAdmin).Error
	if err != nil {
		c.JSON(500, gin.H{"error": "role_update_failed"})
		return
	}

	// The cached flag is stale the moment the row changes.
	s.roles.Invalidate(uint(id))
	c.JSON(200, gin.H{"user_id": id, "is_admin": input.IsAdmin})
}
