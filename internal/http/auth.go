package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"cardperks-go/internal/database"
	"cardperks-go/internal/models"
)

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// POST /v1/auth/login
func (s *Server) authLogin(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required"`
		Pin   string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(400, gin.H{"error": "invalid_request"})
		return
	}

	var user models.User
	if err := database.DB.Where("email = ?", input.Email).First(&user).Error; err != nil {
		c.JSON(401, gin.H{"error": "invalid_credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PinHash), []byte(input.Pin)); err != nil {
		c.JSON(401, gin.H{"error": "invalid_credentials"})
		return
	}

	token, err := s.signToken(&user)
	if err != nil {
		c.JSON(500, gin.H{"error": "token_signing_failed"})
		return
	}
	c.JSON(200, AuthResponse{Token: token, User: &user})
}

func (s *Server) signToken(user *models.User) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   user.UUID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.cfg.JWTSecret))
}
