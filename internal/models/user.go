package models

import (
	"time"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      string    `gorm:"uniqueIndex" json:"uuid"` // Public ID carried in API tokens
	Email     *string   `gorm:"uniqueIndex" json:"email,omitempty"`
	PinHash   string    `json:"-"` // Bcrypt hash, hidden from JSON
	IsAdmin   bool      `gorm:"default:false" json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
