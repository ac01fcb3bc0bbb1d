package models

import (
	"time"
)

type Account struct {
	ID                 uint         `gorm:"primaryKey" json:"id"`
	ItemID             uint         `gorm:"index" json:"item_id"`
	UserID             uint         `gorm:"index" json:"user_id"`
	ExternalAccountID  string       `gorm:"uniqueIndex" json:"external_account_id"`
	Name               string       `json:"name"`
	OfficialName       string       `json:"official_name"`
	Mask               string       `json:"mask"` // last 4 digits
	CardProductID      *uint        `gorm:"index" json:"card_product_id,omitempty"`
	CardProduct        *CardProduct `json:"card_product,omitempty" gorm:"foreignKey:CardProductID"`
	CurrentBalance     float64      `json:"current_balance"`
	AvailableBalance   float64      `json:"available_balance"`
	CreditLimit        float64      `json:"credit_limit"`
	StatementBalance   float64      `json:"statement_balance"`
	StatementIssueDate *time.Time   `json:"statement_issue_date,omitempty"`
	LastPaymentAmount  float64      `json:"last_payment_amount"`
	LastPaymentDate    *time.Time   `json:"last_payment_date,omitempty"`
	MarkedPaidAt       *time.Time   `json:"marked_paid_at,omitempty"` // manual "I paid this" marker
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}
