package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Transaction mirrors one transaction delivered by the aggregation service.
// ExternalTransactionID is the natural key: re-delivery of the same id is an
// upsert, never a duplicate row. Rows are only ever written by the sync
// orchestrator.
type Transaction struct {
	ID                    uint        `gorm:"primaryKey" json:"id"`
	AccountID             uint        `gorm:"index" json:"account_id"`
	ExternalTransactionID string      `gorm:"uniqueIndex" json:"external_transaction_id"`
	Amount                float64     `json:"amount"`
	Date                  string      `json:"date"` // YYYY-MM-DD as delivered upstream
	Name                  string      `json:"name"`
	MerchantName          string      `json:"merchant_name"`
	Category              StringArray `gorm:"type:jsonb" json:"category"`
	CategoryDetail        string      `json:"category_detail"`
	PaymentChannel        string      `json:"payment_channel"`
	Pending               bool        `json:"pending"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

type StringArray []string

func (sa StringArray) Value() (driver.Value, error) {
	if len(sa) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(sa)
}

func (sa *StringArray) Scan(value interface{}) error {
	if value == nil {
		*sa = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StringArray: %T", value)
	}
	if len(data) == 0 {
		*sa = nil
		return nil
	}
	return json.Unmarshal(data, sa)
}
