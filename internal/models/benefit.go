package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Benefit rule categories.
const (
	BenefitStatementCredit = "statement_credit"
	BenefitExternalCredit  = "external_credit"
	BenefitInsurance       = "insurance"
	BenefitPerk            = "perk"
)

// Benefit timing cadences.
const (
	CadenceMonthly    = "monthly"
	CadenceQuarterly  = "quarterly"
	CadenceSemiAnnual = "semi_annual"
	CadenceAnnual     = "annual"
	CadenceOneTime    = "one_time"
)

// CardProduct is a card SKU (e.g. "Sapphire Reserve"). Many accounts may
// share one product; benefit rules hang off the product, not the account.
type CardProduct struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Name      string        `json:"name"`
	Issuer    string        `json:"issuer"`
	Rules     []BenefitRule `json:"rules,omitempty" gorm:"foreignKey:CardProductID"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BenefitRule describes one reimbursable perk and how to recognize it in
// transaction data. Read-only to the matching core; draft rules
// (Approved=false) never match.
type BenefitRule struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	CardProductID uint         `gorm:"index" json:"card_product_id"`
	Name          string       `json:"name"`
	Category      string       `json:"category"`
	Cadence       string       `json:"cadence"`
	MaxAmount     *float64     `json:"max_amount,omitempty"` // nil = unbounded
	Keywords      StringArray  `gorm:"type:jsonb" json:"keywords"`
	AmountRange   *AmountRange `gorm:"type:jsonb" json:"amount_range,omitempty"`
	Active        bool         `gorm:"default:true" json:"active"`
	Approved      bool         `gorm:"default:false" json:"approved"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// AmountRange narrows a rule to transactions whose absolute amount falls in
// [MinAmount, MaxAmount], inclusive. A nil range means keyword-only matching.
type AmountRange struct {
	MinAmount float64 `json:"min_amount"`
	MaxAmount float64 `json:"max_amount"`
}

func (ar AmountRange) Value() (driver.Value, error) {
	return json.Marshal(ar)
}

func (ar *AmountRange) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for AmountRange: %T", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, ar)
}

// Contains reports whether the absolute amount falls inside the range.
func (ar *AmountRange) Contains(absAmount float64) bool {
	if ar == nil {
		return true
	}
	return absAmount >= ar.MinAmount && absAmount <= ar.MaxAmount
}
