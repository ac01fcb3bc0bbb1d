package models

import "time"

// BenefitUsagePeriod accumulates matched spend for one (rule, account) inside
// one cadence window. At most one open period (now before PeriodEnd) exists
// per pair; periods are created lazily on first match and never deleted.
// The unique (rule, account, period start) index backs the invariant: period
// bounds are derived deterministically from the cadence, so two scans racing
// to create "the current period" collide on the same start instead of
// producing two open periods.
type BenefitUsagePeriod struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	BenefitRuleID uint      `gorm:"uniqueIndex:idx_usage_rule_account_period" json:"benefit_rule_id"`
	AccountID     uint      `gorm:"uniqueIndex:idx_usage_rule_account_period" json:"account_id"`
	PeriodStart   time.Time `gorm:"uniqueIndex:idx_usage_rule_account_period" json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	UsedAmount    float64   `json:"used_amount"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Open reports whether the period is still accumulating at the given instant.
func (p *BenefitUsagePeriod) Open(now time.Time) bool {
	return now.Before(p.PeriodEnd)
}

// TransactionBenefitMatch records the outcome of evaluating one transaction.
// A row with a nil BenefitRuleID means "evaluated, nothing matched" — the
// transaction is skipped on later scans of pass one but remains eligible for
// retroactive matching when new rules appear. A row with a rule id is final:
// a matched transaction is never rematched.
type TransactionBenefitMatch struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TransactionID uint      `gorm:"uniqueIndex" json:"transaction_id"`
	BenefitRuleID *uint     `gorm:"index" json:"benefit_rule_id,omitempty"`
	UsagePeriodID *uint     `json:"usage_period_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Matched reports whether the evaluation produced a benefit link.
func (m *TransactionBenefitMatch) Matched() bool {
	return m.BenefitRuleID != nil
}
