package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardperks-go/internal/benefits"
	"cardperks-go/internal/models"
)

func (s *DB) AccountsForUser(ctx context.Context, userID uint, accountID *uint) ([]models.Account, error) {
	// Rule order is the matching order: ascending id = creation order, so
	// the oldest eligible rule wins ties deterministically.
	q := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("CardProduct.Rules", func(db *gorm.DB) *gorm.DB {
			return db.Order("benefit_rules.id ASC")
		})
	if accountID != nil {
		q = q.Where("id = ?", *accountID)
	}

	var accounts []models.Account
	if err := q.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *DB) UnevaluatedTransactions(ctx context.Context, accountIDs []uint, limit int) ([]models.Transaction, error) {
	sub := s.db.Model(&models.TransactionBenefitMatch{}).Select("transaction_id")

	var txns []models.Transaction
	err := s.db.WithContext(ctx).
		Where("account_id IN ?", accountIDs).
		Where("id NOT IN (?)", sub).
		Order("id ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

func (s *DB) RetryableTransactions(ctx context.Context, accountIDs []uint, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.db.WithContext(ctx).
		Joins("JOIN transaction_benefit_matches m ON m.transaction_id = transactions.id").
		Where("transactions.account_id IN ?", accountIDs).
		Where("m.benefit_rule_id IS NULL").
		Order("transactions.id ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

// ApplyMatch is the single atomic step per matched transaction. The link
// row is claimed first: the upsert only overwrites a "no match" marker
// (benefit_rule_id IS NULL), so of two racing scans exactly one claim
// affects a row. Only the claimer touches the usage period; the loser gets
// ErrAlreadyMatched and increments nothing.
func (s *DB) ApplyMatch(ctx context.Context, m *benefits.Match) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		match := models.TransactionBenefitMatch{
			TransactionID: m.TransactionID,
			BenefitRuleID: &m.BenefitRuleID,
		}
		claim := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"benefit_rule_id": m.BenefitRuleID}),
			Where: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "transaction_benefit_matches.benefit_rule_id IS NULL"},
			}},
		}).Create(&match)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return benefits.ErrAlreadyMatched
		}

		var period models.BenefitUsagePeriod
		err := tx.Where("benefit_rule_id = ? AND account_id = ? AND period_end > ?", m.BenefitRuleID, m.AccountID, m.Now).
			First(&period).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			period = models.BenefitUsagePeriod{
				BenefitRuleID: m.BenefitRuleID,
				AccountID:     m.AccountID,
				PeriodStart:   m.PeriodStart,
				PeriodEnd:     m.PeriodEnd,
			}
			err = tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "benefit_rule_id"}, {Name: "account_id"}, {Name: "period_start"},
				},
				DoNothing: true,
			}).Create(&period).Error
			if err != nil {
				return err
			}
			if period.ID == 0 {
				// Lost the creation race; the winner's row is the open period.
				err = tx.Where("benefit_rule_id = ? AND account_id = ? AND period_start = ?", m.BenefitRuleID, m.AccountID, m.PeriodStart).
					First(&period).Error
				if err != nil {
					return err
				}
			}
		} else if err != nil {
			return err
		}

		err = tx.Model(&models.BenefitUsagePeriod{}).
			Where("id = ?", period.ID).
			Update("used_amount", gorm.Expr("used_amount + ?", m.Amount)).Error
		if err != nil {
			return err
		}

		return tx.Model(&models.TransactionBenefitMatch{}).
			Where("transaction_id = ?", m.TransactionID).
			Update("usage_period_id", period.ID).Error
	})
}

func (s *DB) RecordNoMatch(ctx context.Context, transactionID uint) error {
	marker := models.TransactionBenefitMatch{TransactionID: transactionID}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "transaction_id"}},
		DoNothing: true,
	}).Create(&marker).Error
}

func (s *DB) OpenUsagePeriods(ctx context.Context, accountIDs []uint, now time.Time) ([]models.BenefitUsagePeriod, error) {
	var periods []models.BenefitUsagePeriod
	err := s.db.WithContext(ctx).
		Where("account_id IN ? AND period_end > ?", accountIDs, now).
		Find(&periods).Error
	return periods, err
}
