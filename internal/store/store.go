package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cardperks-go/internal/aggregator"
	"cardperks-go/internal/ingest"
	"cardperks-go/internal/models"
)

// DB implements the store interfaces consumed by the sync orchestrator and
// the benefit matcher on top of gorm/postgres.
type DB struct {
	db *gorm.DB
}

func New(db *gorm.DB) *DB {
	return &DB{db: db}
}

func (s *DB) AccountIDsByExternal(ctx context.Context, itemID uint) (map[string]uint, error) {
	var accounts []models.Account
	if err := s.db.WithContext(ctx).Where("item_id = ?", itemID).Find(&accounts).Error; err != nil {
		return nil, err
	}
	out := make(map[string]uint, len(accounts))
	for _, a := range accounts {
		out[a.ExternalAccountID] = a.ID
	}
	return out, nil
}

// transactionUpsertColumns are the fields refreshed when an external id is
// re-delivered. Everything the aggregator sends survives the upsert.
var transactionUpsertColumns = []string{
	"account_id", "amount", "date", "name", "merchant_name",
	"category", "category_detail", "payment_channel", "pending", "updated_at",
}

// CommitSync applies the whole sync batch in one database transaction:
// upserts, removals, then the cursor + last-synced advance. A failure rolls
// all of it back, leaving the stored cursor untouched.
func (s *DB) CommitSync(ctx context.Context, itemID uint, c *ingest.Commit) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range c.Upserts {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_transaction_id"}},
				DoUpdates: clause.AssignmentColumns(transactionUpsertColumns),
			}).Create(&c.Upserts[i]).Error
			if err != nil {
				return err
			}
		}

		if len(c.RemovedExternalIDs) > 0 {
			// Already-gone rows are a no-op, not an error.
			err := tx.Where("external_transaction_id IN ?", c.RemovedExternalIDs).
				Delete(&models.Transaction{}).Error
			if err != nil {
				return err
			}
		}

		updates := map[string]any{"last_synced_at": c.SyncedAt}
		if c.NextCursor != "" {
			updates["sync_cursor"] = c.NextCursor
		}
		return tx.Model(&models.Item{}).Where("id = ?", itemID).Updates(updates).Error
	})
}

func (s *DB) UpdateBalances(ctx context.Context, itemID uint, balances []aggregator.AccountBalance) error {
	for _, b := range balances {
		updates := map[string]any{
			"current_balance":   b.Current,
			"available_balance": b.Available,
			"credit_limit":      b.Limit,
		}
		if b.Name != "" {
			updates["name"] = b.Name
		}
		if b.OfficialName != "" {
			updates["official_name"] = b.OfficialName
		}
		if b.Mask != "" {
			updates["mask"] = b.Mask
		}
		err := s.db.WithContext(ctx).Model(&models.Account{}).
			Where("item_id = ? AND external_account_id = ?", itemID, b.AccountID).
			Updates(updates).Error
		if err != nil {
			return err
		}
	}
	return nil
}
