package models

import "time"

// Item is one link to a financial institution through the aggregation
// service. SyncCursor is the sole durable progress marker for transaction
// ingestion; it only ever advances inside a successful sync commit.
type Item struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"index" json:"user_id"`
	ExternalItemID  string     `gorm:"uniqueIndex" json:"external_item_id"`
	InstitutionName string     `json:"institution_name"`
	SecretRef       string     `json:"-"` // opaque reference, resolved by the vault
	SyncCursor      *string    `json:"sync_cursor,omitempty"`
	LastSyncedAt    *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
