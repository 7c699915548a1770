package models

import (
	"time"
)

// Validation status of a stock mutation. The calculator currently always
// records PASSED; the other values are reserved for a pre-write consistency
// check between an expected baseline and the live remote value.
const (
	ValidationPassed           = "PASSED"
	ValidationSkipped          = "SKIPPED"
	ValidationMismatchOverride = "MISMATCH_OVERRIDE"
)

// StockAudit records a single stock mutation pushed to the commerce platform.
// Rows are append-only: created once, never updated or deleted.
type StockAudit struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID uint   `gorm:"index;not null" json:"account_id"`
	ProductID uint   `gorm:"index;not null" json:"product_id"`

	TriggerActor     string   `gorm:"not null;index" json:"trigger_actor"`
	PreviousStock    *float64 `json:"previous_stock,omitempty"`
	NewStock         float64  `json:"new_stock"`
	ValidationStatus string   `gorm:"type:varchar(32);not null" json:"validation_status"`
	Context          JSONB    `gorm:"type:jsonb" json:"context"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for StockAudit model
func (StockAudit) TableName() string {
	return "stock_audits"
}
