package models

import (
	"time"

	"gorm.io/datatypes"
)

// Status values for a SyncRun.
const (
	SyncRunRunning   = "running"
	SyncRunCompleted = "completed"
	SyncRunCancelled = "cancelled"
)

// SyncRun records one bulk inventory synchronization pass for an account:
// totals plus the per-product result detail an operator needs to see which
// products failed and why.
type SyncRun struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AccountID uint   `gorm:"index;not null" json:"account_id"`
	Status    string `gorm:"type:varchar(16);not null;index" json:"status"`

	Total   int `gorm:"default:0" json:"total"`
	Synced  int `gorm:"default:0" json:"synced"`
	Skipped int `gorm:"default:0" json:"skipped"`
	Failed  int `gorm:"default:0" json:"failed"`

	Results datatypes.JSON `json:"results"`

	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name for SyncRun model
func (SyncRun) TableName() string {
	return "sync_runs"
}
