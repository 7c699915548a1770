package bom

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocklink/bomsync/internal/models"
)

// GormAuditLogger writes audit entries to the stock_audits table. Entries
// are inserted in the caller's goroutine: an audit write is part of the
// mutation, not a background job that could be lost.
type GormAuditLogger struct {
	db *gorm.DB
}

// NewAuditLogger creates the database-backed audit logger.
func NewAuditLogger(db *gorm.DB) *GormAuditLogger {
	return &GormAuditLogger{db: db}
}

// LogStockChange implements AuditLogger.
func (l *GormAuditLogger) LogStockChange(ctx context.Context, entry AuditEntry) error {
	status := entry.ValidationStatus
	if status == "" {
		status = models.ValidationPassed
	}

	record := models.StockAudit{
		ID:               uuid.NewString(),
		AccountID:        entry.AccountID,
		ProductID:        entry.ProductID,
		TriggerActor:     entry.Actor,
		PreviousStock:    entry.PreviousStock,
		NewStock:         entry.NewStock,
		ValidationStatus: status,
		Context:          models.JSONB(entry.Context),
	}

	if err := l.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to write audit entry for product %d: %w", entry.ProductID, err)
	}
	return nil
}
