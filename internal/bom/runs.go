package bom

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/stocklink/bomsync/internal/models"
)

// RunStore persists bulk sync runs.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.SyncRun) error
	CompleteRun(ctx context.Context, run *models.SyncRun) error
	GetRun(ctx context.Context, accountID uint, runID string) (*models.SyncRun, error)
	ListRuns(ctx context.Context, accountID uint, limit int) ([]models.SyncRun, error)
}

// GormRunStore implements RunStore on the GORM store.
type GormRunStore struct {
	db *gorm.DB
}

// NewRunStore creates the database-backed run store.
func NewRunStore(db *gorm.DB) *GormRunStore {
	return &GormRunStore{db: db}
}

// CreateRun implements RunStore.
func (s *GormRunStore) CreateRun(ctx context.Context, run *models.SyncRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create sync run: %w", err)
	}
	return nil
}

// CompleteRun implements RunStore.
func (s *GormRunStore) CompleteRun(ctx context.Context, run *models.SyncRun) error {
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("failed to finalize sync run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns implements RunStore.
func (s *GormRunStore) ListRuns(ctx context.Context, accountID uint, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.SyncRun
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	return runs, nil
}

// GetRun implements RunStore.
func (s *GormRunStore) GetRun(ctx context.Context, accountID uint, runID string) (*models.SyncRun, error) {
	var run models.SyncRun
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND id = ?", accountID, runID).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sync run %s: %w", runID, err)
	}
	return &run, nil
}
