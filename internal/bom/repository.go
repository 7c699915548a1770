package bom

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/stocklink/bomsync/internal/models"
)

// Repository is the engine's read/cache access to BOM definitions and the
// local product mirror. BOM rows are read-only from here; they are edited by
// the operator-facing CRUD layer.
type Repository interface {
	// GetBOM returns the BOM keyed to the exact (product, variation) pair,
	// nil when absent.
	GetBOM(ctx context.Context, accountID, productID, variationID uint) (*models.BillOfMaterials, error)

	// ResolveBOM applies the variant fallback rule: the variation's own BOM
	// when present, otherwise the parent-level BOM (variation 0).
	ResolveBOM(ctx context.Context, accountID, productID, variationID uint) (*models.BillOfMaterials, error)

	// ListComposites returns every BOM in the account with at least one
	// product- or variation-referencing item.
	ListComposites(ctx context.Context, accountID uint) ([]*models.BillOfMaterials, error)

	// HasBOM reports whether the product owns any BOM with a usable item,
	// under any variation key. Used to reject nested composites.
	HasBOM(ctx context.Context, accountID, productID uint) (bool, error)

	GetProduct(ctx context.Context, accountID, productID uint) (*models.Product, error)
	GetVariation(ctx context.Context, variationID uint) (*models.Variation, error)
	FindProductByExternalID(ctx context.Context, accountID uint, externalID int64) (*models.Product, error)
	FindVariationByExternalID(ctx context.Context, productID uint, externalID int64) (*models.Variation, error)

	// Cache writers keep the local stock mirror current after a successful
	// remote write.
	UpdateProductStockCache(ctx context.Context, productID uint, qty float64) error
	UpdateVariationStockCache(ctx context.Context, variationID uint, qty float64) error
}

// bomGetter is the exact-key lookup the variant fallback walks over.
type bomGetter interface {
	GetBOM(ctx context.Context, accountID, productID, variationID uint) (*models.BillOfMaterials, error)
}

// resolveBOM is the variant fallback rule shared by every Repository: try the
// exact (product, variation) key first, then the parent-level BOM keyed to
// variation 0. A lookup error stops the chain.
func resolveBOM(ctx context.Context, g bomGetter, accountID, productID, variationID uint) (*models.BillOfMaterials, error) {
	if variationID > 0 {
		b, err := g.GetBOM(ctx, accountID, productID, variationID)
		if err != nil || b != nil {
			return b, err
		}
	}
	return g.GetBOM(ctx, accountID, productID, 0)
}

// GormRepository implements Repository on the GORM store.
type GormRepository struct {
	db *gorm.DB
}

// NewRepository creates the database-backed repository.
func NewRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Product").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("bom_items.position ASC, bom_items.id ASC")
		}).
		Preload("Items.ChildProduct").
		Preload("Items.ChildVariation").
		Preload("Items.ChildVariation.Product")
}

// GetBOM implements Repository.
func (r *GormRepository) GetBOM(ctx context.Context, accountID, productID, variationID uint) (*models.BillOfMaterials, error) {
	var b models.BillOfMaterials
	err := r.withChildren(ctx).
		Where("account_id = ? AND product_id = ? AND variation_id = ?", accountID, productID, variationID).
		First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load BOM for product %d: %w", productID, err)
	}
	return &b, nil
}

// ResolveBOM implements Repository.
func (r *GormRepository) ResolveBOM(ctx context.Context, accountID, productID, variationID uint) (*models.BillOfMaterials, error) {
	return resolveBOM(ctx, r, accountID, productID, variationID)
}

// ListComposites implements Repository.
func (r *GormRepository) ListComposites(ctx context.Context, accountID uint) ([]*models.BillOfMaterials, error) {
	eligible := r.db.Model(&models.BOMItem{}).
		Select("bom_id").
		Where("child_product_id IS NOT NULL OR child_variation_id IS NOT NULL")

	var boms []*models.BillOfMaterials
	err := r.withChildren(ctx).
		Where("account_id = ?", accountID).
		Where("id IN (?)", eligible).
		Order("product_id ASC, variation_id ASC").
		Find(&boms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate BOMs for account %d: %w", accountID, err)
	}
	return boms, nil
}

// HasBOM implements Repository.
func (r *GormRepository) HasBOM(ctx context.Context, accountID, productID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BOMItem{}).
		Joins("JOIN bill_of_materials ON bill_of_materials.id = bom_items.bom_id").
		Where("bill_of_materials.account_id = ? AND bill_of_materials.product_id = ?", accountID, productID).
		Where("bill_of_materials.deleted_at IS NULL").
		Where("bom_items.quantity > 0").
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check BOM ownership for product %d: %w", productID, err)
	}
	return count > 0, nil
}

// GetProduct implements Repository.
func (r *GormRepository) GetProduct(ctx context.Context, accountID, productID uint) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&p, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product %d: %w", productID, err)
	}
	return &p, nil
}

// GetVariation implements Repository.
func (r *GormRepository) GetVariation(ctx context.Context, variationID uint) (*models.Variation, error) {
	var v models.Variation
	err := r.db.WithContext(ctx).Preload("Product").First(&v, variationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load variation %d: %w", variationID, err)
	}
	return &v, nil
}

// FindProductByExternalID implements Repository.
func (r *GormRepository) FindProductByExternalID(ctx context.Context, accountID uint, externalID int64) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND external_id = ?", accountID, externalID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product by external id %d: %w", externalID, err)
	}
	return &p, nil
}

// FindVariationByExternalID implements Repository.
func (r *GormRepository) FindVariationByExternalID(ctx context.Context, productID uint, externalID int64) (*models.Variation, error) {
	var v models.Variation
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND external_id = ?", productID, externalID).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find variation by external id %d: %w", externalID, err)
	}
	return &v, nil
}

// UpdateProductStockCache implements Repository.
func (r *GormRepository) UpdateProductStockCache(ctx context.Context, productID uint, qty float64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"cached_stock":   qty,
			"last_synced_at": now,
		}).Error
}

// UpdateVariationStockCache implements Repository.
func (r *GormRepository) UpdateVariationStockCache(ctx context.Context, variationID uint, qty float64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.Variation{}).
		Where("id = ?", variationID).
		Updates(map[string]interface{}{
			"cached_stock":   qty,
			"last_synced_at": now,
		}).Error
}
