package models

import (
	"time"

	"gorm.io/gorm"
)

// Product is the local mirror of a sellable item on the commerce platform.
// CachedStock holds the last stock quantity observed at the platform; it is
// the fallback value when a live read fails and the only value used by the
// fast/local calculation path. Nil means no stock has ever been observed.
type Product struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	AccountID  uint   `gorm:"index;not null;uniqueIndex:idx_product_external" json:"account_id"`
	ExternalID int64  `gorm:"uniqueIndex:idx_product_external" json:"external_id"`
	Name       string `gorm:"not null" json:"name"`

	// Stock mirror
	StockManaged bool       `gorm:"default:false" json:"stock_managed"`
	CachedStock  *float64   `json:"cached_stock,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Account    *Account    `gorm:"foreignKey:AccountID" json:"-"`
	Variations []Variation `gorm:"foreignKey:ProductID" json:"variations,omitempty"`
}

// TableName specifies the table name for Product model
func (Product) TableName() string {
	return "products"
}

// Variation is a specific SKU under a parent Product (size, color, ...).
// Local id 0 is never a row; it is the sentinel for "the parent product
// itself" and only appears as a BOM key.
type Variation struct {
	ID         uint  `gorm:"primaryKey" json:"id"`
	ProductID  uint  `gorm:"index;not null" json:"product_id"`
	ExternalID int64 `gorm:"index" json:"external_id"`

	CachedStock  *float64   `json:"cached_stock,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Product *Product `gorm:"foreignKey:ProductID" json:"-"`
}

// TableName specifies the table name for Variation model
func (Variation) TableName() string {
	return "variations"
}
