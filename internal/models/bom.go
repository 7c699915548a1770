package models

import (
	"time"

	"gorm.io/gorm"
)

// BillOfMaterials defines which components a composite product consumes per
// unit. Keyed uniquely by (account, product, variation); variation id 0 keys
// the parent-level BOM that applies to every variation unless a variation
// keys its own.
type BillOfMaterials struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	AccountID   uint `gorm:"uniqueIndex:idx_bom_key;not null" json:"account_id"`
	ProductID   uint `gorm:"uniqueIndex:idx_bom_key;not null" json:"product_id"`
	VariationID uint `gorm:"uniqueIndex:idx_bom_key;default:0" json:"variation_id"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Product *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Items   []BOMItem `gorm:"foreignKey:BOMID" json:"items,omitempty"`
}

// TableName specifies the table name for BillOfMaterials model
func (BillOfMaterials) TableName() string {
	return "bill_of_materials"
}

// IsEmpty reports whether this BOM carries no items. An empty BOM is
// equivalent to no BOM at all.
func (b *BillOfMaterials) IsEmpty() bool {
	return b == nil || len(b.Items) == 0
}

// BOMItem is one line of a BOM: a child component and the quantity consumed
// per composite unit. Exactly one of ChildProductID, ChildVariationID, or
// InternalName is set. ChildStock is the last locally known stock of the
// child, used as the secondary fallback when a live read fails.
type BOMItem struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	BOMID    uint    `gorm:"index;not null" json:"bom_id"`
	Position int     `gorm:"default:0" json:"position"`
	Quantity float64 `gorm:"not null" json:"quantity"`

	ChildProductID   *uint  `gorm:"index" json:"child_product_id,omitempty"`
	ChildVariationID *uint  `gorm:"index" json:"child_variation_id,omitempty"`
	InternalName     string `json:"internal_name,omitempty"`

	ChildStock *float64 `json:"child_stock,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	ChildProduct   *Product   `gorm:"foreignKey:ChildProductID" json:"child_product,omitempty"`
	ChildVariation *Variation `gorm:"foreignKey:ChildVariationID" json:"child_variation,omitempty"`
}

// TableName specifies the table name for BOMItem model
func (BOMItem) TableName() string {
	return "bom_items"
}

// IsResolvable reports whether the item references any child at all.
func (i *BOMItem) IsResolvable() bool {
	return i.ChildProductID != nil || i.ChildVariationID != nil || i.InternalName != ""
}

// ComponentName returns a display name for the referenced child.
func (i *BOMItem) ComponentName() string {
	switch {
	case i.ChildVariation != nil && i.ChildVariation.Product != nil:
		return i.ChildVariation.Product.Name
	case i.ChildProduct != nil:
		return i.ChildProduct.Name
	case i.InternalName != "":
		return i.InternalName
	}
	return "unknown component"
}
