// Package bom implements the bill-of-materials inventory engine: resolving
// how many units of a composite product are buildable from its components,
// deducting component stock when composites sell, and reconciling the
// computed quantity with the commerce platform.
package bom

import (
	"context"
	"errors"

	"github.com/stocklink/bomsync/internal/models"
)

// Sentinel errors for "composite behavior does not apply" conditions. These
// are configuration outcomes, not system faults, and never abort a batch.
var (
	// ErrNoBOM is returned when a product has no bill of materials, an empty
	// one, or one whose items all have non-positive quantities.
	ErrNoBOM = errors.New("product has no usable bill of materials")

	// ErrNestedBOM is returned when a BOM component is itself a composite.
	// Nested BOMs are rejected loudly rather than resolved recursively.
	ErrNestedBOM = errors.New("bill of materials references a composite component")
)

// Source tags where a component's stock number came from. In the live path
// SourceLocal means the remote read failed and the local record was
// substituted: the number is a guess, not a fact.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
	SourceZero   Source = "zero"
)

// StockSnapshot is the result of reading one component's current quantity.
type StockSnapshot struct {
	Quantity float64
	Source   Source
}

// StockSource reads the current stock of the component a BOM item references.
// Implementations must not fail on a transient remote error; they fall back
// to the local record and finally to zero, tagging the snapshot accordingly.
type StockSource interface {
	ComponentStock(ctx context.Context, item *models.BOMItem) (StockSnapshot, error)
}

// ComponentStock is the per-component breakdown of an effective stock
// calculation: kept for explainability and audit, not just the final number.
type ComponentStock struct {
	Name           string  `json:"name"`
	RequiredQty    float64 `json:"required_qty"`
	ObservedStock  float64 `json:"observed_stock"`
	Source         Source  `json:"source"`
	BuildableUnits int64   `json:"buildable_units"`
}

// EffectiveStockResult is the outcome of one bottleneck calculation. Computed
// fresh on every invocation, never cached.
type EffectiveStockResult struct {
	ProductID          uint             `json:"product_id"`
	VariationID        uint             `json:"variation_id"`
	ExternalID         int64            `json:"external_id"`
	EffectiveStock     int64            `json:"effective_stock"`
	CurrentRemoteStock *float64         `json:"current_remote_stock,omitempty"`
	NeedsSync          bool             `json:"needs_sync"`
	Components         []ComponentStock `json:"components"`
}

// Degraded reports whether any component's stock came from somewhere other
// than the live remote read.
func (r *EffectiveStockResult) Degraded() bool {
	for _, c := range r.Components {
		if c.Source != SourceRemote {
			return true
		}
	}
	return false
}

// Stock status strings understood by the commerce platform.
const (
	StockStatusInStock    = "in_stock"
	StockStatusOutOfStock = "out_of_stock"
)

// RemoteProduct is the platform's current view of a product. StockQuantity
// is nil when stock tracking is disabled at the platform.
type RemoteProduct struct {
	Name          string
	StockQuantity *float64
	StockManaged  bool
}

// RemoteVariation is the platform's current view of a variation.
type RemoteVariation struct {
	StockQuantity *float64
	StockManaged  bool
}

// StockUpdate is the payload of a remote stock write.
type StockUpdate struct {
	StockQuantity float64
	ManageStock   bool
	StockStatus   string
}

// RemoteClient is the commerce platform contract this engine depends on.
// Product and variation updates are two different write shapes and must not
// be conflated.
type RemoteClient interface {
	GetProduct(ctx context.Context, externalID int64) (*RemoteProduct, error)
	GetVariation(ctx context.Context, parentExternalID, variationExternalID int64) (*RemoteVariation, error)
	UpdateProductStock(ctx context.Context, externalID int64, upd StockUpdate) error
	UpdateVariationStock(ctx context.Context, parentExternalID, variationExternalID int64, upd StockUpdate) error
}

// ClientProvider resolves the remote client for a tenant.
type ClientProvider interface {
	ClientFor(ctx context.Context, accountID uint) (RemoteClient, error)
}

// Trigger actors recorded in audit entries.
const (
	ActorOrderDeduction = "order BOM deduction"
	ActorInventorySync  = "BOM inventory sync"
)

// AuditEntry describes one stock mutation for the audit trail.
type AuditEntry struct {
	AccountID        uint
	ProductID        uint
	Actor            string
	PreviousStock    *float64
	NewStock         float64
	ValidationStatus string
	Context          map[string]interface{}
}

// AuditLogger records stock mutations. It is called synchronously as part of
// the mutating operation's completion, never deferred to a background job.
type AuditLogger interface {
	LogStockChange(ctx context.Context, entry AuditEntry) error
}

// SyncStatus classifies the outcome of one syncOne pass.
type SyncStatus string

const (
	StatusSynced  SyncStatus = "synced"
	StatusSkipped SyncStatus = "skipped" // already in sync; still a success
	StatusFailed  SyncStatus = "failed"
)

// SyncResult is the per-product outcome of a sync pass.
type SyncResult struct {
	ProductID     uint             `json:"product_id"`
	VariationID   uint             `json:"variation_id"`
	ExternalID    int64            `json:"external_id"`
	Status        SyncStatus       `json:"status"`
	PreviousStock *float64         `json:"previous_stock,omitempty"`
	NewStock      int64            `json:"new_stock"`
	Reason        string           `json:"reason,omitempty"`
	Components    []ComponentStock `json:"components,omitempty"`
}

// BulkSyncResult tallies a syncAll pass. Reporting is all-or-nothing;
// execution never is: every eligible BOM gets attempted.
type BulkSyncResult struct {
	RunID   string       `json:"run_id"`
	Total   int          `json:"total"`
	Synced  int          `json:"synced"`
	Skipped int          `json:"skipped"`
	Failed  int          `json:"failed"`
	Results []SyncResult `json:"results"`
}
