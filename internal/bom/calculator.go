package bom

import (
	"context"
	"log"
	"math"

	"github.com/stocklink/bomsync/internal/models"
)

// ComputeEffectiveStock runs the bottleneck calculation for one composite:
// for every BOM item, read the child's current stock through src and divide
// by the required quantity per unit; the composite's effective stock is the
// minimum buildable count across all items.
//
// Items with quantity <= 0 are ignored as zero-weight. When no usable item
// remains the function returns ErrNoBOM: composite behavior does not apply.
//
// observed is the composite's current stock as last seen at the platform;
// nil means unknown. NeedsSync is only ever true against a known baseline;
// a write is never forced off an unknown one.
func ComputeEffectiveStock(ctx context.Context, b *models.BillOfMaterials, src StockSource, observed *float64) (*EffectiveStockResult, error) {
	if b.IsEmpty() {
		return nil, ErrNoBOM
	}

	result := &EffectiveStockResult{
		ProductID:          b.ProductID,
		VariationID:        b.VariationID,
		CurrentRemoteStock: observed,
	}
	if b.Product != nil {
		result.ExternalID = b.Product.ExternalID
	}

	effective := int64(math.MaxInt64)
	for i := range b.Items {
		item := &b.Items[i]
		if item.Quantity <= 0 {
			// Zero-weight line: malformed, not an error.
			continue
		}
		if !item.IsResolvable() {
			log.Printf("⚠️ BOM %d: item %d references no child, skipping", b.ID, item.ID)
			continue
		}

		snap, err := src.ComponentStock(ctx, item)
		if err != nil {
			// The source exhausted its fallback chain. Exclude the component
			// from the bottleneck rather than failing the whole product.
			log.Printf("⚠️ BOM %d: no stock value for %q: %v", b.ID, item.ComponentName(), err)
			continue
		}

		buildable := int64(math.Floor(snap.Quantity / item.Quantity))
		result.Components = append(result.Components, ComponentStock{
			Name:           item.ComponentName(),
			RequiredQty:    item.Quantity,
			ObservedStock:  snap.Quantity,
			Source:         snap.Source,
			BuildableUnits: buildable,
		})
		if buildable < effective {
			effective = buildable
		}
	}

	if len(result.Components) == 0 {
		return nil, ErrNoBOM
	}

	result.EffectiveStock = effective
	result.NeedsSync = observed != nil && *observed != float64(effective)
	return result, nil
}
