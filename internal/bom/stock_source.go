package bom

import (
	"context"
	"log"

	"github.com/stocklink/bomsync/internal/models"
)

// RemoteStockSource reads component stock live from the commerce platform.
// Per-component failures degrade instead of aborting: first to the locally
// cached quantity, then to the BOM item's own last-known child stock, then
// to zero. Internal components have no platform record and always resolve
// locally.
type RemoteStockSource struct {
	client RemoteClient
}

// NewRemoteStockSource creates the live stock source for one account's client.
func NewRemoteStockSource(client RemoteClient) *RemoteStockSource {
	return &RemoteStockSource{client: client}
}

// ComponentStock implements StockSource.
func (s *RemoteStockSource) ComponentStock(ctx context.Context, item *models.BOMItem) (StockSnapshot, error) {
	switch {
	case item.ChildVariation != nil:
		v := item.ChildVariation
		if v.Product != nil {
			remote, err := s.client.GetVariation(ctx, v.Product.ExternalID, v.ExternalID)
			if err == nil && remote.StockQuantity != nil {
				return StockSnapshot{Quantity: *remote.StockQuantity, Source: SourceRemote}, nil
			}
			if err != nil {
				log.Printf("⚠️ Remote stock read failed for variation %d: %v", v.ExternalID, err)
			}
		}
		return localFallback(v.CachedStock, item.ChildStock), nil

	case item.ChildProduct != nil:
		p := item.ChildProduct
		remote, err := s.client.GetProduct(ctx, p.ExternalID)
		if err == nil && remote.StockQuantity != nil {
			return StockSnapshot{Quantity: *remote.StockQuantity, Source: SourceRemote}, nil
		}
		if err != nil {
			log.Printf("⚠️ Remote stock read failed for product %d: %v", p.ExternalID, err)
		}
		return localFallback(p.CachedStock, item.ChildStock), nil

	default:
		// Internal component: no platform representation.
		return localFallback(nil, item.ChildStock), nil
	}
}

// LocalStockSource reads only the locally cached quantities. It is the fast
// path for display-only callers that must not incur remote latency, and it
// performs no I/O: the repository preloads every child's cached stock.
type LocalStockSource struct{}

// ComponentStock implements StockSource.
func (LocalStockSource) ComponentStock(_ context.Context, item *models.BOMItem) (StockSnapshot, error) {
	switch {
	case item.ChildVariation != nil:
		return localFallback(item.ChildVariation.CachedStock, item.ChildStock), nil
	case item.ChildProduct != nil:
		return localFallback(item.ChildProduct.CachedStock, item.ChildStock), nil
	default:
		return localFallback(nil, item.ChildStock), nil
	}
}

// localFallback picks the first known local quantity, or zero.
func localFallback(cached, itemStock *float64) StockSnapshot {
	if cached != nil {
		return StockSnapshot{Quantity: *cached, Source: SourceLocal}
	}
	if itemStock != nil {
		return StockSnapshot{Quantity: *itemStock, Source: SourceLocal}
	}
	return StockSnapshot{Quantity: 0, Source: SourceZero}
}
