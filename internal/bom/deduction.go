package bom

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/stocklink/bomsync/internal/models"
)

// OrderLineItem is one sold line of an order-created event. Identifiers are
// the commerce platform's external ids.
type OrderLineItem struct {
	ProductID   int64   `json:"product_id"`
	VariationID int64   `json:"variation_id,omitempty"`
	Quantity    float64 `json:"quantity"`
}

// Order is the order payload of an order-created event.
type Order struct {
	ID        int64           `json:"id"`
	Number    string          `json:"number"`
	LineItems []OrderLineItem `json:"line_items"`
}

// OrderEvent is the inbound "order created" event.
type OrderEvent struct {
	AccountID uint  `json:"account_id"`
	Order     Order `json:"order"`
}

// DeductionListener reacts to order-created events: for every sold composite
// it deducts proportional stock from each component at the platform. Each
// (line item, component) unit of work is independent and best-effort: one
// failure never blocks the rest, and nothing is retried here. Delivery
// guarantees belong to the event bus.
type DeductionListener struct {
	repo     Repository
	clients  ClientProvider
	audit    AuditLogger
	locks    *keyLock
	parallel int
}

// NewDeductionListener wires the listener. parallel bounds how many line
// items are processed concurrently.
func NewDeductionListener(repo Repository, clients ClientProvider, audit AuditLogger, parallel int) *DeductionListener {
	if parallel <= 0 {
		parallel = 4
	}
	return &DeductionListener{
		repo:     repo,
		clients:  clients,
		audit:    audit,
		locks:    newKeyLock(),
		parallel: parallel,
	}
}

// HandleOrderCreated processes one order-created event. It returns an error
// only for faults that precede any per-item work (unknown account); expected
// per-item failures are logged and absorbed.
func (l *DeductionListener) HandleOrderCreated(ctx context.Context, ev OrderEvent) error {
	client, err := l.clients.ClientFor(ctx, ev.AccountID)
	if err != nil {
		return fmt.Errorf("order %d: %w", ev.Order.ID, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallel)
	for _, line := range ev.Order.LineItems {
		line := line
		g.Go(func() error {
			l.deductLine(gctx, client, ev, line)
			return nil
		})
	}
	return g.Wait()
}

// deductLine resolves the line's BOM and deducts every platform-tracked
// component.
func (l *DeductionListener) deductLine(ctx context.Context, client RemoteClient, ev OrderEvent, line OrderLineItem) {
	product, err := l.repo.FindProductByExternalID(ctx, ev.AccountID, line.ProductID)
	if err != nil {
		log.Printf("⚠️ Order %d: product lookup %d failed: %v", ev.Order.ID, line.ProductID, err)
		return
	}
	if product == nil {
		// The order may reference a product outside this inventory model.
		log.Printf("Order %d: product %d not tracked locally, skipping line", ev.Order.ID, line.ProductID)
		return
	}

	var variationID uint
	if line.VariationID > 0 {
		variation, err := l.repo.FindVariationByExternalID(ctx, product.ID, line.VariationID)
		if err != nil {
			log.Printf("⚠️ Order %d: variation lookup %d failed: %v", ev.Order.ID, line.VariationID, err)
			return
		}
		if variation != nil {
			variationID = variation.ID
		}
	}

	b, err := l.repo.ResolveBOM(ctx, ev.AccountID, product.ID, variationID)
	if err != nil {
		log.Printf("⚠️ Order %d: BOM lookup for product %d failed: %v", ev.Order.ID, product.ID, err)
		return
	}
	if b.IsEmpty() {
		// Not a composite; its own stock is decremented by the upstream
		// order flow, not by this engine.
		return
	}

	for i := range b.Items {
		l.deductComponent(ctx, client, ev, line, product, &b.Items[i])
	}
}

// deductComponent performs one read-modify-write against a single child.
func (l *DeductionListener) deductComponent(ctx context.Context, client RemoteClient, ev OrderEvent, line OrderLineItem, parent *models.Product, item *models.BOMItem) {
	if item.Quantity <= 0 {
		return
	}

	switch {
	case item.ChildVariation != nil:
		v := item.ChildVariation
		if v.Product == nil {
			log.Printf("⚠️ Order %d: variation %d has no parent product loaded, skipping", ev.Order.ID, v.ID)
			return
		}
		if l.isComposite(ctx, ev.AccountID, v.ProductID, item) {
			return
		}

		unlock := l.locks.Lock(variationKey(ev.AccountID, v.Product.ExternalID, v.ExternalID))
		defer unlock()

		remote, err := client.GetVariation(ctx, v.Product.ExternalID, v.ExternalID)
		if err != nil {
			log.Printf("⚠️ Order %d: stock read failed for variation %d: %v", ev.Order.ID, v.ExternalID, err)
			return
		}
		if remote.StockQuantity == nil {
			log.Printf("⚠️ Order %d: stock tracking disabled for variation %d, skipping deduction", ev.Order.ID, v.ExternalID)
			return
		}

		previous := *remote.StockQuantity
		newStock := previous - item.Quantity*line.Quantity
		err = client.UpdateVariationStock(ctx, v.Product.ExternalID, v.ExternalID, StockUpdate{
			StockQuantity: newStock,
			ManageStock:   true,
			StockStatus:   stockStatus(newStock),
		})
		if err != nil {
			log.Printf("⚠️ Order %d: stock write failed for variation %d: %v", ev.Order.ID, v.ExternalID, err)
			return
		}

		if err := l.repo.UpdateVariationStockCache(ctx, v.ID, newStock); err != nil {
			log.Printf("⚠️ Order %d: cache update failed for variation %d: %v", ev.Order.ID, v.ID, err)
		}
		l.logDeduction(ctx, ev, line, parent, v.ProductID, previous, newStock, item)

	case item.ChildProduct != nil:
		p := item.ChildProduct
		if l.isComposite(ctx, ev.AccountID, p.ID, item) {
			return
		}

		unlock := l.locks.Lock(productKey(ev.AccountID, p.ExternalID))
		defer unlock()

		remote, err := client.GetProduct(ctx, p.ExternalID)
		if err != nil {
			log.Printf("⚠️ Order %d: stock read failed for product %d: %v", ev.Order.ID, p.ExternalID, err)
			return
		}
		if remote.StockQuantity == nil {
			log.Printf("⚠️ Order %d: stock tracking disabled for product %d, skipping deduction", ev.Order.ID, p.ExternalID)
			return
		}

		previous := *remote.StockQuantity
		// Negative stock is a valid oversell signal and is pushed unclamped.
		newStock := previous - item.Quantity*line.Quantity
		err = client.UpdateProductStock(ctx, p.ExternalID, StockUpdate{
			StockQuantity: newStock,
			ManageStock:   true,
			StockStatus:   stockStatus(newStock),
		})
		if err != nil {
			log.Printf("⚠️ Order %d: stock write failed for product %d: %v", ev.Order.ID, p.ExternalID, err)
			return
		}

		if err := l.repo.UpdateProductStockCache(ctx, p.ID, newStock); err != nil {
			log.Printf("⚠️ Order %d: cache update failed for product %d: %v", ev.Order.ID, p.ID, err)
		}
		l.logDeduction(ctx, ev, line, parent, p.ID, previous, newStock, item)

	default:
		// Internal component: no external representation to write back to.
	}
}

// isComposite rejects nested BOMs: a component that is itself a composite is
// skipped with a loud log instead of being resolved recursively.
func (l *DeductionListener) isComposite(ctx context.Context, accountID, childProductID uint, item *models.BOMItem) bool {
	nested, err := l.repo.HasBOM(ctx, accountID, childProductID)
	if err != nil {
		log.Printf("⚠️ Nested BOM check failed for product %d: %v", childProductID, err)
		return false
	}
	if nested {
		log.Printf("❌ %v: component %q of BOM %d, skipping", ErrNestedBOM, item.ComponentName(), item.BOMID)
	}
	return nested
}

func (l *DeductionListener) logDeduction(ctx context.Context, ev OrderEvent, line OrderLineItem, parent *models.Product, childProductID uint, previous, newStock float64, item *models.BOMItem) {
	entry := AuditEntry{
		AccountID:        ev.AccountID,
		ProductID:        childProductID,
		Actor:            ActorOrderDeduction,
		PreviousStock:    &previous,
		NewStock:         newStock,
		ValidationStatus: models.ValidationPassed,
		Context: map[string]interface{}{
			"order_id":           ev.Order.ID,
			"order_number":       ev.Order.Number,
			"parent_external_id": parent.ExternalID,
			"quantity_sold":      line.Quantity,
			"qty_per_unit":       item.Quantity,
		},
	}
	if err := l.audit.LogStockChange(ctx, entry); err != nil {
		log.Printf("❌ Audit write failed for order %d, product %d: %v", ev.Order.ID, childProductID, err)
	}
}

// stockStatus maps a quantity to the platform's stock status string.
func stockStatus(qty float64) string {
	if qty > 0 {
		return StockStatusInStock
	}
	return StockStatusOutOfStock
}
