package bom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stocklink/bomsync/internal/models"
)

// ProgressFunc receives each per-product result of a bulk sync as it lands.
type ProgressFunc func(runID string, result SyncResult)

// Orchestrator reconciles computed effective stock with the commerce
// platform: one product at a time or every composite in an account. Writes
// are idempotent: a product already in sync is reported, not rewritten.
type Orchestrator struct {
	repo     Repository
	clients  ClientProvider
	audit    AuditLogger
	runs     RunStore
	locks    *keyLock
	parallel int
	progress ProgressFunc
}

// NewOrchestrator wires the sync orchestrator. parallel bounds how many
// products a bulk sync works concurrently.
func NewOrchestrator(repo Repository, clients ClientProvider, audit AuditLogger, runs RunStore, parallel int) *Orchestrator {
	if parallel <= 0 {
		parallel = 4
	}
	return &Orchestrator{
		repo:     repo,
		clients:  clients,
		audit:    audit,
		runs:     runs,
		locks:    newKeyLock(),
		parallel: parallel,
	}
}

// SetProgress registers a callback for bulk sync progress. Must be called
// before the first SyncAll.
func (o *Orchestrator) SetProgress(fn ProgressFunc) {
	o.progress = fn
}

// SyncOne recomputes the effective stock of one (product, variation) target
// in live mode and pushes it to the platform when it disagrees with the
// remote value. variationID 0 targets the parent product.
func (o *Orchestrator) SyncOne(ctx context.Context, accountID, productID, variationID uint) SyncResult {
	client, err := o.clients.ClientFor(ctx, accountID)
	if err != nil {
		return failedResult(productID, variationID, 0, err.Error())
	}
	return o.syncOne(ctx, client, accountID, productID, variationID)
}

func (o *Orchestrator) syncOne(ctx context.Context, client RemoteClient, accountID, productID, variationID uint) SyncResult {
	b, err := o.repo.ResolveBOM(ctx, accountID, productID, variationID)
	if err != nil {
		return failedResult(productID, variationID, 0, err.Error())
	}
	if b.IsEmpty() {
		// Caller error, not a system fault.
		return failedResult(productID, variationID, 0, ErrNoBOM.Error())
	}

	product := b.Product
	if product == nil {
		product, err = o.repo.GetProduct(ctx, accountID, productID)
		if err != nil || product == nil {
			return failedResult(productID, variationID, 0, fmt.Sprintf("product %d not found", productID))
		}
	}

	if reason := o.nestedComponent(ctx, accountID, b); reason != "" {
		return failedResult(productID, variationID, product.ExternalID, reason)
	}

	// Target variation record, when syncing a specific variation.
	var variation *models.Variation
	if variationID > 0 {
		variation, err = o.repo.GetVariation(ctx, variationID)
		if err != nil {
			return failedResult(productID, variationID, product.ExternalID, err.Error())
		}
		if variation == nil {
			return failedResult(productID, variationID, product.ExternalID, fmt.Sprintf("variation %d not found", variationID))
		}
	}

	observed := o.observedStock(ctx, client, product, variation)

	result, err := ComputeEffectiveStock(ctx, b, NewRemoteStockSource(client), observed)
	if errors.Is(err, ErrNoBOM) {
		return failedResult(productID, variationID, product.ExternalID, ErrNoBOM.Error())
	}
	if err != nil {
		return failedResult(productID, variationID, product.ExternalID, err.Error())
	}

	if !result.NeedsSync {
		// Already in sync (or the baseline is unknown): a no-op is a success
		// so bulk accounting stays simple.
		return SyncResult{
			ProductID:     productID,
			VariationID:   variationID,
			ExternalID:    product.ExternalID,
			Status:        StatusSkipped,
			PreviousStock: observed,
			NewStock:      result.EffectiveStock,
			Reason:        "already in sync",
			Components:    result.Components,
		}
	}

	newStock := float64(result.EffectiveStock)
	upd := StockUpdate{
		StockQuantity: newStock,
		ManageStock:   true,
		StockStatus:   stockStatus(newStock),
	}

	if variation != nil {
		unlock := o.locks.Lock(variationKey(accountID, product.ExternalID, variation.ExternalID))
		err = client.UpdateVariationStock(ctx, product.ExternalID, variation.ExternalID, upd)
		unlock()
	} else {
		unlock := o.locks.Lock(productKey(accountID, product.ExternalID))
		err = client.UpdateProductStock(ctx, product.ExternalID, upd)
		unlock()
	}
	if err != nil {
		// No audit entry: an audit entry implies a write happened.
		res := failedResult(productID, variationID, product.ExternalID, err.Error())
		res.PreviousStock = observed
		res.NewStock = result.EffectiveStock
		return res
	}

	if variation != nil {
		if cerr := o.repo.UpdateVariationStockCache(ctx, variation.ID, newStock); cerr != nil {
			log.Printf("⚠️ Sync: cache update failed for variation %d: %v", variation.ID, cerr)
		}
	} else {
		if cerr := o.repo.UpdateProductStockCache(ctx, product.ID, newStock); cerr != nil {
			log.Printf("⚠️ Sync: cache update failed for product %d: %v", product.ID, cerr)
		}
	}

	o.logSync(ctx, accountID, product, variationID, observed, result)

	return SyncResult{
		ProductID:     productID,
		VariationID:   variationID,
		ExternalID:    product.ExternalID,
		Status:        StatusSynced,
		PreviousStock: observed,
		NewStock:      result.EffectiveStock,
		Components:    result.Components,
	}
}

// SyncAll synchronizes every composite in the account with bounded
// parallelism. A single product's failure never stops enumeration; a
// cancelled context stops scheduling further products.
func (o *Orchestrator) SyncAll(ctx context.Context, accountID uint) (*BulkSyncResult, error) {
	client, err := o.clients.ClientFor(ctx, accountID)
	if err != nil {
		return nil, err
	}

	boms, err := o.repo.ListComposites(ctx, accountID)
	if err != nil {
		return nil, err
	}

	run := &models.SyncRun{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Status:    models.SyncRunRunning,
		Total:     len(boms),
		StartedAt: time.Now(),
	}
	if err := o.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	log.Printf("🔄 Sync: starting bulk run %s for account %d (%d composites)", run.ID, accountID, len(boms))

	results := make([]SyncResult, len(boms))
	scheduled := 0

	g := new(errgroup.Group)
	g.SetLimit(o.parallel)
	for i, b := range boms {
		if ctx.Err() != nil {
			break
		}
		i, b := i, b
		scheduled++
		g.Go(func() error {
			res := o.syncOne(ctx, client, accountID, b.ProductID, b.VariationID)
			results[i] = res
			if o.progress != nil {
				o.progress(run.ID, res)
			}
			return nil
		})
	}
	_ = g.Wait()

	results = results[:scheduled]
	bulk := &BulkSyncResult{RunID: run.ID, Total: len(boms), Results: results}
	for _, res := range results {
		switch res.Status {
		case StatusSynced:
			bulk.Synced++
		case StatusSkipped:
			bulk.Skipped++
		default:
			bulk.Failed++
		}
	}

	run.Synced = bulk.Synced
	run.Skipped = bulk.Skipped
	run.Failed = bulk.Failed
	run.Status = models.SyncRunCompleted
	if ctx.Err() != nil {
		run.Status = models.SyncRunCancelled
	}
	now := time.Now()
	run.CompletedAt = &now
	if data, merr := json.Marshal(results); merr == nil {
		run.Results = data
	}
	// Finalize with a fresh context so a cancelled bulk run is still recorded.
	if err := o.runs.CompleteRun(context.WithoutCancel(ctx), run); err != nil {
		log.Printf("❌ Sync: failed to record run %s: %v", run.ID, err)
	}

	log.Printf("✅ Sync: run %s done (synced %d, skipped %d, failed %d)", run.ID, bulk.Synced, bulk.Skipped, bulk.Failed)
	return bulk, nil
}

// EffectiveStockLocal computes effective stock from the local cache only,
// for display callers that must not incur remote latency.
func (o *Orchestrator) EffectiveStockLocal(ctx context.Context, accountID, productID, variationID uint) (*EffectiveStockResult, error) {
	b, err := o.repo.ResolveBOM(ctx, accountID, productID, variationID)
	if err != nil {
		return nil, err
	}
	if b.IsEmpty() {
		return nil, ErrNoBOM
	}
	var observed *float64
	if b.Product != nil {
		observed = b.Product.CachedStock
	}
	return ComputeEffectiveStock(ctx, b, LocalStockSource{}, observed)
}

// nestedComponent returns a reason string when any BOM component is itself a
// composite.
func (o *Orchestrator) nestedComponent(ctx context.Context, accountID uint, b *models.BillOfMaterials) string {
	for i := range b.Items {
		item := &b.Items[i]
		var childProductID uint
		switch {
		case item.ChildVariation != nil:
			childProductID = item.ChildVariation.ProductID
		case item.ChildProduct != nil:
			childProductID = item.ChildProduct.ID
		default:
			continue
		}
		nested, err := o.repo.HasBOM(ctx, accountID, childProductID)
		if err != nil {
			log.Printf("⚠️ Nested BOM check failed for product %d: %v", childProductID, err)
			continue
		}
		if nested {
			return fmt.Sprintf("%v: %q", ErrNestedBOM, item.ComponentName())
		}
	}
	return ""
}

// observedStock reads the composite's own current platform stock. Unknown
// (read failure or untracked) yields nil, which gates NeedsSync off.
func (o *Orchestrator) observedStock(ctx context.Context, client RemoteClient, product *models.Product, variation *models.Variation) *float64 {
	if variation != nil {
		remote, err := client.GetVariation(ctx, product.ExternalID, variation.ExternalID)
		if err != nil {
			log.Printf("⚠️ Sync: observed stock read failed for variation %d: %v", variation.ExternalID, err)
			return nil
		}
		return remote.StockQuantity
	}
	remote, err := client.GetProduct(ctx, product.ExternalID)
	if err != nil {
		log.Printf("⚠️ Sync: observed stock read failed for product %d: %v", product.ExternalID, err)
		return nil
	}
	return remote.StockQuantity
}

func (o *Orchestrator) logSync(ctx context.Context, accountID uint, product *models.Product, variationID uint, observed *float64, result *EffectiveStockResult) {
	components := make([]interface{}, 0, len(result.Components))
	for _, c := range result.Components {
		components = append(components, map[string]interface{}{
			"name":            c.Name,
			"required_qty":    c.RequiredQty,
			"observed_stock":  c.ObservedStock,
			"source":          string(c.Source),
			"buildable_units": c.BuildableUnits,
		})
	}

	entry := AuditEntry{
		AccountID:        accountID,
		ProductID:        product.ID,
		Actor:            ActorInventorySync,
		PreviousStock:    observed,
		NewStock:         float64(result.EffectiveStock),
		ValidationStatus: models.ValidationPassed,
		Context: map[string]interface{}{
			"external_id":  product.ExternalID,
			"variation_id": variationID,
			"components":   components,
		},
	}
	if err := o.audit.LogStockChange(ctx, entry); err != nil {
		log.Printf("❌ Audit write failed for sync of product %d: %v", product.ID, err)
	}
}

func failedResult(productID, variationID uint, externalID int64, reason string) SyncResult {
	return SyncResult{
		ProductID:   productID,
		VariationID: variationID,
		ExternalID:  externalID,
		Status:      StatusFailed,
		Reason:      reason,
	}
}
