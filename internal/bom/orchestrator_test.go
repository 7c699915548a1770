package bom

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stocklink/bomsync/internal/models"
)

// giftBoxFixture wires an account with one composite, "Gift Box" (external
// id 100): 2 candles (external id 200, 9 in stock) and 1 card (external id
// 300, 4 in stock). Effective stock is min(floor(9/2), 4) = 4.
func giftBoxFixture(repo *fakeRepo, client *fakeClient, observed *float64) {
	parent := repo.addProduct(&models.Product{ID: 1, AccountID: 1, ExternalID: 100, Name: "Gift Box"})
	candle := repo.addProduct(&models.Product{ID: 2, AccountID: 1, ExternalID: 200, Name: "Candle"})
	card := repo.addProduct(&models.Product{ID: 3, AccountID: 1, ExternalID: 300, Name: "Card"})

	candleID, cardID := candle.ID, card.ID
	repo.addBOM(&models.BillOfMaterials{
		ID:        1,
		AccountID: 1,
		ProductID: parent.ID,
		Product:   parent,
		Items: []models.BOMItem{
			{ID: 1, BOMID: 1, Quantity: 2, ChildProductID: &candleID, ChildProduct: candle},
			{ID: 2, BOMID: 1, Quantity: 1, ChildProductID: &cardID, ChildProduct: card},
		},
	})
	repo.composites[candle.ID] = false
	repo.composites[card.ID] = false

	client.setProduct(100, observed)
	client.setProduct(200, f64(9))
	client.setProduct(300, f64(4))
}

func newTestOrchestrator(repo *fakeRepo, client *fakeClient, audit *fakeAudit, runs *fakeRunStore) *Orchestrator {
	return NewOrchestrator(repo, &fakeProvider{client: client}, audit, runs, 2)
}

func TestSyncOne_PushesWhenOutOfSync(t *testing.T) {
	repo := newFakeRepo()
	client := newFakeClient()
	audit := &fakeAudit{}
	runs := &fakeRunStore{}
	giftBoxFixture(repo, client, f64(2))

	o := newTestOrchestrator(repo, client, audit, runs)

	res := o.SyncOne(context.Background(), 1, 1, 0)
	if res.Status != StatusSynced {
		t.Fatalf("Expected status synced, got %q (%s)", res.Status, res.Reason)
	}
	if res.NewStock != 4 {
		t.Errorf("Expected effective stock 4, got %d", res.NewStock)
	}
	if res.PreviousStock == nil || *res.PreviousStock != 2 {
		t.Errorf("Expected previous stock 2, got %v", res.PreviousStock)
	}

	w := client.writeFor(100)
	if w == nil {
		t.Fatal("Expected a stock write for the composite")
	}
	if w.Update.StockQuantity != 4 {
		t.Errorf("Expected pushed stock 4, got %v", w.Update.StockQuantity)
	}
	if w.Update.StockStatus != StockStatusInStock {
		t.Errorf("Expected status %q, got %q", StockStatusInStock, w.Update.StockStatus)
	}

	// Local mirror updated, audit written with the component breakdown
	if got := repo.productCache[1]; got != 4 {
		t.Errorf("Expected cached stock 4 for composite, got %v", got)
	}
	entry := audit.entryFor(1)
	if entry == nil {
		t.Fatal("Expected an audit entry for the sync")
	}
	if entry.Actor != ActorInventorySync {
		t.Errorf("Expected actor %q, got %q", ActorInventorySync, entry.Actor)
	}
	if _, ok := entry.Context["components"]; !ok {
		t.Error("Expected component breakdown in audit context")
	}
}

func TestSyncOne_SecondPassIsNoop(t *testing.T) {
	repo := newFakeRepo()
	client := newFakeClient()
	audit := &fakeAudit{}
	runs := &fakeRunStore{}
	giftBoxFixture(repo, client, f64(2))

	o := newTestOrchestrator(repo, client, audit, runs)

	first := o.SyncOne(context.Background(), 1, 1, 0)
	if first.Status != StatusSynced {
		t.Fatalf("Expected first pass to sync, got %q", first.Status)
	}

	// The write landed at the platform; re-running must change nothing
	second := o.SyncOne(context.Background(), 1, 1, 0)
	if second.Status != StatusSkipped {
		t.Errorf("Expected second pass skipped, got %q (%s)", second.Status, second.Reason)
	}
	if client.writeCount() != 1 {
		t.Errorf("Expected exactly one write across both passes, got %d", client.writeCount())
	}
	if audit.count() != 1 {
		t.Errorf("Expected exactly one audit entry, got %d", audit.count())
	}
}

func TestSyncOne_UnknownBaselineNeverWrites(t *testing.T) {
	repo := newFakeRepo()
	client := newFakeClient()
	audit := &fakeAudit{}
	runs := &fakeRunStore{}
	giftBoxFixture(repo, client, f64(2))

	// The composite's own remote read fails: baseline unknown
	client.readErrs[100] = errors.New("timeout")

	o := newTestOrchestrator(repo, client, audit, runs)

	res := o.SyncOne(context.Background(), 1, 1, 0)
	if res.Status != StatusSkipped {
		t.Errorf("Expected skip on unknown baseline, got %q", res.Status)
	}
	if client.writeCount() != 0 {
		t.Errorf("Expected no writes off an unknown baseline, got %d", client.writeCount())
	}
}

func TestSyncOne_NoBOMFails(t *testing.T) {
	repo := newFakeRepo()
	client := newFakeClient()
	repo.addProduct(&models.Product{ID: 1, AccountID: 1, ExternalID: 100, Name: "Plain"})

	o := newTestOrchestrator(repo, client, &fakeAudit{}, &fakeRunStore{})

	res := o.SyncOne(context.Background(), 1, 1, 0)
	if res.Status != StatusFailed {
		t.Fatalf("Expected failed status for a product without BOM, got %q", res.Status)
	}
	if !strings.Contains(res.Reason, "bill of materials") {
		t.Errorf("Expected no-BOM reason, got %q", res.Reason)
	}
}

func TestSyncOne_NestedComponentRejected(t *testing.T) {
	repo := newFakeRepo()
	client := newFakeClient()
	giftBoxFixture(repo, client, f64(2))

	// The candle is itself a composite
	repo.composites[2] = true

	o := newTestOrchestrator(repo, client, &fakeAudit{}, &fakeRunStore{})

	res := o.SyncOne(context.Background(), 1, 1, 0)
	if res.Status != StatusFailed {
		t.Fatalf("Expected failed status for nested BOM, got %q", res.Status)
	}
	if !strings.Contains(res.Reason, "composite component") {
		t.Errorf("Expected nested-BOM reason, got %q", res.Reason)
	}
	if client.writeCount() != 0 {
		t.Errorf("Expected no writes, got %d", client.writeCount())
	}
}

func TestSyncOne_WriteFailureNotAudited(t *testing.T) {
	repo := newFakeRepo()
	client := newFakeClient()
	audit := &fakeAudit{}
	giftBoxFixture(repo, client, f64(2))

	client.writeErrs[100] = errors.New("platform 500")

	o := newTestOrchestrator(repo, client, audit, &fakeRunStore{})

	res := o.SyncOne(context.Background(), 1, 1, 0)
	if res.Status != StatusFailed {
		t.Fatalf("Expected failed status, got %q", res.Status)
	}
	if res.NewStock != 4 {
		t.Errorf("Failed result should still carry the attempted value, got %d", res.NewStock)
	}
	if audit.count() != 0 {
		t.Errorf("A failed write must not produce an audit entry, got %d", audit.count())
	}
	// Cache untouched on failure
	if _, ok := repo.productCache[1]; ok {
		t.Error("Cache must not be updated when the write failed")
	}
}

func TestSyncOne_VariationTarget(t *testing.T) {
	repo := newFakeRepo()
	client := newFakeClient()
	audit := &fakeAudit{}

	parent := repo.addProduct(&models.Product{ID: 1, AccountID: 1, ExternalID: 100, Name: "Shirt"})
	variation := repo.addVariation(&models.Variation{ID: 7, ProductID: 1, ExternalID: 101, Product: parent})
	fabric := repo.addProduct(&models.Product{ID: 2, AccountID: 1, ExternalID: 200, Name: "Fabric"})

	fabricID := fabric.ID
	repo.addBOM(&models.BillOfMaterials{
		ID:          1,
		AccountID:   1,
		ProductID:   parent.ID,
		VariationID: variation.ID,
		Product:     parent,
		Items: []models.BOMItem{
			{ID: 1, BOMID: 1, Quantity: 1, ChildProductID: &fabricID, ChildProduct: fabric},
		},
	})
	repo.composites[fabric.ID] = false

	client.setVariation(100, 101, f64(0))
	client.setProduct(200, f64(6))

	o := newTestOrchestrator(repo, client, audit, &fakeRunStore{})

	res := o.SyncOne(context.Background(), 1, 1, 7)
	if res.Status != StatusSynced {
		t.Fatalf("Expected synced, got %q (%s)", res.Status, res.Reason)
	}

	w := client.writeFor(101)
	if w == nil {
		t.Fatal("Expected a variation stock write")
	}
	if w.ParentExternalID != 100 || w.VariationExternalID != 101 {
		t.Errorf("Expected variation write shape 100/101, got %d/%d", w.ParentExternalID, w.VariationExternalID)
	}
	if w.Update.StockQuantity != 6 {
		t.Errorf("Expected pushed stock 6, got %v", w.Update.StockQuantity)
	}
	if got := repo.variationCache[7]; got != 6 {
		t.Errorf("Expected variation cache 6, got %v", got)
	}
}

func TestSyncOne_VariationWithoutOwnBOMUsesParentBOM(t *testing.T) {
	repo := newFakeRepo()
	client := newFakeClient()
	audit := &fakeAudit{}
	giftBoxFixture(repo, client, f64(2))

	// The variation carries no BOM of its own; the parent-level one applies
	variation := repo.addVariation(&models.Variation{ID: 7, ProductID: 1, ExternalID: 101})
	client.setVariation(100, 101, f64(2))

	o := newTestOrchestrator(repo, client, audit, &fakeRunStore{})

	res := o.SyncOne(context.Background(), 1, 1, variation.ID)
	if res.Status != StatusSynced {
		t.Fatalf("Expected synced, got %q (%s)", res.Status, res.Reason)
	}
	if res.NewStock != 4 {
		t.Errorf("Expected effective stock 4 from the parent BOM, got %d", res.NewStock)
	}

	w := client.writeFor(101)
	if w == nil {
		t.Fatal("Expected a variation stock write")
	}
	if w.ParentExternalID != 100 || w.VariationExternalID != 101 {
		t.Errorf("Expected variation write shape 100/101, got %d/%d", w.ParentExternalID, w.VariationExternalID)
	}
	if w.Update.StockQuantity != 4 {
		t.Errorf("Expected pushed stock 4, got %v", w.Update.StockQuantity)
	}
	if client.writeCount() != 1 {
		t.Errorf("Expected exactly one write, got %d", client.writeCount())
	}
	if got := repo.variationCache[7]; got != 4 {
		t.Errorf("Expected variation cache 4, got %v", got)
	}
}

func TestSyncAll_TalliesIndependentOutcomes(t *testing.T) {
	repo := newFakeRepo()
	client := newFakeClient()
	audit := &fakeAudit{}
	runs := &fakeRunStore{}

	// Composite A: out of sync, will push
	giftBoxFixture(repo, client, f64(2))

	// Composite B: already in sync (remote 5 == effective 5)
	b := repo.addProduct(&models.Product{ID: 10, AccountID: 1, ExternalID: 110, Name: "Set B"})
	bChild := repo.addProduct(&models.Product{ID: 11, AccountID: 1, ExternalID: 210, Name: "Part B"})
	bChildID := bChild.ID
	repo.addBOM(&models.BillOfMaterials{
		ID: 2, AccountID: 1, ProductID: b.ID, Product: b,
		Items: []models.BOMItem{{ID: 10, BOMID: 2, Quantity: 1, ChildProductID: &bChildID, ChildProduct: bChild}},
	})
	repo.composites[bChild.ID] = false
	client.setProduct(110, f64(5))
	client.setProduct(210, f64(5))

	// Composite C: write rejected by the platform
	c := repo.addProduct(&models.Product{ID: 20, AccountID: 1, ExternalID: 120, Name: "Set C"})
	cChild := repo.addProduct(&models.Product{ID: 21, AccountID: 1, ExternalID: 220, Name: "Part C"})
	cChildID := cChild.ID
	repo.addBOM(&models.BillOfMaterials{
		ID: 3, AccountID: 1, ProductID: c.ID, Product: c,
		Items: []models.BOMItem{{ID: 20, BOMID: 3, Quantity: 1, ChildProductID: &cChildID, ChildProduct: cChild}},
	})
	repo.composites[cChild.ID] = false
	client.setProduct(120, f64(0))
	client.setProduct(220, f64(3))
	client.writeErrs[120] = errors.New("platform 500")

	o := newTestOrchestrator(repo, client, audit, runs)

	var mu sync.Mutex
	progressed := 0
	o.SetProgress(func(runID string, _ SyncResult) {
		mu.Lock()
		progressed++
		mu.Unlock()
	})

	bulk, err := o.SyncAll(context.Background(), 1)
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	if bulk.Total != 3 {
		t.Errorf("Expected 3 composites enumerated, got %d", bulk.Total)
	}
	if bulk.Synced != 1 || bulk.Skipped != 1 || bulk.Failed != 1 {
		t.Errorf("Expected 1/1/1 synced/skipped/failed, got %d/%d/%d", bulk.Synced, bulk.Skipped, bulk.Failed)
	}
	if len(bulk.Results) != 3 {
		t.Errorf("Expected 3 per-product results, got %d", len(bulk.Results))
	}
	if progressed != 3 {
		t.Errorf("Expected 3 progress callbacks, got %d", progressed)
	}

	// The run record is finalized with the tallies
	if len(runs.completed) != 1 {
		t.Fatalf("Expected 1 completed run record, got %d", len(runs.completed))
	}
	run := runs.completed[0]
	if run.Status != models.SyncRunCompleted {
		t.Errorf("Expected run status completed, got %q", run.Status)
	}
	if run.Synced != 1 || run.Skipped != 1 || run.Failed != 1 {
		t.Errorf("Expected run tallies 1/1/1, got %d/%d/%d", run.Synced, run.Skipped, run.Failed)
	}
	if run.CompletedAt == nil {
		t.Error("Expected run completion timestamp")
	}
}

func TestSyncAll_CancelledContextStopsScheduling(t *testing.T) {
	repo := newFakeRepo()
	client := newFakeClient()
	runs := &fakeRunStore{}
	giftBoxFixture(repo, client, f64(2))

	o := newTestOrchestrator(repo, client, &fakeAudit{}, runs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bulk, err := o.SyncAll(ctx, 1)
	if err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}
	if len(bulk.Results) != 0 {
		t.Errorf("Expected no products scheduled after cancellation, got %d", len(bulk.Results))
	}

	// The aborted run is still recorded
	if len(runs.completed) != 1 {
		t.Fatalf("Expected the cancelled run to be recorded, got %d records", len(runs.completed))
	}
	if runs.completed[0].Status != models.SyncRunCancelled {
		t.Errorf("Expected run status cancelled, got %q", runs.completed[0].Status)
	}
}

func TestEffectiveStockLocal_UsesCacheOnly(t *testing.T) {
	repo := newFakeRepo()
	client := newFakeClient()

	parent := repo.addProduct(&models.Product{ID: 1, AccountID: 1, ExternalID: 100, Name: "Gift Box", CachedStock: f64(2)})
	candle := repo.addProduct(&models.Product{ID: 2, AccountID: 1, ExternalID: 200, Name: "Candle", CachedStock: f64(9)})
	candleID := candle.ID
	repo.addBOM(&models.BillOfMaterials{
		ID: 1, AccountID: 1, ProductID: parent.ID, Product: parent,
		Items: []models.BOMItem{{ID: 1, BOMID: 1, Quantity: 2, ChildProductID: &candleID, ChildProduct: candle}},
	})

	// No remote records at all: a local calculation must not notice
	o := newTestOrchestrator(repo, client, &fakeAudit{}, &fakeRunStore{})

	result, err := o.EffectiveStockLocal(context.Background(), 1, 1, 0)
	if err != nil {
		t.Fatalf("EffectiveStockLocal failed: %v", err)
	}
	if result.EffectiveStock != 4 {
		t.Errorf("Expected effective stock 4, got %d", result.EffectiveStock)
	}
	if result.Components[0].Source != SourceLocal {
		t.Errorf("Expected source %q, got %q", SourceLocal, result.Components[0].Source)
	}
	if !result.NeedsSync {
		t.Error("Cached composite stock 2 differs from 4, NeedsSync should be true")
	}
	if client.writeCount() != 0 {
		t.Errorf("Local path must not write, got %d writes", client.writeCount())
	}
}

func TestKeyLockSerializesSameKey(t *testing.T) {
	locks := newKeyLock()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(productKey(1, 100))
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("Expected 50 serialized increments, got %d", counter)
	}
}
