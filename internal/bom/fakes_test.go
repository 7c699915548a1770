package bom

import (
	"context"
	"fmt"
	"sync"

	"github.com/stocklink/bomsync/internal/models"
)

func f64(v float64) *float64 {
	return &v
}

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	mu             sync.Mutex
	boms           map[string]*models.BillOfMaterials
	products       map[uint]*models.Product
	variations     map[uint]*models.Variation
	composites     map[uint]bool
	productCache   map[uint]float64
	variationCache map[uint]float64
	listOrder      []*models.BillOfMaterials
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		boms:           make(map[string]*models.BillOfMaterials),
		products:       make(map[uint]*models.Product),
		variations:     make(map[uint]*models.Variation),
		composites:     make(map[uint]bool),
		productCache:   make(map[uint]float64),
		variationCache: make(map[uint]float64),
	}
}

func bomKey(accountID, productID, variationID uint) string {
	return fmt.Sprintf("%d:%d:%d", accountID, productID, variationID)
}

func (r *fakeRepo) addProduct(p *models.Product) *models.Product {
	r.products[p.ID] = p
	return p
}

func (r *fakeRepo) addVariation(v *models.Variation) *models.Variation {
	r.variations[v.ID] = v
	return v
}

func (r *fakeRepo) addBOM(b *models.BillOfMaterials) *models.BillOfMaterials {
	r.boms[bomKey(b.AccountID, b.ProductID, b.VariationID)] = b
	r.composites[b.ProductID] = true
	r.listOrder = append(r.listOrder, b)
	return b
}

func (r *fakeRepo) GetBOM(_ context.Context, accountID, productID, variationID uint) (*models.BillOfMaterials, error) {
	return r.boms[bomKey(accountID, productID, variationID)], nil
}

func (r *fakeRepo) ResolveBOM(ctx context.Context, accountID, productID, variationID uint) (*models.BillOfMaterials, error) {
	return resolveBOM(ctx, r, accountID, productID, variationID)
}

func (r *fakeRepo) ListComposites(_ context.Context, accountID uint) ([]*models.BillOfMaterials, error) {
	var out []*models.BillOfMaterials
	for _, b := range r.listOrder {
		if b.AccountID == accountID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeRepo) HasBOM(_ context.Context, _ uint, productID uint) (bool, error) {
	return r.composites[productID], nil
}

func (r *fakeRepo) GetProduct(_ context.Context, accountID, productID uint) (*models.Product, error) {
	p, ok := r.products[productID]
	if !ok || p.AccountID != accountID {
		return nil, nil
	}
	return p, nil
}

func (r *fakeRepo) GetVariation(_ context.Context, variationID uint) (*models.Variation, error) {
	return r.variations[variationID], nil
}

func (r *fakeRepo) FindProductByExternalID(_ context.Context, accountID uint, externalID int64) (*models.Product, error) {
	for _, p := range r.products {
		if p.AccountID == accountID && p.ExternalID == externalID {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) FindVariationByExternalID(_ context.Context, productID uint, externalID int64) (*models.Variation, error) {
	for _, v := range r.variations {
		if v.ProductID == productID && v.ExternalID == externalID {
			return v, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) UpdateProductStockCache(_ context.Context, productID uint, qty float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.productCache[productID] = qty
	return nil
}

func (r *fakeRepo) UpdateVariationStockCache(_ context.Context, variationID uint, qty float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variationCache[variationID] = qty
	return nil
}

type stockWrite struct {
	ParentExternalID    int64
	VariationExternalID int64
	Update              StockUpdate
}

// fakeClient is an in-memory RemoteClient. Writes mutate the remote state so
// a second sync pass observes the pushed value.
type fakeClient struct {
	mu         sync.Mutex
	products   map[int64]*RemoteProduct
	variations map[string]*RemoteVariation

	readErrs  map[int64]error
	writeErrs map[int64]error

	writes []stockWrite
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		products:   make(map[int64]*RemoteProduct),
		variations: make(map[string]*RemoteVariation),
		readErrs:   make(map[int64]error),
		writeErrs:  make(map[int64]error),
	}
}

func variationMapKey(parentExternalID, variationExternalID int64) string {
	return fmt.Sprintf("%d:%d", parentExternalID, variationExternalID)
}

func (c *fakeClient) setProduct(externalID int64, stock *float64) {
	c.products[externalID] = &RemoteProduct{
		Name:          fmt.Sprintf("product %d", externalID),
		StockQuantity: stock,
		StockManaged:  stock != nil,
	}
}

func (c *fakeClient) setVariation(parentExternalID, variationExternalID int64, stock *float64) {
	c.variations[variationMapKey(parentExternalID, variationExternalID)] = &RemoteVariation{
		StockQuantity: stock,
		StockManaged:  stock != nil,
	}
}

func (c *fakeClient) GetProduct(_ context.Context, externalID int64) (*RemoteProduct, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readErrs[externalID]; err != nil {
		return nil, err
	}
	p, ok := c.products[externalID]
	if !ok {
		return nil, fmt.Errorf("product %d not found at platform", externalID)
	}
	cp := *p
	return &cp, nil
}

func (c *fakeClient) GetVariation(_ context.Context, parentExternalID, variationExternalID int64) (*RemoteVariation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.readErrs[variationExternalID]; err != nil {
		return nil, err
	}
	v, ok := c.variations[variationMapKey(parentExternalID, variationExternalID)]
	if !ok {
		return nil, fmt.Errorf("variation %d not found at platform", variationExternalID)
	}
	cv := *v
	return &cv, nil
}

func (c *fakeClient) UpdateProductStock(_ context.Context, externalID int64, upd StockUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writeErrs[externalID]; err != nil {
		return err
	}
	c.writes = append(c.writes, stockWrite{ParentExternalID: externalID, Update: upd})
	if p, ok := c.products[externalID]; ok {
		q := upd.StockQuantity
		p.StockQuantity = &q
	}
	return nil
}

func (c *fakeClient) UpdateVariationStock(_ context.Context, parentExternalID, variationExternalID int64, upd StockUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.writeErrs[variationExternalID]; err != nil {
		return err
	}
	c.writes = append(c.writes, stockWrite{
		ParentExternalID:    parentExternalID,
		VariationExternalID: variationExternalID,
		Update:              upd,
	})
	if v, ok := c.variations[variationMapKey(parentExternalID, variationExternalID)]; ok {
		q := upd.StockQuantity
		v.StockQuantity = &q
	}
	return nil
}

func (c *fakeClient) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeClient) writeFor(externalID int64) *stockWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.writes {
		w := c.writes[i]
		if w.ParentExternalID == externalID || w.VariationExternalID == externalID {
			return &w
		}
	}
	return nil
}

// fakeProvider hands out one client for every account.
type fakeProvider struct {
	client RemoteClient
	err    error
}

func (p *fakeProvider) ClientFor(_ context.Context, _ uint) (RemoteClient, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.client, nil
}

// fakeAudit records audit entries.
type fakeAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (a *fakeAudit) LogStockChange(_ context.Context, entry AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entry)
	return nil
}

func (a *fakeAudit) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

func (a *fakeAudit) entryFor(productID uint) *AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.entries {
		if a.entries[i].ProductID == productID {
			return &a.entries[i]
		}
	}
	return nil
}

// fakeRunStore records bulk runs in memory.
type fakeRunStore struct {
	mu        sync.Mutex
	created   []*models.SyncRun
	completed []*models.SyncRun
}

func (s *fakeRunStore) CreateRun(_ context.Context, run *models.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.created = append(s.created, &cp)
	return nil
}

func (s *fakeRunStore) CompleteRun(_ context.Context, run *models.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	s.completed = append(s.completed, &cp)
	return nil
}

func (s *fakeRunStore) GetRun(_ context.Context, accountID uint, runID string) (*models.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, run := range s.completed {
		if run.AccountID == accountID && run.ID == runID {
			return run, nil
		}
	}
	return nil, nil
}

func (s *fakeRunStore) ListRuns(_ context.Context, accountID uint, _ int) ([]models.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SyncRun
	for _, run := range s.completed {
		if run.AccountID == accountID {
			out = append(out, *run)
		}
	}
	return out, nil
}
