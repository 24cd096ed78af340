package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
	"github.com/jhoicas/invorya-core/pkg/textnorm"
	"github.com/shopspring/decimal"
)

var (
	_ repository.StockMovementRepository = (*movementRepo)(nil)
	_ repository.SnapshotRepository      = (*snapshotRepo)(nil)
	_ repository.IdempotencyRepository   = (*idempotencyRepo)(nil)
	_ repository.StockCountRepository    = (*stockCountRepo)(nil)
	_ repository.BundleRepository        = (*bundleRepo)(nil)
	_ repository.ProductRepository       = (*productRepo)(nil)
	_ repository.StoreRepository         = (*storeRepo)(nil)
)

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ──────────────────────────────────────────────────────────────────────────────
// Ledger

type movementRepo struct{ st *state }

func (r *movementRepo) Create(_ context.Context, m *entity.StockMovement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	r.st.movements = append(r.st.movements, *m)
	return nil
}

func (r *movementRepo) ListByReference(_ context.Context, tenantID, referenceType, referenceID string) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	for i := range r.st.movements {
		m := r.st.movements[i]
		if m.TenantID == tenantID && m.ReferenceType == referenceType && m.ReferenceID == referenceID {
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r *movementRepo) ListByProduct(_ context.Context, tenantID, storeID, productID string, limit, offset int) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	for i := len(r.st.movements) - 1; i >= 0; i-- {
		m := r.st.movements[i]
		if m.TenantID == tenantID && m.StoreID == storeID && m.ProductID == productID {
			out = append(out, &m)
		}
	}
	return page(out, limit, offset), nil
}

type snapshotRepo struct{ st *state }

func (r *snapshotRepo) Get(_ context.Context, key entity.SnapshotKey) (*entity.InventorySnapshot, error) {
	if s, ok := r.st.snapshots[key]; ok {
		return &s, nil
	}
	return &entity.InventorySnapshot{
		TenantID: key.TenantID, StoreID: key.StoreID, ProductID: key.ProductID, VariantKey: key.VariantKey,
		OnHand: decimal.Zero, OnOrder: decimal.Zero,
	}, nil
}

func (r *snapshotRepo) upsert(key entity.SnapshotKey, now time.Time, mutate func(*entity.InventorySnapshot)) *entity.InventorySnapshot {
	s, ok := r.st.snapshots[key]
	if !ok {
		s = entity.InventorySnapshot{
			TenantID: key.TenantID, StoreID: key.StoreID, ProductID: key.ProductID, VariantKey: key.VariantKey,
			OnHand: decimal.Zero, OnOrder: decimal.Zero,
		}
	}
	mutate(&s)
	s.UpdatedAt = now
	r.st.snapshots[key] = s
	return &s
}

func (r *snapshotRepo) ApplyDelta(_ context.Context, key entity.SnapshotKey, delta decimal.Decimal, now time.Time) (*entity.InventorySnapshot, error) {
	return r.upsert(key, now, func(s *entity.InventorySnapshot) { s.OnHand = s.OnHand.Add(delta) }), nil
}

func (r *snapshotRepo) AdjustOnOrder(_ context.Context, key entity.SnapshotKey, delta decimal.Decimal, now time.Time) (*entity.InventorySnapshot, error) {
	return r.upsert(key, now, func(s *entity.InventorySnapshot) { s.OnOrder = s.OnOrder.Add(delta) }), nil
}

func (r *snapshotRepo) sorted() []entity.InventorySnapshot {
	out := make([]entity.InventorySnapshot, 0, len(r.st.snapshots))
	for _, s := range r.st.snapshots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.VariantKey < b.VariantKey
	})
	return out
}

func (r *snapshotRepo) ListByStore(_ context.Context, tenantID, storeID string, limit, offset int) ([]*entity.InventorySnapshot, error) {
	var out []*entity.InventorySnapshot
	for _, s := range r.sorted() {
		if s.TenantID == tenantID && s.StoreID == storeID {
			s := s
			out = append(out, &s)
		}
	}
	return page(out, limit, offset), nil
}

func (r *snapshotRepo) ListBelowMinStock(_ context.Context, limit int) ([]repository.LowStockItem, error) {
	var out []repository.LowStockItem
	for _, s := range r.sorted() {
		p, ok := r.st.products[s.ProductID]
		if !ok || !p.MinStock.IsPositive() {
			continue
		}
		if s.OnHand.LessThanOrEqual(p.MinStock) {
			out = append(out, repository.LowStockItem{Snapshot: s, MinStock: p.MinStock})
		}
	}
	return page(out, limit, 0), nil
}

func (r *snapshotRepo) ListDrift(_ context.Context, limit int) ([]repository.SnapshotDrift, error) {
	totals := make(map[entity.SnapshotKey]decimal.Decimal)
	for i := range r.st.movements {
		k := r.st.movements[i].Key()
		totals[k] = totals[k].Add(r.st.movements[i].QtyDelta)
	}
	var out []repository.SnapshotDrift
	for _, s := range r.sorted() {
		total := totals[s.Key()]
		if !s.OnHand.Equal(total) {
			out = append(out, repository.SnapshotDrift{Key: s.Key(), OnHand: s.OnHand, LedgerTotal: total})
		}
	}
	return page(out, limit, 0), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Idempotencia

type idempotencyRepo struct{ st *state }

func (r *idempotencyRepo) Get(_ context.Context, scope entity.IdempotencyScope) (*entity.IdempotencyKey, error) {
	if rec, ok := r.st.idempotency[scope]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (r *idempotencyRepo) Reserve(_ context.Context, rec *entity.IdempotencyKey) (bool, error) {
	scope := entity.IdempotencyScope{Key: rec.Key, Route: rec.Route, Caller: rec.Caller}
	if _, ok := r.st.idempotency[scope]; ok {
		return false, nil
	}
	r.st.idempotency[scope] = *rec
	return true, nil
}

func (r *idempotencyRepo) Complete(_ context.Context, id string, response []byte, responseHash string, at time.Time) error {
	for scope, rec := range r.st.idempotency {
		if rec.ID == id {
			rec.Status = entity.IdempotencyCompleted
			rec.Response = append([]byte(nil), response...)
			rec.ResponseHash = responseHash
			rec.CompletedAt = &at
			r.st.idempotency[scope] = rec
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *idempotencyRepo) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for scope, rec := range r.st.idempotency {
		if rec.CreatedAt.Before(before) {
			delete(r.st.idempotency, scope)
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Conteos

type stockCountRepo struct{ st *state }

func (r *stockCountRepo) Create(_ context.Context, c *entity.StockCount) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	stored := *c
	stored.Lines = nil
	r.st.counts[c.ID] = stored
	return nil
}

func (r *stockCountRepo) GetByID(_ context.Context, tenantID, id string) (*entity.StockCount, error) {
	c, ok := r.st.counts[id]
	if !ok || c.TenantID != tenantID {
		return nil, nil
	}
	c.Lines = append([]entity.StockCountLine(nil), r.st.lines[id]...)
	return &c, nil
}

// GetForUpdate no necesita bloqueo: la unidad ya tiene el mutex global.
func (r *stockCountRepo) GetForUpdate(ctx context.Context, tenantID, id string) (*entity.StockCount, error) {
	return r.GetByID(ctx, tenantID, id)
}

func (r *stockCountRepo) GetLine(_ context.Context, countID, productID, variantID string) (*entity.StockCountLine, error) {
	for _, l := range r.st.lines[countID] {
		if l.ProductID == productID && l.VariantID == variantID {
			return &l, nil
		}
	}
	return nil, nil
}

func (r *stockCountRepo) UpsertLine(_ context.Context, line *entity.StockCountLine) error {
	lines := r.st.lines[line.StockCountID]
	for i, l := range lines {
		if l.ProductID == line.ProductID && l.VariantID == line.VariantID {
			line.ID = l.ID
			lines[i] = *line
			return nil
		}
	}
	if line.ID == "" {
		line.ID = uuid.New().String()
	}
	r.st.lines[line.StockCountID] = append(lines, *line)
	return nil
}

func (r *stockCountRepo) MarkApplied(_ context.Context, id, appliedBy string, at time.Time) error {
	c, ok := r.st.counts[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = entity.StockCountApplied
	c.AppliedBy = appliedBy
	c.AppliedAt = &at
	r.st.counts[id] = c
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Kits

type bundleRepo struct{ st *state }

func (r *bundleRepo) ListComponents(_ context.Context, tenantID, bundleProductID string) ([]*entity.BundleComponent, error) {
	var out []*entity.BundleComponent
	for _, c := range r.st.bundles {
		if c.TenantID == tenantID && c.BundleProductID == bundleProductID {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ComponentProductID != out[j].ComponentProductID {
			return out[i].ComponentProductID < out[j].ComponentProductID
		}
		return out[i].ComponentVariantID < out[j].ComponentVariantID
	})
	return out, nil
}

func (r *bundleRepo) AddComponent(_ context.Context, c *entity.BundleComponent) error {
	for _, existing := range r.st.bundles {
		if existing.TenantID == c.TenantID && existing.BundleProductID == c.BundleProductID &&
			existing.ComponentProductID == c.ComponentProductID && existing.ComponentVariantID == c.ComponentVariantID {
			return domain.ErrDuplicate
		}
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	r.st.bundles[c.ID] = *c
	return nil
}

func (r *bundleRepo) RemoveComponent(_ context.Context, tenantID, id string) (bool, error) {
	c, ok := r.st.bundles[id]
	if !ok || c.TenantID != tenantID {
		return false, nil
	}
	delete(r.st.bundles, id)
	return true, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Catálogo

type productRepo struct{ st *state }

func (r *productRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Product, error) {
	p, ok := r.st.products[id]
	if !ok || p.TenantID != tenantID {
		return nil, nil
	}
	return &p, nil
}

func (r *productRepo) GetVariant(_ context.Context, productID, variantID string) (*entity.ProductVariant, error) {
	v, ok := r.st.variants[variantID]
	if !ok || v.ProductID != productID {
		return nil, nil
	}
	return &v, nil
}

// FindByCode sigue el orden: barcode de variante, barcode de producto, SKU de variante, SKU de producto.
func (r *productRepo) FindByCode(_ context.Context, tenantID, code string) (*entity.Product, *entity.ProductVariant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, nil
	}
	match := func(field func(entity.ProductVariant) string, pfield func(entity.Product) string) (*entity.Product, *entity.ProductVariant) {
		for _, id := range sortedKeys(r.st.variants) {
			v := r.st.variants[id]
			p, ok := r.st.products[v.ProductID]
			if ok && p.TenantID == tenantID && field(v) != "" && field(v) == code {
				return &p, &v
			}
		}
		for _, id := range sortedKeys(r.st.products) {
			p := r.st.products[id]
			if p.TenantID == tenantID && pfield(p) != "" && pfield(p) == code {
				return &p, nil
			}
		}
		return nil, nil
	}
	if p, v := match(func(v entity.ProductVariant) string { return v.Barcode }, func(p entity.Product) string { return p.Barcode }); p != nil {
		return p, v, nil
	}
	p, v := match(func(v entity.ProductVariant) string { return v.SKU }, func(p entity.Product) string { return p.SKU })
	return p, v, nil
}

func (r *productRepo) SearchByName(_ context.Context, tenantID, normalized string, limit int) ([]*entity.Product, error) {
	var out []*entity.Product
	for _, id := range sortedKeys(r.st.products) {
		p := r.st.products[id]
		if p.TenantID == tenantID && strings.Contains(textnorm.Fold(p.Name), normalized) {
			out = append(out, &p)
		}
	}
	return page(out, limit, 0), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type storeRepo struct{ st *state }

func (r *storeRepo) GetByID(_ context.Context, tenantID, id string) (*entity.Store, error) {
	s, ok := r.st.stores[id]
	if !ok || s.TenantID != tenantID {
		return nil, nil
	}
	return &s, nil
}
