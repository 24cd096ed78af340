package inventory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jhoicas/invorya-core/internal/application/dto"
	"github.com/jhoicas/invorya-core/internal/application/idempotency"
	"github.com/jhoicas/invorya-core/internal/application/inventory"
	"github.com/jhoicas/invorya-core/internal/application/ledger"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/event"
	"github.com/jhoicas/invorya-core/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	tenant  = "t1"
	storeID = "s1"
	actor   = "user-1"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(_ context.Context, ev event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) updated() []event.InventoryUpdated {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.InventoryUpdated
	for _, ev := range r.events {
		if u, ok := ev.(event.InventoryUpdated); ok {
			out = append(out, u)
		}
	}
	return out
}

type fakeRenderer struct{ last dto.StockCountReport }

func (f *fakeRenderer) RenderStockCount(_ context.Context, r dto.StockCountReport) ([]byte, error) {
	f.last = r
	return []byte("%PDF-1.3 fake"), nil
}

type fixture struct {
	store     *memory.Store
	ledger    *ledger.Service
	pub       *recorder
	renderer  *fakeRenderer
	movements *inventory.MovementUseCase
	counts    *inventory.StockCountUseCase
	bundles   *inventory.BundleUseCase
}

func newFixture(t *testing.T, allowNegative bool) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.PutStore(entity.Store{ID: storeID, TenantID: tenant, Name: "Centro", AllowNegativeStock: allowNegative})
	store.PutStore(entity.Store{ID: "s2", TenantID: tenant, Name: "Norte", AllowNegativeStock: allowNegative})
	store.PutStore(entity.Store{ID: "ajena", TenantID: "otro-tenant", Name: "Ajena"})
	store.PutProduct(entity.Product{ID: "cafe", TenantID: tenant, SKU: "CAF-500", Barcode: "7700001", Name: "Café Molido 500g"})
	store.PutProduct(entity.Product{ID: "taza", TenantID: tenant, SKU: "TAZ-01", Barcode: "7700002", Name: "Taza Cerámica"})
	store.PutProduct(entity.Product{ID: "kit", TenantID: tenant, SKU: "KIT-01", Name: "Kit Desayuno", IsBundle: true})
	store.PutProduct(entity.Product{ID: "camisa", TenantID: tenant, SKU: "CAM", Name: "Camisa Lino"})
	store.PutVariant(entity.ProductVariant{ID: "camisa-m", ProductID: "camisa", SKU: "CAM-M", Barcode: "7700010", Name: "M"})
	store.PutProduct(entity.Product{ID: "te-verde", TenantID: tenant, SKU: "TE-V", Name: "Té Verde"})
	store.PutProduct(entity.Product{ID: "te-negro", TenantID: tenant, SKU: "TE-N", Name: "Té Negro"})

	l := ledger.NewService(store)
	idem := idempotency.NewEngine(nil)
	pub := &recorder{}
	renderer := &fakeRenderer{}
	return &fixture{
		store:     store,
		ledger:    l,
		pub:       pub,
		renderer:  renderer,
		movements: inventory.NewMovementUseCase(store, l, idem, pub),
		counts:    inventory.NewStockCountUseCase(store, l, idem, pub, renderer),
		bundles:   inventory.NewBundleUseCase(store, l, idem, pub),
	}
}

func (f *fixture) receive(t *testing.T, productID, variantID string, qty int64) {
	t.Helper()
	_, _, err := f.movements.RecordMovement(context.Background(), inventory.RecordMovementInput{
		TenantID:  tenant,
		StoreID:   storeID,
		ProductID: productID,
		VariantID: variantID,
		QtyDelta:  decimal.NewFromInt(qty),
		Type:      entity.MovementTypeReceive,
		ActorID:   actor,
		Caller:    actor,
	})
	require.NoError(t, err)
}

func (f *fixture) onHand(t *testing.T, productID, variantID string) decimal.Decimal {
	t.Helper()
	snap, err := f.ledger.GetSnapshot(context.Background(), entity.SnapshotKey{
		TenantID: tenant, StoreID: storeID, ProductID: productID, VariantKey: variantID,
	})
	require.NoError(t, err)
	return snap.OnHand
}

func (f *fixture) onHandAt(t *testing.T, store, productID string) decimal.Decimal {
	t.Helper()
	snap, err := f.ledger.GetSnapshot(context.Background(), entity.SnapshotKey{TenantID: tenant, StoreID: store, ProductID: productID})
	require.NoError(t, err)
	return snap.OnHand
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
