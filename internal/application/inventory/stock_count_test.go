package inventory_test

import (
	"context"
	"testing"

	"github.com/jhoicas/invorya-core/internal/application/inventory"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openCount(t *testing.T, f *fixture) *entity.StockCount {
	t.Helper()
	count, err := f.counts.Create(context.Background(), inventory.CreateStockCountInput{
		TenantID: tenant, StoreID: storeID, Notes: "Conteo mensual", ActorID: actor,
	})
	require.NoError(t, err)
	require.Equal(t, entity.StockCountOpen, count.Status)
	return count
}

func scan(t *testing.T, f *fixture, countID, code string, qty int64, mode string) *entity.StockCountLine {
	t.Helper()
	line, err := f.counts.ScanLine(context.Background(), inventory.ScanInput{
		TenantID: tenant, CountID: countID, Code: code, Quantity: dec(qty), Mode: mode,
	})
	require.NoError(t, err)
	return line
}

// ──────────────────────────────────────────────────────────────────────────────
// Apply
// ──────────────────────────────────────────────────────────────────────────────

func TestApply_GeneraUnAjustePorDiferenciaYRepiteSinDuplicar(t *testing.T) {
	f := newFixture(t, false)
	f.receive(t, "cafe", "", 5)
	count := openCount(t, f)
	scan(t, f, count.ID, "7700001", 7, entity.ScanModeSet)

	in := inventory.ApplyInput{TenantID: tenant, CountID: count.ID, IdempotencyKey: "apply-1", Caller: actor, ActorID: actor}
	res, replayed, err := f.counts.Apply(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, replayed)
	require.Len(t, res.Adjustments, 1)
	assert.True(t, res.Adjustments[0].Delta.Equal(dec(2)))
	assert.True(t, res.Adjustments[0].Previous.Equal(dec(5)))
	assert.True(t, f.onHand(t, "cafe", "").Equal(dec(7)))

	movs, err := f.ledger.ListMovementsByReference(context.Background(), tenant, entity.ReferenceStockCount, count.ID)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, entity.MovementTypeAdjustment, movs[0].Type)
	assert.True(t, movs[0].QtyDelta.Equal(dec(2)))

	// Reintento con la misma clave: misma respuesta, ningún movimiento nuevo.
	again, replayed, err := f.counts.Apply(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, res.CountID, again.CountID)
	require.Len(t, again.Adjustments, 1)
	assert.Equal(t, res.Adjustments[0].MovementID, again.Adjustments[0].MovementID)

	movs, err = f.ledger.ListMovementsByReference(context.Background(), tenant, entity.ReferenceStockCount, count.ID)
	require.NoError(t, err)
	assert.Len(t, movs, 1)
	assert.True(t, f.onHand(t, "cafe", "").Equal(dec(7)))

	stored, err := f.counts.Get(context.Background(), tenant, count.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StockCountApplied, stored.Status)
	assert.NotNil(t, stored.AppliedAt)
	assert.Equal(t, actor, stored.AppliedBy)

	// Solo el primer Apply publica.
	updates := f.pub.updated()
	require.Len(t, updates, 2) // recepción inicial + ajuste
	assert.Equal(t, "cafe", updates[1].ProductID)
}

func TestApply_OtraClaveSobreConteoAplicadoEsConflicto(t *testing.T) {
	f := newFixture(t, false)
	count := openCount(t, f)
	scan(t, f, count.ID, "CAF-500", 1, "")

	_, _, err := f.counts.Apply(context.Background(), inventory.ApplyInput{TenantID: tenant, CountID: count.ID, IdempotencyKey: "k1", Caller: actor})
	require.NoError(t, err)

	_, _, err = f.counts.Apply(context.Background(), inventory.ApplyInput{TenantID: tenant, CountID: count.ID, IdempotencyKey: "k2", Caller: actor})
	require.ErrorIs(t, err, domain.ErrStockCountApplied)
	assert.Equal(t, domain.KindConflict, domain.Kind(err))
}

func TestApply_DiferenciaSeCalculaAlAplicar(t *testing.T) {
	f := newFixture(t, true)
	f.receive(t, "cafe", "", 5)
	count := openCount(t, f)
	scan(t, f, count.ID, "7700001", 7, entity.ScanModeSet)

	// Una venta entre el escaneo y la aplicación queda absorbida por el ajuste.
	_, _, err := f.movements.RecordMovement(context.Background(), inventory.RecordMovementInput{
		TenantID: tenant, StoreID: storeID, ProductID: "cafe", QtyDelta: dec(-1), Type: entity.MovementTypeSale, ActorID: actor,
	})
	require.NoError(t, err)

	res, _, err := f.counts.Apply(context.Background(), inventory.ApplyInput{TenantID: tenant, CountID: count.ID, IdempotencyKey: "k", Caller: actor})
	require.NoError(t, err)
	require.Len(t, res.Adjustments, 1)
	assert.True(t, res.Adjustments[0].Delta.Equal(dec(3)))
	assert.True(t, f.onHand(t, "cafe", "").Equal(dec(7)))
}

func TestApply_LineasSinDiferenciaNoGeneranMovimiento(t *testing.T) {
	f := newFixture(t, false)
	f.receive(t, "cafe", "", 4)
	count := openCount(t, f)
	scan(t, f, count.ID, "7700001", 4, "")

	res, _, err := f.counts.Apply(context.Background(), inventory.ApplyInput{TenantID: tenant, CountID: count.ID, IdempotencyKey: "k", Caller: actor})
	require.NoError(t, err)
	assert.Empty(t, res.Adjustments)
	assert.Equal(t, entity.StockCountApplied, res.Status)
}

func TestApply_SinClaveEsBadRequest(t *testing.T) {
	f := newFixture(t, false)
	count := openCount(t, f)
	_, _, err := f.counts.Apply(context.Background(), inventory.ApplyInput{TenantID: tenant, CountID: count.ID, Caller: actor})
	assert.ErrorIs(t, err, domain.ErrInvalidIdempotencyKey)
}

// ──────────────────────────────────────────────────────────────────────────────
// ScanLine
// ──────────────────────────────────────────────────────────────────────────────

func TestScanLine_ModosSetYAdd(t *testing.T) {
	f := newFixture(t, false)
	count := openCount(t, f)

	first := scan(t, f, count.ID, "7700002", 3, entity.ScanModeSet)
	second := scan(t, f, count.ID, "TAZ-01", 2, entity.ScanModeAdd)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.CountedQty.Equal(dec(5)))

	third := scan(t, f, count.ID, "7700002", 1, entity.ScanModeSet)
	assert.True(t, third.CountedQty.Equal(dec(1)))

	_, err := f.counts.ScanLine(context.Background(), inventory.ScanInput{
		TenantID: tenant, CountID: count.ID, Code: "7700002", Quantity: dec(-2), Mode: entity.ScanModeAdd,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	stored, err := f.counts.Get(context.Background(), tenant, count.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assert.True(t, stored.Lines[0].CountedQty.Equal(dec(1)))
}

func TestScanLine_ResolucionDeCodigo(t *testing.T) {
	f := newFixture(t, false)
	count := openCount(t, f)

	variant := scan(t, f, count.ID, "7700010", 1, "")
	assert.Equal(t, "camisa", variant.ProductID)
	assert.Equal(t, "camisa-m", variant.VariantID)

	byName := scan(t, f, count.ID, "cafe molido", 2, "")
	assert.Equal(t, "cafe", byName.ProductID)

	_, err := f.counts.ScanLine(context.Background(), inventory.ScanInput{TenantID: tenant, CountID: count.ID, Code: "té", Quantity: dec(1)})
	assert.ErrorIs(t, err, domain.ErrAmbiguousScan)
	assert.Equal(t, domain.KindBadRequest, domain.Kind(err))

	_, err = f.counts.ScanLine(context.Background(), inventory.ScanInput{TenantID: tenant, CountID: count.ID, Code: "no-existe", Quantity: dec(1)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.counts.ScanLine(context.Background(), inventory.ScanInput{TenantID: tenant, CountID: count.ID, Code: "7700001", Quantity: dec(1), Mode: "replace"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestScanLine_ConteoAplicadoEsConflicto(t *testing.T) {
	f := newFixture(t, false)
	count := openCount(t, f)
	_, _, err := f.counts.Apply(context.Background(), inventory.ApplyInput{TenantID: tenant, CountID: count.ID, IdempotencyKey: "k", Caller: actor})
	require.NoError(t, err)

	_, err = f.counts.ScanLine(context.Background(), inventory.ScanInput{TenantID: tenant, CountID: count.ID, Code: "7700001", Quantity: dec(1)})
	assert.Equal(t, domain.KindConflict, domain.Kind(err))
}

func TestStockCount_OtroTenantNoVeLaSesion(t *testing.T) {
	f := newFixture(t, false)
	count := openCount(t, f)

	_, err := f.counts.Get(context.Background(), "otro-tenant", count.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.counts.Create(context.Background(), inventory.CreateStockCountInput{TenantID: tenant, StoreID: "ajena", ActorID: actor})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Report
// ──────────────────────────────────────────────────────────────────────────────

func TestReport_ContadoContraSistema(t *testing.T) {
	f := newFixture(t, false)
	f.receive(t, "cafe", "", 5)
	count := openCount(t, f)
	scan(t, f, count.ID, "7700001", 7, "")
	scan(t, f, count.ID, "7700002", 0, "")

	_, _, err := f.counts.Apply(context.Background(), inventory.ApplyInput{TenantID: tenant, CountID: count.ID, IdempotencyKey: "k", Caller: actor, ActorID: actor})
	require.NoError(t, err)

	pdf, err := f.counts.Report(context.Background(), tenant, count.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)

	report := f.renderer.last
	assert.Equal(t, "Centro", report.StoreName)
	assert.Equal(t, entity.StockCountApplied, report.Status)
	require.Len(t, report.Lines, 2)
	byName := map[string]int{}
	for i, l := range report.Lines {
		byName[l.SKU] = i
	}
	cafe := report.Lines[byName["CAF-500"]]
	assert.True(t, cafe.System.Equal(dec(5)))
	assert.True(t, cafe.Counted.Equal(dec(7)))
	assert.True(t, cafe.Adjustment.Equal(dec(2)))
	taza := report.Lines[byName["TAZ-01"]]
	assert.True(t, taza.Adjustment.IsZero())
	assert.True(t, taza.System.IsZero())
}
