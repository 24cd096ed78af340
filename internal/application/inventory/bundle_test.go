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

func addComponent(t *testing.T, f *fixture, productID, variantID string, qty int64) *entity.BundleComponent {
	t.Helper()
	c, err := f.bundles.AddComponent(context.Background(), inventory.AddComponentInput{
		TenantID: tenant, BundleProductID: "kit", ComponentProductID: productID, ComponentVariantID: variantID, Quantity: dec(qty),
	})
	require.NoError(t, err)
	return c
}

// ──────────────────────────────────────────────────────────────────────────────
// Assemble
// ──────────────────────────────────────────────────────────────────────────────

func TestAssemble_DescuentaComponentesYAcreditaKit(t *testing.T) {
	f := newFixture(t, false)
	f.receive(t, "cafe", "", 5)
	addComponent(t, f, "cafe", "", 1)

	in := inventory.AssembleInput{
		TenantID: tenant, StoreID: storeID, BundleProductID: "kit", Quantity: dec(2),
		IdempotencyKey: "asm-1", Caller: actor, ActorID: actor,
	}
	res, replayed, err := f.bundles.Assemble(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.True(t, f.onHand(t, "cafe", "").Equal(dec(3)))
	assert.True(t, f.onHand(t, "kit", "").Equal(dec(2)))

	movs, err := f.ledger.ListMovementsByReference(context.Background(), tenant, entity.ReferenceBundleAssembly, res.AssemblyID)
	require.NoError(t, err)
	require.Len(t, movs, 2)
	byProduct := map[string]*entity.StockMovement{}
	for _, m := range movs {
		byProduct[m.ProductID] = m
	}
	assert.True(t, byProduct["cafe"].QtyDelta.Equal(dec(-2)))
	assert.Equal(t, entity.MovementTypeAdjustment, byProduct["cafe"].Type)
	assert.True(t, byProduct["kit"].QtyDelta.Equal(dec(2)))
	assert.Equal(t, entity.MovementTypeReceive, byProduct["kit"].Type)

	// Reintento: misma respuesta, existencias intactas y sin eventos nuevos.
	published := len(f.pub.updated())
	again, replayed, err := f.bundles.Assemble(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, res.AssemblyID, again.AssemblyID)
	assert.True(t, f.onHand(t, "cafe", "").Equal(dec(3)))
	assert.True(t, f.onHand(t, "kit", "").Equal(dec(2)))
	assert.Len(t, f.pub.updated(), published)
	assert.Len(t, f.store.Movements(), 3)
}

func TestAssemble_StockInsuficienteNoRegistraNada(t *testing.T) {
	f := newFixture(t, false)
	f.receive(t, "cafe", "", 5)
	f.receive(t, "taza", "", 1)
	addComponent(t, f, "cafe", "", 1)
	addComponent(t, f, "taza", "", 1)

	_, _, err := f.bundles.Assemble(context.Background(), inventory.AssembleInput{
		TenantID: tenant, StoreID: storeID, BundleProductID: "kit", Quantity: dec(2), IdempotencyKey: "asm", Caller: actor,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, domain.KindConflict, domain.Kind(err))

	assert.True(t, f.onHand(t, "cafe", "").Equal(dec(5)))
	assert.True(t, f.onHand(t, "taza", "").Equal(dec(1)))
	assert.True(t, f.onHand(t, "kit", "").IsZero())
	assert.Len(t, f.store.Movements(), 2)
	assert.Zero(t, f.store.IdempotencyRecords())
}

func TestAssemble_MismaClaveEnOtraTiendaNoEsReplay(t *testing.T) {
	f := newFixture(t, false)
	f.receive(t, "cafe", "", 5)
	_, _, err := f.movements.RecordMovement(context.Background(), inventory.RecordMovementInput{
		TenantID: tenant, StoreID: "s2", ProductID: "cafe", QtyDelta: dec(5), Type: entity.MovementTypeReceive, ActorID: actor,
	})
	require.NoError(t, err)
	addComponent(t, f, "cafe", "", 1)

	in := inventory.AssembleInput{
		TenantID: tenant, StoreID: storeID, BundleProductID: "kit", Quantity: dec(1),
		IdempotencyKey: "asm-tiendas", Caller: actor, ActorID: actor,
	}
	first, _, err := f.bundles.Assemble(context.Background(), in)
	require.NoError(t, err)

	in.StoreID = "s2"
	second, replayed, err := f.bundles.Assemble(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotEqual(t, first.AssemblyID, second.AssemblyID)
	assert.Equal(t, "s2", second.StoreID)
	assert.True(t, f.onHandAt(t, "s2", "cafe").Equal(dec(4)))
	assert.True(t, f.onHand(t, "cafe", "").Equal(dec(4)))
}

func TestAssemble_TiendaConNegativosPermitidos(t *testing.T) {
	f := newFixture(t, true)
	addComponent(t, f, "camisa", "camisa-m", 2)

	_, _, err := f.bundles.Assemble(context.Background(), inventory.AssembleInput{
		TenantID: tenant, StoreID: storeID, BundleProductID: "kit", Quantity: dec(1), IdempotencyKey: "asm", Caller: actor,
	})
	require.NoError(t, err)
	assert.True(t, f.onHand(t, "camisa", "camisa-m").Equal(dec(-2)))
	assert.True(t, f.onHand(t, "kit", "").Equal(dec(1)))
}

func TestAssemble_Validaciones(t *testing.T) {
	f := newFixture(t, false)

	_, _, err := f.bundles.Assemble(context.Background(), inventory.AssembleInput{
		TenantID: tenant, StoreID: storeID, BundleProductID: "kit", Quantity: dec(1), IdempotencyKey: "asm", Caller: actor,
	})
	assert.ErrorIs(t, err, domain.ErrBundleEmpty)

	_, _, err = f.bundles.Assemble(context.Background(), inventory.AssembleInput{
		TenantID: tenant, StoreID: storeID, BundleProductID: "kit", Quantity: dec(0), IdempotencyKey: "asm", Caller: actor,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, _, err = f.bundles.Assemble(context.Background(), inventory.AssembleInput{
		TenantID: tenant, StoreID: storeID, BundleProductID: "kit", Quantity: dec(1), Caller: actor,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidIdempotencyKey)

	_, _, err = f.bundles.Assemble(context.Background(), inventory.AssembleInput{
		TenantID: tenant, StoreID: "ajena", BundleProductID: "kit", Quantity: dec(1), IdempotencyKey: "asm", Caller: actor,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Receta
// ──────────────────────────────────────────────────────────────────────────────

func TestAddComponent_Validaciones(t *testing.T) {
	f := newFixture(t, false)

	_, err := f.bundles.AddComponent(context.Background(), inventory.AddComponentInput{
		TenantID: tenant, BundleProductID: "kit", ComponentProductID: "kit", Quantity: dec(1),
	})
	assert.ErrorIs(t, err, domain.ErrBundleSelfReference)
	assert.Equal(t, domain.KindBadRequest, domain.Kind(err))

	_, err = f.bundles.AddComponent(context.Background(), inventory.AddComponentInput{
		TenantID: tenant, BundleProductID: "kit", ComponentProductID: "cafe", Quantity: dec(-1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.bundles.AddComponent(context.Background(), inventory.AddComponentInput{
		TenantID: tenant, BundleProductID: "kit", ComponentProductID: "camisa", ComponentVariantID: "no-existe", Quantity: dec(1),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	addComponent(t, f, "cafe", "", 1)
	_, err = f.bundles.AddComponent(context.Background(), inventory.AddComponentInput{
		TenantID: tenant, BundleProductID: "kit", ComponentProductID: "cafe", Quantity: dec(3),
	})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestRemoveComponent(t *testing.T) {
	f := newFixture(t, false)
	c := addComponent(t, f, "cafe", "", 1)
	addComponent(t, f, "taza", "", 2)

	require.NoError(t, f.bundles.RemoveComponent(context.Background(), tenant, c.ID))
	list, err := f.bundles.ListComponents(context.Background(), tenant, "kit")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "taza", list[0].ComponentProductID)

	err = f.bundles.RemoveComponent(context.Background(), tenant, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
