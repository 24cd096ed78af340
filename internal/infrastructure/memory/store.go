// Package memory implementa los repositorios en memoria (tests y DB_DRIVER=memory).
//
// Cada unidad de trabajo toma el mutex global, trabaja sobre una copia del estado y
// la publica solo si fn termina sin error; un error descarta la copia completa.
// La copia incluye todos los movimientos, así que cada unidad cuesta O(tamaño del
// ledger): sirve para tests y desarrollo, no para volúmenes reales.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
)

var _ repository.TxRunner = (*Store)(nil)

type state struct {
	movements   []entity.StockMovement
	snapshots   map[entity.SnapshotKey]entity.InventorySnapshot
	idempotency map[entity.IdempotencyScope]entity.IdempotencyKey
	counts      map[string]entity.StockCount
	lines       map[string][]entity.StockCountLine // por StockCountID
	bundles     map[string]entity.BundleComponent
	products    map[string]entity.Product
	variants    map[string]entity.ProductVariant
	stores      map[string]entity.Store
}

func newState() *state {
	return &state{
		snapshots:   make(map[entity.SnapshotKey]entity.InventorySnapshot),
		idempotency: make(map[entity.IdempotencyScope]entity.IdempotencyKey),
		counts:      make(map[string]entity.StockCount),
		lines:       make(map[string][]entity.StockCountLine),
		bundles:     make(map[string]entity.BundleComponent),
		products:    make(map[string]entity.Product),
		variants:    make(map[string]entity.ProductVariant),
		stores:      make(map[string]entity.Store),
	}
}

func (s *state) clone() *state {
	c := newState()
	c.movements = append(c.movements, s.movements...)
	for k, v := range s.snapshots {
		c.snapshots[k] = v
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	for k, v := range s.counts {
		c.counts[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = append([]entity.StockCountLine(nil), v...)
	}
	for k, v := range s.bundles {
		c.bundles[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.variants {
		c.variants[k] = v
	}
	for k, v := range s.stores {
		c.stores[k] = v
	}
	return c
}

// Store es la base de datos en memoria.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore crea un almacenamiento vacío.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Run ejecuta fn como una unidad atómica serializada.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, reposFor(work)); err != nil {
		return err
	}
	s.st = work
	return nil
}

func reposFor(st *state) repository.Repositories {
	return repository.Repositories{
		Movements:   &movementRepo{st: st},
		Snapshots:   &snapshotRepo{st: st},
		Idempotency: &idempotencyRepo{st: st},
		StockCounts: &stockCountRepo{st: st},
		Bundles:     &bundleRepo{st: st},
		Products:    &productRepo{st: st},
		Stores:      &storeRepo{st: st},
	}
}

// PutStore registra o reemplaza una tienda (seed de tests y desarrollo).
func (s *Store) PutStore(store entity.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.stores[store.ID] = store
}

// PutProduct registra o reemplaza un producto.
func (s *Store) PutProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

// PutVariant registra o reemplaza una variante.
func (s *Store) PutVariant(v entity.ProductVariant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.variants[v.ID] = v
}

// Movements copia del ledger completo en orden de inserción.
func (s *Store) Movements() []entity.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.StockMovement(nil), s.st.movements...)
}

// IdempotencyRecords cantidad de registros de idempotencia persistidos.
func (s *Store) IdempotencyRecords() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.idempotency)
}
