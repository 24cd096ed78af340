package idempotency_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jhoicas/invorya-core/internal/application/idempotency"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
	"github.com/jhoicas/invorya-core/internal/infrastructure/memory"
	"github.com/jhoicas/invorya-core/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	ID    string `json:"id"`
	Total int    `json:"total"`
}

func runDo(t *testing.T, store *memory.Store, engine *idempotency.Engine, scope entity.IdempotencyScope, handler func(context.Context) (result, error)) (result, bool, error) {
	t.Helper()
	var (
		out      result
		replayed bool
	)
	err := store.Run(context.Background(), func(ctx context.Context, repos repository.Repositories) error {
		var err error
		out, replayed, err = idempotency.Do(ctx, engine, repos.Idempotency, scope, handler)
		return err
	})
	return out, replayed, err
}

// ──────────────────────────────────────────────────────────────────────────────
// Ejecución única y replay
// ──────────────────────────────────────────────────────────────────────────────

func TestDo_EjecutaUnaVezYRepiteRespuesta(t *testing.T) {
	store := memory.NewStore()
	m := metrics.New("test")
	engine := idempotency.NewEngine(m)
	scope := entity.IdempotencyScope{Key: "abc-123", Route: "POST /stock-counts/:id/apply", Caller: "user-1"}

	var calls int32
	handler := func(context.Context) (result, error) {
		n := atomic.AddInt32(&calls, 1)
		return result{ID: "r1", Total: int(n) * 10}, nil
	}

	first, replayed, err := runDo(t, store, engine, scope, handler)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, result{ID: "r1", Total: 10}, first)

	second, replayed, err := runDo(t, store, engine, scope, handler)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdempotencyMisses.WithLabelValues(scope.Route)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdempotencyHits.WithLabelValues(scope.Route)))
}

func TestDo_ConcurrenteEjecutaHandlerUnaSolaVez(t *testing.T) {
	store := memory.NewStore()
	scope := entity.IdempotencyScope{Key: "same-key", Route: "POST /bundles/assemble", Caller: "user-1"}

	var calls int32
	handler := func(context.Context) (result, error) {
		atomic.AddInt32(&calls, 1)
		return result{ID: "unico"}, nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]result, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = runDo(t, store, nil, scope, handler)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "unico", results[i].ID)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, store.IdempotencyRecords())
}

func TestDo_ScopeDistintoEjecutaDeNuevo(t *testing.T) {
	store := memory.NewStore()
	var calls int32
	handler := func(context.Context) (result, error) {
		atomic.AddInt32(&calls, 1)
		return result{}, nil
	}

	base := entity.IdempotencyScope{Key: "k1", Route: "POST /movements", Caller: "user-1"}
	otherCaller := base
	otherCaller.Caller = "user-2"
	otherRoute := base
	otherRoute.Route = "POST /bundles/assemble"

	for _, scope := range []entity.IdempotencyScope{base, otherCaller, otherRoute} {
		_, replayed, err := runDo(t, store, nil, scope, handler)
		require.NoError(t, err)
		assert.False(t, replayed)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDo_FalloDelHandlerNoDejaRegistro(t *testing.T) {
	store := memory.NewStore()
	scope := entity.IdempotencyScope{Key: "k-fail", Route: "POST /movements", Caller: "user-1"}
	boom := errors.New("boom")

	_, _, err := runDo(t, store, nil, scope, func(context.Context) (result, error) {
		return result{}, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.IdempotencyRecords())

	// Un reintento con la misma clave vuelve a ejecutar el handler.
	out, replayed, err := runDo(t, store, nil, scope, func(context.Context) (result, error) {
		return result{ID: "ok"}, nil
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, "ok", out.ID)
}

func TestDo_ClaveInvalida(t *testing.T) {
	store := memory.NewStore()
	keys := []string{"", "   ", "con espacio", "tilde-á", strings.Repeat("a", idempotency.MaxKeyLength+1)}
	for _, key := range keys {
		scope := entity.IdempotencyScope{Key: key, Route: "POST /movements", Caller: "user-1"}
		_, _, err := runDo(t, store, nil, scope, func(context.Context) (result, error) {
			t.Fatalf("el handler no debe ejecutarse con clave %q", key)
			return result{}, nil
		})
		assert.ErrorIs(t, err, domain.ErrInvalidIdempotencyKey, "clave %q", key)
		assert.Equal(t, domain.KindBadRequest, domain.Kind(err))
	}
}

func TestNormalizeKey_RecortaEspacios(t *testing.T) {
	key, err := idempotency.NormalizeKey("  abc_DEF-09 ")
	require.NoError(t, err)
	assert.Equal(t, "abc_DEF-09", key)

	_, err = idempotency.NormalizeKey(strings.Repeat("x", idempotency.MaxKeyLength))
	assert.NoError(t, err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Intento en curso y carrera perdida
// ──────────────────────────────────────────────────────────────────────────────

type scriptedRepo struct {
	gets     []*entity.IdempotencyKey
	reserve  bool
	getCalls int
}

func (r *scriptedRepo) Get(context.Context, entity.IdempotencyScope) (*entity.IdempotencyKey, error) {
	var rec *entity.IdempotencyKey
	if r.getCalls < len(r.gets) {
		rec = r.gets[r.getCalls]
	}
	r.getCalls++
	return rec, nil
}

func (r *scriptedRepo) Reserve(context.Context, *entity.IdempotencyKey) (bool, error) {
	return r.reserve, nil
}

func (r *scriptedRepo) Complete(context.Context, string, []byte, string, time.Time) error {
	return nil
}

func (r *scriptedRepo) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func TestDo_RegistroPendienteDevuelveRequestInProgress(t *testing.T) {
	m := metrics.New("test")
	repo := &scriptedRepo{gets: []*entity.IdempotencyKey{{ID: "1", Status: entity.IdempotencyPending}}}
	scope := entity.IdempotencyScope{Key: "k", Route: "POST /movements", Caller: "u"}

	_, _, err := idempotency.Do(context.Background(), idempotency.NewEngine(m), repo, scope, func(context.Context) (result, error) {
		t.Fatal("el handler no debe ejecutarse")
		return result{}, nil
	})
	require.ErrorIs(t, err, domain.ErrRequestInProgress)
	assert.Equal(t, domain.KindConflict, domain.Kind(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdempotencyInProgress.WithLabelValues(scope.Route)))
}

func TestDo_CarreraPerdidaRepiteRespuestaDelGanador(t *testing.T) {
	completed := &entity.IdempotencyKey{
		ID:       "1",
		Status:   entity.IdempotencyCompleted,
		Response: []byte(`{"id":"ganador","total":7}`),
	}
	repo := &scriptedRepo{gets: []*entity.IdempotencyKey{nil, completed}, reserve: false}
	scope := entity.IdempotencyScope{Key: "k", Route: "POST /movements", Caller: "u"}

	out, replayed, err := idempotency.Do(context.Background(), nil, repo, scope, func(context.Context) (result, error) {
		t.Fatal("el handler no debe ejecutarse")
		return result{}, nil
	})
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, result{ID: "ganador", Total: 7}, out)
}

func TestDo_CarreraPerdidaSinRegistroVisible(t *testing.T) {
	repo := &scriptedRepo{reserve: false}
	scope := entity.IdempotencyScope{Key: "k", Route: "POST /movements", Caller: "u"}

	_, _, err := idempotency.Do(context.Background(), nil, repo, scope, func(context.Context) (result, error) {
		return result{}, nil
	})
	assert.ErrorIs(t, err, domain.ErrRequestInProgress)
}
