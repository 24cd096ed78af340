package bootstrap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/invorya-core/internal/application/inventory"
	"github.com/jhoicas/invorya-core/internal/application/jobs"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/infrastructure/memory"
	"github.com/jhoicas/invorya-core/internal/infrastructure/redisx"
	"github.com/jhoicas/invorya-core/pkg/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "test", Name: "invorya-test"},
		DB:        config.DBConfig{Driver: "memory"},
		RateLimit: config.RateLimitConfig{Backend: config.BackendLocal, Max: 10, Window: time.Minute},
		Events:    config.EventsConfig{Backend: config.BackendLocal},
		Jobs:      config.JobsConfig{LockBackend: config.BackendLocal, MaxAttempts: 2, BaseDelay: time.Millisecond},
	}
}

func TestBuild_Memoria_RegistraJobs(t *testing.T) {
	c, err := Build(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer c.Close()

	var names []string
	for _, j := range c.Runner.ListJobs() {
		names = append(names, j.Name)
		assert.Positive(t, j.MaxAttempts)
	}
	assert.ElementsMatch(t, []string{
		jobs.JobLowStockScan,
		jobs.JobIdempotencyRetention,
		jobs.JobSnapshotAudit,
		JobRateLimitSweep,
	}, names)
}

func TestBuild_Memoria_MovimientoDePuntaAPunta(t *testing.T) {
	c, err := Build(context.Background(), memoryConfig())
	require.NoError(t, err)
	defer c.Close()

	store, ok := c.Tx.(*memory.Store)
	require.True(t, ok)
	store.PutStore(entity.Store{ID: "s1", TenantID: "t1", Name: "Centro"})
	store.PutProduct(entity.Product{ID: "cafe", TenantID: "t1", SKU: "CAF-1", Name: "Café"})

	res, replayed, err := c.Movements.RecordMovement(context.Background(), inventory.RecordMovementInput{
		TenantID:       "t1",
		StoreID:        "s1",
		ProductID:      "cafe",
		QtyDelta:       decimal.NewFromInt(5),
		Type:           entity.MovementTypeReceive,
		ActorID:        "u1",
		IdempotencyKey: "k-1",
		Caller:         "t1:u1",
	})
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.True(t, res.Snapshot.OnHand.Equal(decimal.NewFromInt(5)))

	run, err := c.Runner.RunJob(context.Background(), JobRateLimitSweep, nil)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusOK, run.Status)
}

func TestBuild_BarridoDelLimitadorNoUsaElLockCompartido(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.Redis.URL = "redis://" + mr.Addr()
	cfg.Jobs.LockBackend = config.BackendRedis

	c, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	// otra réplica tiene el lock compartido de ambos jobs
	for _, name := range []string{JobRateLimitSweep, jobs.JobSnapshotAudit} {
		require.NoError(t, mr.Set(fmt.Sprintf(redisx.KeyJobLock, name), "otra-replica"))
	}

	run, err := c.Runner.RunJob(context.Background(), JobRateLimitSweep, nil)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusOK, run.Status)

	run, err = c.Runner.RunJob(context.Background(), jobs.JobSnapshotAudit, nil)
	require.NoError(t, err)
	assert.Equal(t, jobs.ReasonLocked, run.Reason)
}

func TestBuild_DriverDesconocido(t *testing.T) {
	cfg := memoryConfig()
	cfg.DB.Driver = "oracle"
	_, err := Build(context.Background(), cfg)
	assert.ErrorContains(t, err, "DB_DRIVER")
}

func TestBuild_BackendDeEventosDesconocido(t *testing.T) {
	cfg := memoryConfig()
	cfg.Events.Backend = "nats"
	_, err := Build(context.Background(), cfg)
	assert.ErrorContains(t, err, "EVENTS_BACKEND")
}

func TestSweepInterval_MinimoUnMinuto(t *testing.T) {
	assert.Equal(t, time.Minute, sweepInterval(time.Second))
	assert.Equal(t, 5*time.Minute, sweepInterval(5*time.Minute))
}
