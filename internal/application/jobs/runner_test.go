package jobs_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jhoicas/invorya-core/internal/application/jobs"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/infrastructure/memory"
	"github.com/jhoicas/invorya-core/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	runner      *jobs.Runner
	locker      *memory.Locker
	deadLetters *memory.DeadLetters
	metrics     *metrics.Metrics
	sleeps      []time.Duration
}

func newHarness() *harness {
	h := &harness{
		locker:      memory.NewLocker(nil),
		deadLetters: memory.NewDeadLetters(),
		metrics:     metrics.New("test"),
	}
	h.runner = jobs.NewRunner(h.locker, h.deadLetters,
		jobs.WithMetrics(h.metrics),
		jobs.WithSleep(func(_ context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return nil
		}),
	)
	return h
}

// ──────────────────────────────────────────────────────────────────────────────
// Reintentos y dead letter
// ──────────────────────────────────────────────────────────────────────────────

func TestRunJob_AgotaReintentosYCreaDeadLetter(t *testing.T) {
	h := newHarness()
	var calls int
	require.NoError(t, h.runner.Register(jobs.Job{
		Name:      "siempre-falla",
		BaseDelay: 100 * time.Millisecond,
		Handler: func(context.Context, json.RawMessage) (any, error) {
			calls++
			return nil, errors.New("proveedor no responde")
		},
	}))

	payload := json.RawMessage(`{"store_id":"s1"}`)
	res, err := h.runner.RunJob(context.Background(), "siempre-falla", payload)
	require.NoError(t, err)

	assert.Equal(t, jobs.StatusSkipped, res.Status)
	assert.Equal(t, jobs.ReasonFailed, res.Reason)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, h.sleeps)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.JobsRetried.WithLabelValues("siempre-falla")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.JobsFailed.WithLabelValues("siempre-falla")))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.JobsInFlight.WithLabelValues("siempre-falla")))

	letters, err := h.runner.ListDeadLetters(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, res.DeadLetterID, letters[0].ID)
	assert.Equal(t, "siempre-falla", letters[0].JobName)
	assert.Equal(t, 3, letters[0].Attempts)
	assert.Contains(t, letters[0].LastError, "proveedor no responde")
	assert.JSONEq(t, string(payload), string(letters[0].Payload))

	// El lock se libera aunque el job falle.
	res, err = h.runner.RunJob(context.Background(), "siempre-falla", nil)
	require.NoError(t, err)
	assert.Equal(t, jobs.ReasonFailed, res.Reason)
}

func TestRunJob_ExitoTrasFallosNoCreaDeadLetter(t *testing.T) {
	h := newHarness()
	var calls int
	require.NoError(t, h.runner.Register(jobs.Job{
		Name: "intermitente",
		Handler: func(context.Context, json.RawMessage) (any, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("timeout")
			}
			return map[string]int{"procesados": 4}, nil
		},
	}))

	res, err := h.runner.RunJob(context.Background(), "intermitente", nil)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusOK, res.Status)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, map[string]int{"procesados": 4}, res.Details)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.JobsRetried.WithLabelValues("intermitente")))
	assert.Equal(t, 0.0, testutil.ToFloat64(h.metrics.JobsFailed.WithLabelValues("intermitente")))

	letters, err := h.runner.ListDeadLetters(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, letters)
}

func TestRunJob_ContextoCanceladoEnEsperaAgotaLosIntentos(t *testing.T) {
	deadLetters := memory.NewDeadLetters()
	runner := jobs.NewRunner(memory.NewLocker(nil), deadLetters)
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	require.NoError(t, runner.Register(jobs.Job{
		Name:      "corte",
		BaseDelay: time.Millisecond,
		Handler: func(context.Context, json.RawMessage) (any, error) {
			calls++
			// el scheduler se detiene mientras el job espera su reintento
			cancel()
			return nil, errors.New("sin respuesta")
		},
	}))

	res, err := runner.RunJob(ctx, "corte", nil)
	require.NoError(t, err)
	assert.Equal(t, jobs.ReasonFailed, res.Reason)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, calls)

	letters, err := runner.ListDeadLetters(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.Equal(t, 3, letters[0].Attempts)
}

func TestRetryJob_LaEsperaNoRecibeContextoCancelado(t *testing.T) {
	var sleepErrs []error
	runner := jobs.NewRunner(memory.NewLocker(nil), memory.NewDeadLetters(),
		jobs.WithSleep(func(ctx context.Context, _ time.Duration) error {
			sleepErrs = append(sleepErrs, ctx.Err())
			return nil
		}))
	require.NoError(t, runner.Register(jobs.Job{
		Name:        "falla",
		MaxAttempts: 2,
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return nil, errors.New("x")
		},
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := runner.RetryJob(ctx, "falla", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []error{nil}, sleepErrs)
}

func TestRunJob_PanicCuentaComoFallo(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.runner.Register(jobs.Job{
		Name:        "panico",
		MaxAttempts: 1,
		Handler: func(context.Context, json.RawMessage) (any, error) {
			panic("nil map")
		},
	}))
	res, err := h.runner.RunJob(context.Background(), "panico", nil)
	require.NoError(t, err)
	assert.Equal(t, jobs.ReasonFailed, res.Reason)
	assert.Empty(t, h.sleeps)
}

// ──────────────────────────────────────────────────────────────────────────────
// Exclusión mutua
// ──────────────────────────────────────────────────────────────────────────────

func TestRunJob_LockOcupadoOmiteSinEjecutar(t *testing.T) {
	h := newHarness()
	var calls int
	require.NoError(t, h.runner.Register(jobs.Job{
		Name: "reporte",
		Handler: func(context.Context, json.RawMessage) (any, error) {
			calls++
			return nil, nil
		},
	}))

	lock, ok, err := h.locker.Acquire(context.Background(), "reporte", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := h.runner.RunJob(context.Background(), "reporte", nil)
	require.NoError(t, err)
	assert.Equal(t, jobs.RunResult{Job: "reporte", Status: jobs.StatusSkipped, Reason: jobs.ReasonLocked}, res)
	assert.Zero(t, calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.JobsSkipped.WithLabelValues("reporte", jobs.ReasonLocked)))

	require.NoError(t, h.locker.Release(context.Background(), lock))
	res, err = h.runner.RunJob(context.Background(), "reporte", nil)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusOK, res.Status)
	assert.Equal(t, 1, calls)
}

func TestRunJob_LockerPropioDelJob(t *testing.T) {
	h := newHarness()
	local := memory.NewLocker(nil)
	var calls int
	require.NoError(t, h.runner.Register(jobs.Job{
		Name:   "local",
		Locker: local,
		Handler: func(context.Context, json.RawMessage) (any, error) {
			calls++
			return nil, nil
		},
	}))

	// el lock compartido no afecta a un job con locker propio
	_, ok, err := h.locker.Acquire(context.Background(), "local", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	res, err := h.runner.RunJob(context.Background(), "local", nil)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusOK, res.Status)

	_, ok, err = local.Acquire(context.Background(), "local", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	res, err = h.runner.RunJob(context.Background(), "local", nil)
	require.NoError(t, err)
	assert.Equal(t, jobs.ReasonLocked, res.Reason)
	assert.Equal(t, 1, calls)
}

func TestLocker_ExpiraTrasTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	locker := memory.NewLocker(func() time.Time { return now })

	_, ok, err := locker.Acquire(context.Background(), "x", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	_, ok, _ = locker.Acquire(context.Background(), "x", time.Minute)
	assert.False(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = locker.Acquire(context.Background(), "x", time.Minute)
	assert.True(t, ok)
}

// ──────────────────────────────────────────────────────────────────────────────
// Registro, RetryJob y replay
// ──────────────────────────────────────────────────────────────────────────────

func TestRegister_Validaciones(t *testing.T) {
	h := newHarness()
	noop := func(context.Context, json.RawMessage) (any, error) { return nil, nil }

	assert.ErrorIs(t, h.runner.Register(jobs.Job{Handler: noop}), domain.ErrInvalidInput)
	assert.ErrorIs(t, h.runner.Register(jobs.Job{Name: "x"}), domain.ErrInvalidInput)
	require.NoError(t, h.runner.Register(jobs.Job{Name: "b", Handler: noop}))
	require.NoError(t, h.runner.Register(jobs.Job{Name: "a", Handler: noop, MaxAttempts: 5}))
	assert.ErrorIs(t, h.runner.Register(jobs.Job{Name: "a", Handler: noop}), domain.ErrDuplicate)

	list := h.runner.ListJobs()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, 5, list[0].MaxAttempts)
	assert.Equal(t, jobs.DefaultMaxAttempts, list[1].MaxAttempts)

	_, err := h.runner.RunJob(context.Background(), "no-existe", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRetryJob_NoCreaDeadLetter(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.runner.Register(jobs.Job{
		Name: "falla",
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return nil, errors.New("x")
		},
	}))
	res, err := h.runner.RetryJob(context.Background(), "falla", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, domain.ErrJobFailed)
	assert.Equal(t, 3, res.Attempts)

	letters, _ := h.runner.ListDeadLetters(context.Background(), 10, 0)
	assert.Empty(t, letters)
}

func TestReplayDeadLetter_ExitoEliminaElRegistro(t *testing.T) {
	h := newHarness()
	healthy := false
	var seen json.RawMessage
	require.NoError(t, h.runner.Register(jobs.Job{
		Name: "sync",
		Handler: func(_ context.Context, payload json.RawMessage) (any, error) {
			seen = payload
			if !healthy {
				return nil, errors.New("caído")
			}
			return "ok", nil
		},
	}))

	res, err := h.runner.RunJob(context.Background(), "sync", json.RawMessage(`{"n":1}`))
	require.NoError(t, err)
	require.NotEmpty(t, res.DeadLetterID)

	healthy = true
	attempt, err := h.runner.ReplayDeadLetter(context.Background(), res.DeadLetterID)
	require.NoError(t, err)
	require.NoError(t, attempt.Err)
	assert.Equal(t, "ok", attempt.Result)
	assert.JSONEq(t, `{"n":1}`, string(seen))

	letters, _ := h.runner.ListDeadLetters(context.Background(), 10, 0)
	assert.Empty(t, letters)

	_, err = h.runner.ReplayDeadLetter(context.Background(), res.DeadLetterID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
