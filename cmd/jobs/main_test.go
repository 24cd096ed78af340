package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/invorya-core/internal/application/jobs"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/infrastructure/memory"
)

func testRunner(t *testing.T) *jobs.Runner {
	t.Helper()
	r := jobs.NewRunner(memory.NewLocker(nil), memory.NewDeadLetters(),
		jobs.WithSleep(func(context.Context, time.Duration) error { return nil }))
	require.NoError(t, r.Register(jobs.Job{
		Name: "eco",
		Handler: func(_ context.Context, payload json.RawMessage) (any, error) {
			return string(payload), nil
		},
	}))
	require.NoError(t, r.Register(jobs.Job{
		Name:        "siempre-falla",
		MaxAttempts: 2,
		Handler: func(context.Context, json.RawMessage) (any, error) {
			return nil, errors.New("sin conexión")
		},
	}))
	return r
}

func TestDispatch_List(t *testing.T) {
	out, err := dispatch(context.Background(), testRunner(t), "list", nil)
	require.NoError(t, err)
	list, ok := out.([]jobs.JobInfo)
	require.True(t, ok)
	assert.Len(t, list, 2)
	assert.Equal(t, "eco", list[0].Name)
}

func TestDispatch_RunConPayload(t *testing.T) {
	out, err := dispatch(context.Background(), testRunner(t), "run", []string{"eco", `{"x":1}`})
	require.NoError(t, err)
	res, ok := out.(jobs.RunResult)
	require.True(t, ok)
	assert.Equal(t, jobs.StatusOK, res.Status)
	assert.Equal(t, `{"x":1}`, res.Details)
}

func TestDispatch_PayloadInvalido(t *testing.T) {
	_, err := dispatch(context.Background(), testRunner(t), "run", []string{"eco", "{no-json"})
	assert.ErrorContains(t, err, "JSON")
}

func TestDispatch_RunFallidoYReplay(t *testing.T) {
	r := testRunner(t)
	out, err := dispatch(context.Background(), r, "run", []string{"siempre-falla"})
	require.NoError(t, err)
	res := out.(jobs.RunResult)
	assert.Equal(t, jobs.StatusSkipped, res.Status)
	require.NotEmpty(t, res.DeadLetterID)

	out, err = dispatch(context.Background(), r, "dead-letters", []string{"5"})
	require.NoError(t, err)
	assert.Len(t, out.([]*entity.DeadLetterJob), 1)

	_, err = dispatch(context.Background(), r, "replay", []string{res.DeadLetterID})
	assert.ErrorIs(t, err, domain.ErrJobFailed)
}

func TestDispatch_Errores(t *testing.T) {
	r := testRunner(t)
	_, err := dispatch(context.Background(), r, "run", nil)
	assert.Error(t, err)
	_, err = dispatch(context.Background(), r, "retry", []string{"no-existe"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = dispatch(context.Background(), r, "dead-letters", []string{"-1"})
	assert.Error(t, err)
	_, err = dispatch(context.Background(), r, "borrar", nil)
	assert.ErrorContains(t, err, "comando desconocido")
}
