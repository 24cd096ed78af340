// Package jobs ejecuta trabajos en segundo plano con exclusión mutua, reintentos con
// backoff exponencial y dead letter al agotar los intentos.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
	"github.com/jhoicas/invorya-core/pkg/metrics"
	"github.com/rs/zerolog"
)

// Estados y motivos de RunResult.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"

	ReasonLocked = "locked"
	ReasonFailed = "failed"
)

// Valores por defecto de Job.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultLockTTL     = 5 * time.Minute
)

// Handler hace el trabajo. El resultado se devuelve como Details de RunResult.
type Handler func(ctx context.Context, payload json.RawMessage) (any, error)

// Locker exclusión mutua por nombre de job con TTL.
type Locker interface {
	// Acquire devuelve acquired=false (sin error) si otro dueño tiene el lock vigente.
	Acquire(ctx context.Context, name string, ttl time.Duration) (lock *entity.JobLock, acquired bool, err error)
	Release(ctx context.Context, lock *entity.JobLock) error
}

// Job definición registrada en el Runner.
type Job struct {
	Name        string
	Handler     Handler
	MaxAttempts int
	BaseDelay   time.Duration
	LockTTL     time.Duration
	Interval    time.Duration // 0 = solo bajo demanda
	// Locker reemplaza al del Runner. Para jobs que solo tocan estado del proceso.
	Locker Locker
}

// JobInfo vista pública de un job registrado.
type JobInfo struct {
	Name        string `json:"name"`
	MaxAttempts int    `json:"max_attempts"`
	BaseDelayMs int64  `json:"base_delay_ms"`
	LockTTLMs   int64  `json:"lock_ttl_ms"`
	IntervalMs  int64  `json:"interval_ms,omitempty"`
}

// RunResult resultado de RunJob.
type RunResult struct {
	Job          string `json:"job"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	Details      any    `json:"details,omitempty"`
	Attempts     int    `json:"attempts,omitempty"`
	DeadLetterID string `json:"dead_letter_id,omitempty"`
}

// AttemptResult resultado del bucle de intentos sin lock ni dead letter.
type AttemptResult struct {
	Result   any
	Attempts int
	Err      error
}

// Runner registro y ejecución de jobs. Seguro para uso concurrente.
type Runner struct {
	mu   sync.RWMutex
	jobs map[string]Job

	locker      Locker
	deadLetters repository.DeadLetterRepository
	metrics     *metrics.Metrics
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error

	defaultMaxAttempts int
	defaultBaseDelay   time.Duration
	defaultLockTTL     time.Duration
}

// Option configura el Runner.
type Option func(*Runner)

// WithMetrics registra reintentos, fallos, omisiones y jobs en curso.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithSleep reemplaza la espera entre intentos (tests).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

// WithDefaults valores para los jobs que no definen los suyos.
func WithDefaults(maxAttempts int, baseDelay, lockTTL time.Duration) Option {
	return func(r *Runner) {
		if maxAttempts > 0 {
			r.defaultMaxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			r.defaultBaseDelay = baseDelay
		}
		if lockTTL > 0 {
			r.defaultLockTTL = lockTTL
		}
	}
}

// NewRunner construye el runner.
func NewRunner(locker Locker, deadLetters repository.DeadLetterRepository, opts ...Option) *Runner {
	r := &Runner{
		jobs:               make(map[string]Job),
		locker:             locker,
		deadLetters:        deadLetters,
		now:                time.Now,
		sleep:              sleepCtx,
		defaultMaxAttempts: DefaultMaxAttempts,
		defaultBaseDelay:   DefaultBaseDelay,
		defaultLockTTL:     DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register agrega un job. Los nombres son únicos.
func (r *Runner) Register(job Job) error {
	if job.Name == "" || job.Handler == nil {
		return fmt.Errorf("%w: job sin nombre o sin handler", domain.ErrInvalidInput)
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = r.defaultMaxAttempts
	}
	if job.BaseDelay <= 0 {
		job.BaseDelay = r.defaultBaseDelay
	}
	if job.LockTTL <= 0 {
		job.LockTTL = r.defaultLockTTL
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Name]; exists {
		return fmt.Errorf("%w: job %q", domain.ErrDuplicate, job.Name)
	}
	r.jobs[job.Name] = job
	return nil
}

func (r *Runner) lookup(name string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[name]
	if !ok {
		return Job{}, fmt.Errorf("%w: job %q", domain.ErrNotFound, name)
	}
	return job, nil
}

// ListJobs jobs registrados ordenados por nombre.
func (r *Runner) ListJobs() []JobInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]JobInfo, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, JobInfo{
			Name:        j.Name,
			MaxAttempts: j.MaxAttempts,
			BaseDelayMs: j.BaseDelay.Milliseconds(),
			LockTTLMs:   j.LockTTL.Milliseconds(),
			IntervalMs:  j.Interval.Milliseconds(),
		})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// RunJob ejecuta el job con exclusión mutua. Un lock ocupado o los intentos agotados se
// reportan como StatusSkipped, no como error; el error queda para nombre desconocido o
// fallos de infraestructura (lock, dead letter).
func (r *Runner) RunJob(ctx context.Context, name string, payload json.RawMessage) (RunResult, error) {
	job, err := r.lookup(name)
	if err != nil {
		return RunResult{}, err
	}
	log := zerolog.Ctx(ctx).With().Str("job", name).Logger()

	locker := r.locker
	if job.Locker != nil {
		locker = job.Locker
	}
	lock, acquired, err := locker.Acquire(ctx, name, job.LockTTL)
	if err != nil {
		return RunResult{}, fmt.Errorf("jobs: adquirir lock de %s: %w", name, err)
	}
	if !acquired {
		r.metrics.RecordJobSkipped(name, ReasonLocked)
		log.Info().Msg("job omitido: otra ejecución tiene el lock")
		return RunResult{Job: name, Status: StatusSkipped, Reason: ReasonLocked}, nil
	}
	defer func() {
		if err := locker.Release(context.WithoutCancel(ctx), lock); err != nil {
			log.Warn().Err(err).Msg("no se pudo liberar el lock del job")
		}
	}()

	done := r.metrics.JobStarted(name)
	defer done()

	start := r.now()
	res := r.attempt(ctx, job, payload)
	if res.Err == nil {
		log.Info().Int("attempts", res.Attempts).Dur("took", r.now().Sub(start)).Msg("job completado")
		return RunResult{Job: name, Status: StatusOK, Details: res.Result, Attempts: res.Attempts}, nil
	}

	dl := &entity.DeadLetterJob{
		ID:        uuid.New().String(),
		JobName:   name,
		Payload:   payload,
		Attempts:  res.Attempts,
		LastError: res.Err.Error(),
		CreatedAt: r.now().UTC(),
	}
	if err := r.deadLetters.Create(context.WithoutCancel(ctx), dl); err != nil {
		return RunResult{}, fmt.Errorf("jobs: guardar dead letter de %s: %w", name, err)
	}
	r.metrics.RecordJobFailed(name)
	r.metrics.RecordJobSkipped(name, ReasonFailed)
	log.Error().Err(res.Err).Int("attempts", res.Attempts).Str("dead_letter_id", dl.ID).Msg("job agotó sus intentos")
	return RunResult{
		Job:          name,
		Status:       StatusSkipped,
		Reason:       ReasonFailed,
		Details:      res.Err.Error(),
		Attempts:     res.Attempts,
		DeadLetterID: dl.ID,
	}, nil
}

// RetryJob ejecuta solo el bucle de intentos, sin lock ni dead letter.
func (r *Runner) RetryJob(ctx context.Context, name string, payload json.RawMessage) (AttemptResult, error) {
	job, err := r.lookup(name)
	if err != nil {
		return AttemptResult{}, err
	}
	return r.attempt(ctx, job, payload), nil
}

// attempt espera BaseDelay*2^(n-1) después del intento n fallido. Los reintentos
// bloquean al llamador hasta agotarse: ni el intento ni la espera se cortan si ctx
// termina, así un dead letter siempre registra MaxAttempts intentos.
func (r *Runner) attempt(ctx context.Context, job Job, payload json.RawMessage) AttemptResult {
	var lastErr error
	for n := 1; n <= job.MaxAttempts; n++ {
		result, err := safeCall(ctx, job.Handler, payload)
		if err == nil {
			return AttemptResult{Result: result, Attempts: n}
		}
		lastErr = err
		zerolog.Ctx(ctx).Warn().Err(err).Str("job", job.Name).Int("attempt", n).Msg("intento de job fallido")
		if n == job.MaxAttempts {
			break
		}
		r.metrics.RecordJobRetried(job.Name)
		if err := r.sleep(context.WithoutCancel(ctx), job.BaseDelay*time.Duration(1<<(n-1))); err != nil {
			return AttemptResult{Attempts: n, Err: fmt.Errorf("%w: %s: %v", domain.ErrJobFailed, job.Name, err)}
		}
	}
	return AttemptResult{Attempts: job.MaxAttempts, Err: fmt.Errorf("%w: %s: %v", domain.ErrJobFailed, job.Name, lastErr)}
}

func safeCall(ctx context.Context, h Handler, payload json.RawMessage) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return h(ctx, payload)
}

// ListDeadLetters dead letters más recientes primero.
func (r *Runner) ListDeadLetters(ctx context.Context, limit, offset int) ([]*entity.DeadLetterJob, error) {
	return r.deadLetters.List(ctx, limit, offset)
}

// ReplayDeadLetter vuelve a intentar un dead letter con su payload original.
// Si el reintento tiene éxito el dead letter se elimina.
func (r *Runner) ReplayDeadLetter(ctx context.Context, id string) (AttemptResult, error) {
	dl, err := r.deadLetters.GetByID(ctx, id)
	if err != nil {
		return AttemptResult{}, fmt.Errorf("jobs: leer dead letter: %w", err)
	}
	if dl == nil {
		return AttemptResult{}, fmt.Errorf("%w: dead letter %s", domain.ErrNotFound, id)
	}
	res, err := r.RetryJob(ctx, dl.JobName, dl.Payload)
	if err != nil {
		return AttemptResult{}, err
	}
	if res.Err == nil {
		if err := r.deadLetters.Delete(ctx, id); err != nil {
			return res, fmt.Errorf("jobs: eliminar dead letter: %w", err)
		}
	}
	return res, nil
}
