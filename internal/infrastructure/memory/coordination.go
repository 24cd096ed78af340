package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
)

// Clock permite a los tests controlar el tiempo.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// ──────────────────────────────────────────────────────────────────────────────
// Contador de ventana fija (limitador local)

type bucket struct {
	count   int64
	resetAt time.Time
}

// Counter contador por proceso. Los buckets vencidos se reinician en el siguiente Incr.
type Counter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	clock   Clock
}

// NewCounter crea el contador. clock nil usa time.Now.
func NewCounter(clock Clock) *Counter {
	return &Counter{buckets: make(map[string]*bucket), clock: clock}
}

// Incr suma uno al bucket de key y devuelve el conteo y el fin de la ventana.
func (c *Counter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.now()
	b, ok := c.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(window)}
		c.buckets[key] = b
	}
	b.count++
	return b.count, b.resetAt, nil
}

// Sweep elimina los buckets vencidos.
func (c *Counter) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.now()
	for k, b := range c.buckets {
		if !now.Before(b.resetAt) {
			delete(c.buckets, k)
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Lock de jobs por proceso

// Locker exclusión mutua por nombre con TTL, válida solo dentro del proceso.
type Locker struct {
	mu    sync.Mutex
	held  map[string]entity.JobLock
	clock Clock
}

// NewLocker crea el locker. clock nil usa time.Now.
func NewLocker(clock Clock) *Locker {
	return &Locker{held: make(map[string]entity.JobLock), clock: clock}
}

// Acquire toma el lock si está libre o vencido.
func (l *Locker) Acquire(_ context.Context, name string, ttl time.Duration) (*entity.JobLock, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.now()
	if cur, ok := l.held[name]; ok && !cur.Expired(now) {
		return nil, false, nil
	}
	lock := entity.JobLock{Name: name, Token: uuid.New().String(), ExpiresAt: now.Add(ttl)}
	l.held[name] = lock
	return &lock, true, nil
}

// Release libera el lock solo si el token sigue siendo el del dueño.
func (l *Locker) Release(_ context.Context, lock *entity.JobLock) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[lock.Name]; ok && cur.Token == lock.Token {
		delete(l.held, lock.Name)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Dead letters

var _ repository.DeadLetterRepository = (*DeadLetters)(nil)

// DeadLetters repositorio de dead letters en memoria.
type DeadLetters struct {
	mu    sync.Mutex
	items map[string]entity.DeadLetterJob
}

// NewDeadLetters crea el repositorio vacío.
func NewDeadLetters() *DeadLetters {
	return &DeadLetters{items: make(map[string]entity.DeadLetterJob)}
}

func (d *DeadLetters) Create(_ context.Context, job *entity.DeadLetterJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	d.items[job.ID] = *job
	return nil
}

func (d *DeadLetters) GetByID(_ context.Context, id string) (*entity.DeadLetterJob, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	job, ok := d.items[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (d *DeadLetters) List(_ context.Context, limit, offset int) ([]*entity.DeadLetterJob, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*entity.DeadLetterJob, 0, len(d.items))
	for _, job := range d.items {
		job := job
		out = append(out, &job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (d *DeadLetters) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.items, id)
	return nil
}
