// Package ratelimit implementa un limitador de ventana fija por llave (caller + scope).
//
// El conteo vive en el backend compartido cuando existe, de modo que todas las réplicas
// comparten la cuota. Si el backend falla o el circuito está abierto, la petición se cuenta
// en el contador local del proceso: el límite se vuelve aproximado pero el servicio sigue.
package ratelimit

import (
	"context"
	"time"

	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/pkg/metrics"
	"github.com/jhoicas/invorya-core/pkg/resilience"
	"github.com/rs/zerolog"
)

// Counter incrementa el bucket de key. La ventana arranca con el primer incremento.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAt time.Time, err error)
}

// Decision resultado de consumir una unidad de cuota.
type Decision struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter aplica Max peticiones por Window.
type Limiter struct {
	max     int
	window  time.Duration
	local   Counter
	shared  Counter
	breaker *resilience.Breaker
	metrics *metrics.Metrics
}

// Option configura el limitador.
type Option func(*Limiter)

// WithShared usa un contador compartido protegido por breaker.
func WithShared(c Counter, b *resilience.Breaker) Option {
	return func(l *Limiter) {
		l.shared = c
		l.breaker = b
	}
}

// WithMetrics registra rechazos y fallos del backend.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// NewLimiter construye el limitador. local es obligatorio: es el contador de respaldo.
func NewLimiter(max int, window time.Duration, local Counter, opts ...Option) *Limiter {
	l := &Limiter{max: max, window: window, local: local}
	for _, opt := range opts {
		opt(l)
	}
	if l.shared != nil && l.breaker == nil {
		l.breaker = resilience.NewBreaker(resilience.DefaultBreakerConfig("ratelimit"))
	}
	return l
}

// Consume cuenta una petición para key. Devuelve domain.ErrRateLimited si el conteo supera Max.
func (l *Limiter) Consume(ctx context.Context, key string) (Decision, error) {
	count, resetAt, err := l.incr(ctx, key)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{Limit: l.max, Remaining: l.max - int(count), ResetAt: resetAt}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if count > int64(l.max) {
		l.metrics.RecordRateLimited("consume")
		return d, domain.ErrRateLimited
	}
	return d, nil
}

func (l *Limiter) incr(ctx context.Context, key string) (int64, time.Time, error) {
	if l.shared != nil {
		type hit struct {
			count   int64
			resetAt time.Time
		}
		h, err := resilience.Execute(l.breaker, func() (hit, error) {
			c, r, err := l.shared.Incr(ctx, key, l.window)
			return hit{c, r}, err
		})
		if err == nil {
			return h.count, h.resetAt, nil
		}
		l.metrics.RecordSharedBackendError("ratelimit")
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("limitador: backend compartido no disponible, usando contador local")
	}
	return l.local.Incr(ctx, key, l.window)
}
