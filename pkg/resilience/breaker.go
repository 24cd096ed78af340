// Package resilience protege las llamadas al backend compartido (Redis, Kafka)
// con un circuit breaker. Con el circuito abierto las llamadas fallan de inmediato
// y el llamador cae a su comportamiento local.
package resilience

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen el circuito está abierto o en half-open sin cupo.
var ErrCircuitOpen = errors.New("resilience: circuito abierto")

// BreakerConfig parámetros del breaker.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32        // peticiones permitidas en half-open
	Interval            time.Duration // ventana para limpiar contadores en estado cerrado
	Timeout             time.Duration // tiempo en abierto antes de pasar a half-open
	ConsecutiveFailures uint32
}

// DefaultBreakerConfig valores usados por todos los adaptadores del backend compartido.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             15 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Breaker envoltorio de gobreaker con log de cambios de estado.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker construye el breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker cambió de estado")
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Do ejecuta fn a través del breaker. Un circuito abierto se reporta como ErrCircuitOpen.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// Execute variante con resultado tipado.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	err := b.Do(func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// State estado actual ("closed", "half-open", "open").
func (b *Breaker) State() string {
	return b.cb.State().String()
}
