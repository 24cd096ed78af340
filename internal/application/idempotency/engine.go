// Package idempotency deduplica mutaciones identificadas por (key, route, caller).
//
// Do corre dentro de la unidad atómica del llamador: el repositorio que recibe está atado
// a la misma transacción que las escrituras del handler, de modo que el registro COMPLETED
// y los efectos del handler se confirman o se descartan juntos.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
	"github.com/jhoicas/invorya-core/pkg/metrics"
	"github.com/rs/zerolog"
)

// MaxKeyLength longitud máxima aceptada para la clave.
const MaxKeyLength = 255

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// NormalizeKey recorta espacios y valida formato y longitud.
func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > MaxKeyLength || !keyPattern.MatchString(key) {
		return "", domain.ErrInvalidIdempotencyKey
	}
	return key, nil
}

// Fingerprint sha256 hex de la respuesta serializada.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Engine lleva las dependencias que no cambian entre llamadas. Un *Engine nil es válido.
type Engine struct {
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewEngine construye el motor. m puede ser nil.
func NewEngine(m *metrics.Metrics) *Engine {
	return &Engine{metrics: m, now: time.Now}
}

func (e *Engine) clock() time.Time {
	if e == nil || e.now == nil {
		return time.Now().UTC()
	}
	return e.now().UTC()
}

func (e *Engine) stats() *metrics.Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// Do ejecuta handler a lo sumo una vez por scope.
//
// Devuelve replayed=true cuando el resultado sale del registro COMPLETED. Si otro intento con el
// mismo scope sigue en curso devuelve domain.ErrRequestInProgress sin esperar. Si el handler falla
// el error se propaga y el llamador debe abortar la unidad, con lo que el registro PENDING desaparece.
func Do[T any](
	ctx context.Context,
	e *Engine,
	repo repository.IdempotencyRepository,
	scope entity.IdempotencyScope,
	handler func(ctx context.Context) (T, error),
) (T, bool, error) {
	var zero T
	key, err := NormalizeKey(scope.Key)
	if err != nil {
		return zero, false, err
	}
	scope.Key = key
	log := zerolog.Ctx(ctx).With().Str("idempotency_key", key).Str("route", scope.Route).Logger()

	existing, err := repo.Get(ctx, scope)
	if err != nil {
		return zero, false, fmt.Errorf("idempotency: leer registro: %w", err)
	}
	if existing != nil {
		return replay[T](e, scope, existing)
	}

	rec := &entity.IdempotencyKey{
		ID:        uuid.New().String(),
		Key:       scope.Key,
		Route:     scope.Route,
		Caller:    scope.Caller,
		Status:    entity.IdempotencyPending,
		CreatedAt: e.clock(),
	}
	won, err := repo.Reserve(ctx, rec)
	if err != nil {
		return zero, false, fmt.Errorf("idempotency: reservar: %w", err)
	}
	if !won {
		// Otro intento insertó primero: si ya terminó se repite su respuesta.
		existing, err = repo.Get(ctx, scope)
		if err != nil {
			return zero, false, fmt.Errorf("idempotency: releer registro: %w", err)
		}
		if existing == nil {
			e.stats().RecordIdempotencyInProgress(scope.Route)
			return zero, false, domain.ErrRequestInProgress
		}
		return replay[T](e, scope, existing)
	}

	e.stats().RecordIdempotencyMiss(scope.Route)
	result, err := handler(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("handler idempotente falló, se descarta la reserva")
		return zero, false, err
	}
	body, err := json.Marshal(result)
	if err != nil {
		return zero, false, fmt.Errorf("idempotency: serializar respuesta: %w", err)
	}
	if err := repo.Complete(ctx, rec.ID, body, Fingerprint(body), e.clock()); err != nil {
		return zero, false, fmt.Errorf("idempotency: completar registro: %w", err)
	}
	return result, false, nil
}

func replay[T any](e *Engine, scope entity.IdempotencyScope, rec *entity.IdempotencyKey) (T, bool, error) {
	var out T
	if !rec.IsCompleted() {
		e.stats().RecordIdempotencyInProgress(scope.Route)
		return out, false, domain.ErrRequestInProgress
	}
	if err := json.Unmarshal(rec.Response, &out); err != nil {
		return out, false, fmt.Errorf("idempotency: decodificar respuesta cacheada: %w", err)
	}
	e.stats().RecordIdempotencyHit(scope.Route)
	return out, true, nil
}
