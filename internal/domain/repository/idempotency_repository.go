package repository

import (
	"context"
	"time"

	"github.com/jhoicas/invorya-core/internal/domain/entity"
)

// IdempotencyRepository persiste los registros de idempotencia.
// La unicidad de (key, route, caller) la garantiza el almacenamiento, no la aplicación.
type IdempotencyRepository interface {
	// Get devuelve nil, nil si no existe registro para el scope.
	Get(ctx context.Context, scope entity.IdempotencyScope) (*entity.IdempotencyKey, error)
	// Reserve inserta el registro PENDING. Retorna false (sin error) si otro intento ya lo insertó.
	Reserve(ctx context.Context, rec *entity.IdempotencyKey) (bool, error)
	Complete(ctx context.Context, id string, response []byte, responseHash string, at time.Time) error
	// DeleteOlderThan lo usa únicamente el job de retención.
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
