package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
)

var _ repository.IdempotencyRepository = (*IdempotencyRepo)(nil)

// IdempotencyRepo registros de idempotencia sobre PostgreSQL. La unicidad la da el índice
// único (key, route, caller).
type IdempotencyRepo struct {
	q Querier
}

// NewIdempotencyRepository construye el adaptador. Pasar pool o tx (Querier).
func NewIdempotencyRepository(q Querier) *IdempotencyRepo {
	return &IdempotencyRepo{q: q}
}

// Get devuelve nil, nil si no hay registro para el scope.
func (r *IdempotencyRepo) Get(ctx context.Context, scope entity.IdempotencyScope) (*entity.IdempotencyKey, error) {
	query := `
		SELECT id, key, route, caller, status, response, response_hash, created_at, completed_at
		FROM idempotency_keys WHERE key = $1 AND route = $2 AND caller = $3`
	var k entity.IdempotencyKey
	var hash *string
	err := r.q.QueryRow(ctx, query, scope.Key, scope.Route, scope.Caller).Scan(
		&k.ID, &k.Key, &k.Route, &k.Caller, &k.Status, &k.Response, &hash, &k.CreatedAt, &k.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	if hash != nil {
		k.ResponseHash = *hash
	}
	return &k, nil
}

// Reserve inserta el registro PENDING; false si otro intento ya lo insertó.
func (r *IdempotencyRepo) Reserve(ctx context.Context, rec *entity.IdempotencyKey) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	query := `
		INSERT INTO idempotency_keys (id, key, route, caller, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key, route, caller) DO NOTHING
		RETURNING id`
	var id string
	err := r.q.QueryRow(ctx, query, rec.ID, rec.Key, rec.Route, rec.Caller, rec.Status, rec.CreatedAt).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return true, nil
}

// Complete guarda la respuesta y marca el registro COMPLETED.
func (r *IdempotencyRepo) Complete(ctx context.Context, id string, response []byte, responseHash string, at time.Time) error {
	query := `
		UPDATE idempotency_keys
		SET status = $2, response = $3, response_hash = $4, completed_at = $5
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, id, entity.IdempotencyCompleted, response, responseHash, at)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteOlderThan poda registros creados antes de before.
func (r *IdempotencyRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("delete idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
