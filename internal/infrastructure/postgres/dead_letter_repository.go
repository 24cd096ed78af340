package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/jhoicas/invorya-core/internal/domain/repository"
)

var _ repository.DeadLetterRepository = (*DeadLetterRepo)(nil)

// DeadLetterRepo jobs que agotaron sus reintentos. Va fuera de la transacción del ledger.
type DeadLetterRepo struct {
	pool *pgxpool.Pool
}

// NewDeadLetterRepository construye el adaptador.
func NewDeadLetterRepository(pool *pgxpool.Pool) *DeadLetterRepo {
	return &DeadLetterRepo{pool: pool}
}

// Create persiste el dead letter.
func (r *DeadLetterRepo) Create(ctx context.Context, job *entity.DeadLetterJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	payload := []byte(job.Payload)
	if len(payload) == 0 {
		payload = nil
	}
	query := `
		INSERT INTO dead_letter_jobs (id, job_name, payload, attempts, last_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, job.ID, job.JobName, payload, job.Attempts, job.LastError, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("create dead letter: %w", err)
	}
	return nil
}

// GetByID nil, nil si no existe.
func (r *DeadLetterRepo) GetByID(ctx context.Context, id string) (*entity.DeadLetterJob, error) {
	query := `SELECT id, job_name, payload, attempts, last_error, created_at FROM dead_letter_jobs WHERE id = $1`
	var j entity.DeadLetterJob
	var payload []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&j.ID, &j.JobName, &payload, &j.Attempts, &j.LastError, &j.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get dead letter: %w", err)
	}
	j.Payload = payload
	return &j, nil
}

// List del más reciente al más antiguo.
func (r *DeadLetterRepo) List(ctx context.Context, limit, offset int) ([]*entity.DeadLetterJob, error) {
	query := `
		SELECT id, job_name, payload, attempts, last_error, created_at
		FROM dead_letter_jobs ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()
	var list []*entity.DeadLetterJob
	for rows.Next() {
		var j entity.DeadLetterJob
		var payload []byte
		if err := rows.Scan(&j.ID, &j.JobName, &payload, &j.Attempts, &j.LastError, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		j.Payload = payload
		list = append(list, &j)
	}
	return list, rows.Err()
}

// Delete elimina el dead letter tras un replay exitoso.
func (r *DeadLetterRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM dead_letter_jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete dead letter: %w", err)
	}
	return nil
}
