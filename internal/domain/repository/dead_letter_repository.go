package repository

import (
	"context"

	"github.com/jhoicas/invorya-core/internal/domain/entity"
)

// DeadLetterRepository persiste los jobs que agotaron sus reintentos.
type DeadLetterRepository interface {
	Create(ctx context.Context, job *entity.DeadLetterJob) error
	GetByID(ctx context.Context, id string) (*entity.DeadLetterJob, error)
	List(ctx context.Context, limit, offset int) ([]*entity.DeadLetterJob, error)
	Delete(ctx context.Context, id string) error
}
