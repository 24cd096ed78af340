package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
	"github.com/redis/go-redis/v9"
)

// releaseLock borra la llave solo si el token sigue siendo el nuestro.
var releaseLock = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker locks de jobs con SET NX PX. El lock expira solo si el dueño no lo libera.
type Locker struct {
	client redis.UniversalClient
	now    func() time.Time
}

// NewLocker construye el locker.
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client, now: time.Now}
}

// Acquire intenta tomar el lock; acquired=false si otra réplica lo tiene vigente.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (*entity.JobLock, bool, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, fmt.Sprintf(KeyJobLock, name), token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &entity.JobLock{Name: name, Token: token, ExpiresAt: l.now().Add(ttl)}, true, nil
}

// Release libera el lock si todavía nos pertenece.
func (l *Locker) Release(ctx context.Context, lock *entity.JobLock) error {
	if lock == nil {
		return nil
	}
	if err := releaseLock.Run(ctx, l.client, []string{fmt.Sprintf(KeyJobLock, lock.Name)}, lock.Token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis unlock %s: %w", lock.Name, err)
	}
	return nil
}
