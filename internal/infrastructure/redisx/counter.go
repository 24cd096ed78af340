package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindow incrementa y fija la expiración en el primer golpe de la ventana.
// Si la llave quedó sin TTL (p. ej. creada a mano) se le vuelve a poner.
var incrWindow = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {c, ttl}
`)

// Counter contador de ventana fija compartido entre réplicas.
type Counter struct {
	client redis.Scripter
	now    func() time.Time
}

// NewCounter construye el contador.
func NewCounter(client redis.Scripter) *Counter {
	return &Counter{client: client, now: time.Now}
}

// Incr suma uno al contador de key y devuelve el total de la ventana y cuándo se reinicia.
func (c *Counter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	res, err := incrWindow.Run(ctx, c.client, []string{fmt.Sprintf(KeyRateLimit, key)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis incr: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("redis incr: respuesta inesperada %v", res)
	}
	return res[0], c.now().Add(time.Duration(res[1]) * time.Millisecond), nil
}
