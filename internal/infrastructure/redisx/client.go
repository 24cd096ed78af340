// Package redisx implementa sobre Redis el estado compartido entre réplicas:
// contadores de rate limit, locks de jobs y difusión de eventos.
package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Prefijos de llaves.
const (
	KeyRateLimit = "invorya:ratelimit:%s"
	KeyJobLock   = "invorya:lock:job:%s"
)

// NewClient abre el cliente desde una URL redis:// y verifica la conexión.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("redis conectado")
	return client, nil
}
