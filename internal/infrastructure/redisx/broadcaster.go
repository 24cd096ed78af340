package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Broadcaster difunde sobres de eventos por un canal pub/sub.
// Pub/sub no guarda mensajes: una réplica desconectada pierde lo publicado mientras tanto.
type Broadcaster struct {
	client  *redis.Client
	channel string
}

// NewBroadcaster construye el transporte sobre channel.
func NewBroadcaster(client *redis.Client, channel string) *Broadcaster {
	return &Broadcaster{client: client, channel: channel}
}

// Broadcast publica data en el canal.
func (b *Broadcaster) Broadcast(ctx context.Context, data []byte) error {
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", b.channel, err)
	}
	return nil
}

// Listen se suscribe al canal y entrega cada mensaje hasta que ctx termina.
func (b *Broadcaster) Listen(ctx context.Context, handle func(data []byte)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	log.Info().Str("channel", b.channel).Msg("bus: escuchando redis")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscribe %s: canal cerrado", b.channel)
			}
			handle([]byte(msg.Payload))
		}
	}
}
