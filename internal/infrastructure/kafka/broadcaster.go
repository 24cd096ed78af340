// Package kafka transporte del bus de eventos sobre un tópico Kafka.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

// Config parámetros del transporte.
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	MaxWait      time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 10 * time.Millisecond
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 500 * time.Millisecond
	}
	return c
}

// eventPartition única partición que se escribe y se lee. Sin consumer group un Reader
// lee una sola partición, así que el writer no puede repartir entre varias.
const eventPartition = 0

// partitionBalancer envía todo a eventPartition aunque el tópico tenga más particiones.
type partitionBalancer struct{}

func (partitionBalancer) Balance(_ kafka.Message, _ ...int) int { return eventPartition }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Broadcaster difunde sobres de eventos por un tópico. Cada réplica lee la partición
// completa sin consumer group, desde el final, igual que una suscripción pub/sub.
type Broadcaster struct {
	cfg       Config
	writer    messageWriter
	newReader func(kafka.ReaderConfig) messageReader
}

// NewBroadcaster construye el transporte. No abre conexiones hasta el primer uso.
func NewBroadcaster(cfg Config) (*Broadcaster, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: se requiere al menos un broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: tópico vacío")
	}
	cfg = cfg.withDefaults()
	return &Broadcaster{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               partitionBalancer{},
			BatchTimeout:           cfg.BatchTimeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		newReader: func(rc kafka.ReaderConfig) messageReader { return kafka.NewReader(rc) },
	}, nil
}

// Broadcast escribe data como un mensaje del tópico.
func (b *Broadcaster) Broadcast(ctx context.Context, data []byte) error {
	msg := kafka.Message{
		Value:   data,
		Headers: []kafka.Header{{Key: "content-type", Value: []byte("application/json")}},
		Time:    time.Now().UTC(),
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", b.cfg.Topic, err)
	}
	return nil
}

// Listen lee el tópico y entrega cada mensaje hasta que ctx termina.
func (b *Broadcaster) Listen(ctx context.Context, handle func(data []byte)) error {
	reader := b.newReader(b.readerConfig())
	defer reader.Close()
	log.Info().Str("topic", b.cfg.Topic).Strs("brokers", b.cfg.Brokers).Msg("bus: escuchando kafka")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("kafka read %s: %w", b.cfg.Topic, err)
		}
		handle(msg.Value)
	}
}

func (b *Broadcaster) readerConfig() kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:     b.cfg.Brokers,
		Topic:       b.cfg.Topic,
		Partition:   eventPartition,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     b.cfg.MaxWait,
	}
}

// Close cierra el writer.
func (b *Broadcaster) Close() error {
	return b.writer.Close()
}
