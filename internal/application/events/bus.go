// Package events entrega eventos de dominio a suscriptores locales y, si hay backend
// compartido, a las demás réplicas.
//
// Los suscriptores locales se notifican siempre de forma síncrona dentro de Publish.
// Cada réplica se identifica con un origin; los sobres que vuelven con el origin propio
// se descartan para no entregar dos veces el mismo evento.
package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jhoicas/invorya-core/internal/domain/event"
	"github.com/jhoicas/invorya-core/pkg/metrics"
	"github.com/jhoicas/invorya-core/pkg/resilience"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Broadcaster transporte entre réplicas (Redis pub/sub, Kafka).
type Broadcaster interface {
	Broadcast(ctx context.Context, data []byte) error
	// Listen bloquea entregando cada mensaje recibido hasta que ctx termina.
	Listen(ctx context.Context, handle func(data []byte)) error
}

// Listener recibe cada evento publicado o recibido.
type Listener func(ctx context.Context, ev event.Event)

// Bus es seguro para uso concurrente.
type Bus struct {
	origin  string
	remote  Broadcaster
	breaker *resilience.Breaker
	metrics *metrics.Metrics

	mu        sync.RWMutex
	listeners map[uint64]Listener
	nextID    uint64
}

// Option configura el bus.
type Option func(*Bus)

// WithBroadcaster activa la difusión a otras réplicas.
func WithBroadcaster(b Broadcaster) Option {
	return func(bus *Bus) { bus.remote = b }
}

// WithOrigin fija el identificador de la réplica (por defecto un UUID por proceso).
func WithOrigin(origin string) Option {
	return func(bus *Bus) {
		if origin != "" {
			bus.origin = origin
		}
	}
}

// WithMetrics registra publicaciones, fallos y suscriptores.
func WithMetrics(m *metrics.Metrics) Option {
	return func(bus *Bus) { bus.metrics = m }
}

// NewBus construye el bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		origin:    uuid.New().String(),
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.remote != nil {
		b.breaker = resilience.NewBreaker(resilience.DefaultBreakerConfig("events"))
	}
	return b
}

// Origin identificador de esta réplica.
func (b *Bus) Origin() string {
	return b.origin
}

// Subscribe registra un listener y devuelve la función para darlo de baja.
func (b *Bus) Subscribe(l Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[id] = l
	n := len(b.listeners)
	b.mu.Unlock()
	b.metrics.SetActiveSubscriptions(n)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			n := len(b.listeners)
			b.mu.Unlock()
			b.metrics.SetActiveSubscriptions(n)
		})
	}
}

// Publish entrega el evento a los listeners locales y lo difunde al backend compartido.
// Un fallo de difusión se registra y se cuenta; nunca se devuelve al llamador.
func (b *Bus) Publish(ctx context.Context, ev event.Event) {
	b.deliver(ctx, ev)
	b.metrics.RecordEventPublished(string(ev.EventType()))
	if b.remote == nil {
		return
	}
	env, err := event.Wrap(b.origin, ev)
	if err == nil {
		var data []byte
		data, err = env.Marshal()
		if err == nil {
			err = b.breaker.Do(func() error { return b.remote.Broadcast(ctx, data) })
		}
	}
	if err != nil {
		b.metrics.RecordEventPublishFailure(string(ev.EventType()))
		zerolog.Ctx(ctx).Warn().Err(err).Str("event", string(ev.EventType())).Msg("bus: no se pudo difundir el evento")
	}
}

// Start escucha el backend compartido en segundo plano hasta que ctx termina.
// Sin backend no hace nada.
func (b *Bus) Start(ctx context.Context) {
	if b.remote == nil {
		return
	}
	go func() {
		if err := b.remote.Listen(ctx, func(data []byte) { b.HandleRemote(ctx, data) }); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("bus: la escucha del backend compartido terminó")
		}
	}()
}

// HandleRemote procesa un sobre recibido de otra réplica.
func (b *Bus) HandleRemote(ctx context.Context, data []byte) {
	env, err := event.UnmarshalEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Msg("bus: sobre descartado")
		return
	}
	if env.Origin == b.origin {
		return
	}
	ev, err := event.Decode(env)
	if err != nil {
		log.Warn().Err(err).Str("origin", env.Origin).Msg("bus: evento descartado")
		return
	}
	b.deliver(ctx, ev)
}

func (b *Bus) deliver(ctx context.Context, ev event.Event) {
	b.mu.RLock()
	ls := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		ls = append(ls, l)
	}
	b.mu.RUnlock()
	for _, l := range ls {
		l(ctx, ev)
	}
}
