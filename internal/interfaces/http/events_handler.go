package http

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/invorya-core/internal/application/events"
	"github.com/jhoicas/invorya-core/internal/domain/event"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

const (
	sseBuffer    = 64
	sseHeartbeat = 15 * time.Second
)

// EventsHandler canal en vivo (Server-Sent Events) de los eventos del tenant.
type EventsHandler struct {
	bus      *events.Bus
	shutdown context.Context
}

// NewEventsHandler construye el handler. Las conexiones abiertas se cierran cuando shutdown termina.
func NewEventsHandler(bus *events.Bus, shutdown context.Context) *EventsHandler {
	if shutdown == nil {
		shutdown = context.Background()
	}
	return &EventsHandler{bus: bus, shutdown: shutdown}
}

// Stream godoc
// @Summary      Eventos de inventario en vivo
// @Description  inventory.updated, inventory.low_stock y purchase_order.updated del tenant del token.
// @Tags         events
// @Security     Bearer
// @Produce      text/event-stream
// @Success      200
// @Router       /api/events/stream [get]
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	log := zerolog.Ctx(c.UserContext()).With().Str("stream", "events").Logger()

	ch := make(chan event.Event, sseBuffer)
	unsubscribe := h.bus.Subscribe(func(_ context.Context, ev event.Event) {
		if eventTenant(ev) != tenantID {
			return
		}
		select {
		case ch <- ev:
		default:
			// cliente lento: se descarta el evento, el cliente puede reconsultar existencias
		}
	})

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		ticker := time.NewTicker(sseHeartbeat)
		defer ticker.Stop()

		if _, err := fmt.Fprint(w, ": conectado\n\n"); err != nil || w.Flush() != nil {
			return
		}
		for {
			select {
			case <-h.shutdown.Done():
				return
			case ev := <-ch:
				frame, err := sseFrame(ev)
				if err != nil {
					log.Warn().Err(err).Msg("evento no serializable")
					continue
				}
				if _, err := w.Write(frame); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					log.Debug().Msg("cliente SSE desconectado")
					return
				}
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil || w.Flush() != nil {
					log.Debug().Msg("cliente SSE desconectado")
					return
				}
			}
		}
	}))
	return nil
}

// sseFrame formato "event: <tipo>\ndata: <json>\n\n".
func sseFrame(ev event.Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.EventType(), data)), nil
}

func eventTenant(ev event.Event) string {
	switch e := ev.(type) {
	case event.InventoryUpdated:
		return e.TenantID
	case event.LowStockTriggered:
		return e.TenantID
	case event.PurchaseOrderUpdated:
		return e.TenantID
	default:
		return ""
	}
}
