package http

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jhoicas/invorya-core/internal/application/dto"
	"github.com/jhoicas/invorya-core/internal/application/ratelimit"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/jhoicas/invorya-core/pkg/logger"
	"github.com/jhoicas/invorya-core/pkg/metrics"
	"github.com/rs/zerolog"
)

// Cabeceras propias de la API.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// RequestContext deja en c.UserContext() un logger con request_id, tenant_id y user_id,
// registra cada petición al terminar y la cuenta en requests_total.
// Debe usarse DESPUÉS de requestid y AuthMiddleware.
func RequestContext(log *logger.Logger, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		rid, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
		ctx := log.WithRequest(c.UserContext(), logger.RequestFields{
			RequestID: rid,
			TenantID:  GetTenantID(c),
			UserID:    GetUserID(c),
		})
		c.SetUserContext(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		route := c.Method() + " " + c.Route().Path
		m.RecordRequest(route, strconv.Itoa(status))
		ev := zerolog.Ctx(ctx).Info()
		if status >= fiber.StatusInternalServerError {
			ev = zerolog.Ctx(ctx).Warn()
		}
		ev.Str("route", route).Int("status", status).Dur("latency", time.Since(start)).Msg("petición atendida")
		return err
	}
}

// RateLimit aplica el limitador por llamador y scope. Publica las cabeceras X-RateLimit-*
// y responde 429 cuando se supera el máximo de la ventana.
func RateLimit(l *ratelimit.Limiter, scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if l == nil {
			return c.Next()
		}
		d, err := l.Consume(c.UserContext(), callerID(c)+":"+scope)
		if err != nil && !errors.Is(err, domain.ErrRateLimited) {
			// el limitador ya degradó al contador local; si aun así falla no se bloquea la petición
			zerolog.Ctx(c.UserContext()).Warn().Err(err).Str("scope", scope).Msg("limitador no disponible")
			return c.Next()
		}
		c.Set(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
		c.Set(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
		c.Set(HeaderRateLimitReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
		if err != nil {
			retry := int(time.Until(d.ResetAt).Seconds()) + 1
			if retry < 1 {
				retry = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{Code: "RATE_LIMITED", Message: err.Error()})
		}
		return c.Next()
	}
}

// idempotencyKey lee la cabecera Idempotency-Key. La validación de formato la hace el motor.
func idempotencyKey(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(HeaderIdempotencyKey))
}

// respondMutation responde 201 para una ejecución nueva y 200 con Idempotent-Replayed
// cuando el resultado sale del registro de idempotencia.
func respondMutation(c *fiber.Ctx, result any, replayed bool) error {
	if replayed {
		c.Set(HeaderReplayed, "true")
		return c.Status(fiber.StatusOK).JSON(result)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}
