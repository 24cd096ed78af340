package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/invorya-core/internal/application/dto"
	"github.com/jhoicas/invorya-core/internal/domain"
	"github.com/rs/zerolog"
)

// errorCode código estable para el cliente. Los errores conocidos tienen código propio;
// el resto toma el de su categoría.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrRequestInProgress):
		return "REQUEST_IN_PROGRESS"
	case errors.Is(err, domain.ErrStockCountApplied):
		return "STOCK_COUNT_APPLIED"
	case errors.Is(err, domain.ErrDuplicate):
		return "DUPLICATE"
	case errors.Is(err, domain.ErrInvalidIdempotencyKey):
		return "INVALID_IDEMPOTENCY_KEY"
	case errors.Is(err, domain.ErrAmbiguousScan):
		return "AMBIGUOUS_SCAN"
	case errors.Is(err, domain.ErrBundleEmpty):
		return "BUNDLE_EMPTY"
	case errors.Is(err, domain.ErrBundleSelfReference):
		return "BUNDLE_SELF_REFERENCE"
	case errors.Is(err, domain.ErrInvalidInput):
		return "VALIDATION"
	}
	return string(domain.Kind(err))
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindConflict:
		return fiber.StatusConflict
	case domain.KindBadRequest:
		return fiber.StatusBadRequest
	case domain.KindRateLimited:
		return fiber.StatusTooManyRequests
	case domain.KindJobFailed:
		return fiber.StatusUnprocessableEntity
	case domain.KindUnauthorized:
		return fiber.StatusUnauthorized
	case domain.KindForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError traduce un error de dominio a status + dto.ErrorResponse.
// Los errores internos se registran y el cliente recibe un mensaje genérico.
func writeError(c *fiber.Ctx, err error) error {
	kind := domain.Kind(err)
	if kind == domain.KindInternal {
		zerolog.Ctx(c.UserContext()).Error().Err(err).Str("path", c.Path()).Msg("error interno")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno, intente más tarde"})
	}
	if errors.Is(err, domain.ErrRequestInProgress) {
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return c.Status(statusFor(kind)).JSON(dto.ErrorResponse{Code: errorCode(err), Message: err.Error()})
}
