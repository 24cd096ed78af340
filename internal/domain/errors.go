package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrForbidden         = errors.New("acceso denegado")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrInsufficientStock = errors.New("stock insuficiente")

	// Idempotencia
	ErrRequestInProgress     = errors.New("una petición con esta clave de idempotencia está en curso")
	ErrInvalidIdempotencyKey = errors.New("clave de idempotencia inválida")

	// Conteo de inventario
	ErrStockCountApplied = errors.New("el conteo ya fue aplicado")
	ErrAmbiguousScan     = errors.New("el código escaneado coincide con varios productos")

	// Kits / bundles
	ErrBundleEmpty         = errors.New("el kit no tiene componentes")
	ErrBundleSelfReference = errors.New("un kit no puede contenerse a sí mismo")

	// Infraestructura compartida
	ErrRateLimited = errors.New("demasiadas peticiones")
	ErrJobFailed   = errors.New("el job agotó sus reintentos")
)

// ErrorKind clasifica un error en la taxonomía que ven los clientes (HTTP, CLI, jobs).
type ErrorKind string

const (
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindConflict     ErrorKind = "CONFLICT"
	KindBadRequest   ErrorKind = "BAD_REQUEST"
	KindRateLimited  ErrorKind = "RATE_LIMITED"
	KindJobFailed    ErrorKind = "JOB_FAILED"
	KindUnauthorized ErrorKind = "UNAUTHORIZED"
	KindForbidden    ErrorKind = "FORBIDDEN"
	KindInternal     ErrorKind = "INTERNAL"
)

// Kind devuelve la categoría del error. Los errores no reconocidos son internos.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrRequestInProgress),
		errors.Is(err, ErrStockCountApplied):
		return KindConflict
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidIdempotencyKey),
		errors.Is(err, ErrAmbiguousScan),
		errors.Is(err, ErrBundleEmpty),
		errors.Is(err, ErrBundleSelfReference):
		return KindBadRequest
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrJobFailed):
		return KindJobFailed
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	default:
		return KindInternal
	}
}
