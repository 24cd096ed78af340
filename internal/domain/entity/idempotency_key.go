package entity

import "time"

// Estados de un registro de idempotencia.
const (
	IdempotencyPending   = "PENDING"
	IdempotencyCompleted = "COMPLETED"
)

// IdempotencyScope es la tripleta que identifica una mutación deduplicable.
type IdempotencyScope struct {
	Key    string
	Route  string
	Caller string
}

// IdempotencyKey registra (key, route, caller) -> respuesta cacheada.
// Se crea PENDING antes de ejecutar el handler y se completa con la respuesta después.
// El core nunca lo borra; un job de retención externo puede podar los antiguos.
type IdempotencyKey struct {
	ID           string
	Key          string
	Route        string
	Caller       string
	Status       string
	Response     []byte
	ResponseHash string // sha256 hex de Response
	CreatedAt    time.Time
	CompletedAt  *time.Time
}

// IsCompleted informa si el handler ya terminó y la respuesta está disponible.
func (k *IdempotencyKey) IsCompleted() bool {
	return k.Status == IdempotencyCompleted
}
