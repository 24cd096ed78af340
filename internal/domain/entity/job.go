package entity

import (
	"encoding/json"
	"time"
)

// DeadLetterJob es el registro terminal de un job que agotó todos sus intentos.
type DeadLetterJob struct {
	ID        string          `json:"id"`
	JobName   string          `json:"job_name"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Attempts  int             `json:"attempts"`
	LastError string          `json:"last_error"`
	CreatedAt time.Time       `json:"created_at"`
}

// JobLock es el token de exclusión mutua de un job. Expira solo si nadie lo libera.
type JobLock struct {
	Name      string
	Token     string
	ExpiresAt time.Time
}

// Expired informa si el lock ya no protege al job en el instante now.
func (l *JobLock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
