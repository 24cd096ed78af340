package entity

import "time"

// Store representa una tienda o bodega de un tenant donde se mantiene inventario.
type Store struct {
	ID                 string    `json:"id"`
	TenantID           string    `json:"tenant_id"`
	Name               string    `json:"name"`
	AllowNegativeStock bool      `json:"allow_negative_stock"` // lo verifican los consumidores del ledger, no el ledger
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
