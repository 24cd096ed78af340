// Package event define los eventos de dominio que publica el bus.
//
// Es un conjunto cerrado: cada tipo implementa Event y Decode conoce todos los tipos.
// Los suscriptores externos (canal en vivo de la UI, integraciones) consumen estos tipos.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Type discrimina la variante del evento.
type Type string

const (
	TypeInventoryUpdated     Type = "inventory.updated"
	TypePurchaseOrderUpdated Type = "purchase_order.updated"
	TypeLowStockTriggered    Type = "inventory.low_stock"
)

// Event es la unión etiquetada de eventos de dominio.
type Event interface {
	EventType() Type
	isEvent()
}

// InventoryUpdated indica que cambió el snapshot de un producto en una tienda.
type InventoryUpdated struct {
	TenantID  string `json:"tenant_id"`
	StoreID   string `json:"store_id"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
}

// PurchaseOrderUpdated lo publica el módulo de compras al cambiar el estado de una orden.
type PurchaseOrderUpdated struct {
	TenantID string `json:"tenant_id"`
	ID       string `json:"id"`
	Status   string `json:"status"`
}

// LowStockTriggered indica que las existencias bajaron del mínimo configurado del producto.
type LowStockTriggered struct {
	TenantID  string          `json:"tenant_id"`
	StoreID   string          `json:"store_id"`
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	OnHand    decimal.Decimal `json:"on_hand"`
	MinStock  decimal.Decimal `json:"min_stock"`
}

func (InventoryUpdated) EventType() Type     { return TypeInventoryUpdated }
func (PurchaseOrderUpdated) EventType() Type { return TypePurchaseOrderUpdated }
func (LowStockTriggered) EventType() Type    { return TypeLowStockTriggered }

func (InventoryUpdated) isEvent()     {}
func (PurchaseOrderUpdated) isEvent() {}
func (LowStockTriggered) isEvent()    {}

// Envelope es el formato de transporte en el backend compartido.
// Origin identifica el proceso que publicó, para suprimir el eco propio.
type Envelope struct {
	Origin  string          `json:"origin"`
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Wrap serializa el evento dentro de un sobre con el origen dado.
func Wrap(origin string, ev Event) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("event: serializar %s: %w", ev.EventType(), err)
	}
	return Envelope{Origin: origin, Type: ev.EventType(), Payload: payload}, nil
}

// Decode reconstruye el evento tipado a partir del sobre.
func Decode(env Envelope) (Event, error) {
	switch env.Type {
	case TypeInventoryUpdated:
		var ev InventoryUpdated
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("event: decodificar %s: %w", env.Type, err)
		}
		return ev, nil
	case TypePurchaseOrderUpdated:
		var ev PurchaseOrderUpdated
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("event: decodificar %s: %w", env.Type, err)
		}
		return ev, nil
	case TypeLowStockTriggered:
		var ev LowStockTriggered
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, fmt.Errorf("event: decodificar %s: %w", env.Type, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("event: tipo desconocido %q", env.Type)
	}
}

// Marshal serializa un sobre para el transporte.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope lee un sobre recibido del transporte.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("event: sobre inválido: %w", err)
	}
	return env, nil
}
