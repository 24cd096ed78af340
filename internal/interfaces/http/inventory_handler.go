package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/invorya-core/internal/application/dto"
	"github.com/jhoicas/invorya-core/internal/application/inventory"
	"github.com/jhoicas/invorya-core/internal/application/ledger"
	"github.com/jhoicas/invorya-core/internal/domain/entity"
)

// InventoryHandler movimientos, traslados y consulta de existencias (protegido).
type InventoryHandler struct {
	uc     *inventory.MovementUseCase
	ledger *ledger.Service
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(uc *inventory.MovementUseCase, l *ledger.Service) *InventoryHandler {
	return &InventoryHandler{uc: uc, ledger: l}
}

// RecordMovement godoc
// @Summary      Registrar movimiento manual
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string  false  "Clave de idempotencia"
// @Param        body  body  dto.RecordMovementRequest  true  "store_id, product_id, type, qty_delta"
// @Success      201   {object}  inventory.MovementResult
// @Success      200   {object}  inventory.MovementResult  "respuesta repetida (Idempotent-Replayed)"
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/movements [post]
func (h *InventoryHandler) RecordMovement(c *fiber.Ctx) error {
	var in dto.RecordMovementRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	res, replayed, err := h.uc.RecordMovement(c.UserContext(), inventory.RecordMovementInput{
		TenantID:       GetTenantID(c),
		StoreID:        in.StoreID,
		ProductID:      in.ProductID,
		VariantID:      in.VariantID,
		QtyDelta:       in.QtyDelta,
		Type:           in.Type,
		Note:           in.Note,
		ActorID:        GetUserID(c),
		IdempotencyKey: idempotencyKey(c),
		Caller:         callerID(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return respondMutation(c, res, replayed)
}

// Transfer godoc
// @Summary      Trasladar existencias entre tiendas
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string  false  "Clave de idempotencia"
// @Param        body  body  dto.TransferRequest  true  "from_store_id, to_store_id, product_id, quantity"
// @Success      201   {object}  inventory.TransferResult
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/transfers [post]
func (h *InventoryHandler) Transfer(c *fiber.Ctx) error {
	var in dto.TransferRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	res, replayed, err := h.uc.Transfer(c.UserContext(), inventory.TransferInput{
		TenantID:       GetTenantID(c),
		FromStoreID:    in.FromStoreID,
		ToStoreID:      in.ToStoreID,
		ProductID:      in.ProductID,
		VariantID:      in.VariantID,
		Quantity:       in.Quantity,
		Note:           in.Note,
		ActorID:        GetUserID(c),
		IdempotencyKey: idempotencyKey(c),
		Caller:         callerID(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return respondMutation(c, res, replayed)
}

// AdjustOnOrder godoc
// @Summary      Ajustar unidades en tránsito (órdenes de compra)
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AdjustOnOrderRequest  true  "store_id, product_id, delta"
// @Success      200   {object}  entity.InventorySnapshot
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/inventory/on-order [post]
func (h *InventoryHandler) AdjustOnOrder(c *fiber.Ctx) error {
	var in dto.AdjustOnOrderRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	snap, err := h.ledger.AdjustOnOrder(c.UserContext(), entity.SnapshotKey{
		TenantID:   GetTenantID(c),
		StoreID:    in.StoreID,
		ProductID:  in.ProductID,
		VariantKey: in.VariantID,
	}, in.Delta)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(snap)
}

// GetSnapshot godoc
// @Summary      Existencias de un producto en una tienda
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        store_id    path   string  true   "Tienda"
// @Param        product_id  path   string  true   "Producto"
// @Param        variant_id  query  string  false  "Variante"
// @Success      200  {object}  entity.InventorySnapshot
// @Router       /api/inventory/snapshots/{store_id}/{product_id} [get]
func (h *InventoryHandler) GetSnapshot(c *fiber.Ctx) error {
	snap, err := h.ledger.GetSnapshot(c.UserContext(), entity.SnapshotKey{
		TenantID:   GetTenantID(c),
		StoreID:    c.Params("store_id"),
		ProductID:  c.Params("product_id"),
		VariantKey: c.Query("variant_id"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(snap)
}

// ListSnapshots godoc
// @Summary      Existencias de una tienda
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        store_id  query  string  true   "Tienda"
// @Param        limit     query  int     false  "Límite (1-100)"
// @Param        offset    query  int     false  "Desplazamiento"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/inventory/snapshots [get]
func (h *InventoryHandler) ListSnapshots(c *fiber.Ctx) error {
	storeID := c.Query("store_id")
	if storeID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "store_id es obligatorio"})
	}
	page, ok, err := parsePage(c)
	if !ok {
		return err
	}
	list, err := h.ledger.ListSnapshots(c.UserContext(), GetTenantID(c), storeID, page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"items": list,
		"page":  dto.NewPageResponse(page, len(list)),
	})
}

// ListMovements godoc
// @Summary      Historial de movimientos
// @Description  Con reference_type y reference_id devuelve los movimientos de una operación
//
//	(conteo, ensamble, traslado). Con store_id y product_id devuelve el historial del producto.
//
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        reference_type  query  string  false  "STOCK_COUNT | BUNDLE_ASSEMBLY | TRANSFER | ..."
// @Param        reference_id    query  string  false  "ID de la operación"
// @Param        store_id        query  string  false  "Tienda"
// @Param        product_id      query  string  false  "Producto"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/inventory/movements [get]
func (h *InventoryHandler) ListMovements(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if refType, refID := c.Query("reference_type"), c.Query("reference_id"); refType != "" && refID != "" {
		list, err := h.ledger.ListMovementsByReference(c.UserContext(), tenantID, refType, refID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(fiber.Map{"items": list})
	}

	storeID, productID := c.Query("store_id"), c.Query("product_id")
	if storeID == "" || productID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code:    "VALIDATION",
			Message: "indique reference_type y reference_id, o store_id y product_id",
		})
	}
	page, ok, err := parsePage(c)
	if !ok {
		return err
	}
	list, err := h.ledger.ListMovementsByProduct(c.UserContext(), tenantID, storeID, productID, page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"items": list,
		"page":  dto.NewPageResponse(page, len(list)),
	})
}
