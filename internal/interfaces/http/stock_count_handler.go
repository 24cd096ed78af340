package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/invorya-core/internal/application/dto"
	"github.com/jhoicas/invorya-core/internal/application/inventory"
)

// StockCountHandler sesiones de conteo físico (protegido).
type StockCountHandler struct {
	uc *inventory.StockCountUseCase
}

// NewStockCountHandler construye el handler.
func NewStockCountHandler(uc *inventory.StockCountUseCase) *StockCountHandler {
	return &StockCountHandler{uc: uc}
}

// Create godoc
// @Summary      Abrir sesión de conteo
// @Tags         stock-counts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateStockCountRequest  true  "store_id, notes"
// @Success      201   {object}  entity.StockCount
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/stock-counts [post]
func (h *StockCountHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateStockCountRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	count, err := h.uc.Create(c.UserContext(), inventory.CreateStockCountInput{
		TenantID: GetTenantID(c),
		StoreID:  in.StoreID,
		Notes:    in.Notes,
		ActorID:  GetUserID(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(count)
}

// GetByID godoc
// @Summary      Sesión de conteo con sus líneas
// @Tags         stock-counts
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del conteo"
// @Success      200  {object}  entity.StockCount
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock-counts/{id} [get]
func (h *StockCountHandler) GetByID(c *fiber.Ctx) error {
	count, err := h.uc.Get(c.UserContext(), GetTenantID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(count)
}

// Scan godoc
// @Summary      Escanear un código en la sesión
// @Description  Resuelve código de barras, SKU o nombre. mode=set reemplaza la cantidad, mode=add la suma.
// @Tags         stock-counts
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                true  "ID del conteo"
// @Param        body  body  dto.ScanLineRequest  true  "code, quantity, mode"
// @Success      200   {object}  entity.StockCountLine
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock-counts/{id}/scan [post]
func (h *StockCountHandler) Scan(c *fiber.Ctx) error {
	var in dto.ScanLineRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	line, err := h.uc.ScanLine(c.UserContext(), inventory.ScanInput{
		TenantID: GetTenantID(c),
		CountID:  c.Params("id"),
		Code:     in.Code,
		Quantity: in.Quantity,
		Mode:     in.Mode,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(line)
}

// Apply godoc
// @Summary      Aplicar el conteo
// @Description  Genera un ajuste por cada línea con diferencia contra las existencias actuales.
// @Tags         stock-counts
// @Security     Bearer
// @Produce      json
// @Param        Idempotency-Key  header  string  true  "Clave de idempotencia"
// @Param        id   path  string  true  "ID del conteo"
// @Success      201  {object}  inventory.ApplyResult
// @Success      200  {object}  inventory.ApplyResult  "respuesta repetida (Idempotent-Replayed)"
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock-counts/{id}/apply [post]
func (h *StockCountHandler) Apply(c *fiber.Ctx) error {
	res, replayed, err := h.uc.Apply(c.UserContext(), inventory.ApplyInput{
		TenantID:       GetTenantID(c),
		CountID:        c.Params("id"),
		IdempotencyKey: idempotencyKey(c),
		Caller:         callerID(c),
		ActorID:        GetUserID(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return respondMutation(c, res, replayed)
}

// Report godoc
// @Summary      Reporte PDF del conteo
// @Tags         stock-counts
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path  string  true  "ID del conteo"
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock-counts/{id}/report [get]
func (h *StockCountHandler) Report(c *fiber.Ctx) error {
	id := c.Params("id")
	pdf, err := h.uc.Report(c.UserContext(), GetTenantID(c), id)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`inline; filename="conteo-%s.pdf"`, id))
	return c.Send(pdf)
}
