package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/invorya-core/internal/application/dto"
	"github.com/jhoicas/invorya-core/internal/application/inventory"
)

// BundleHandler recetas de kits y ensamble (protegido).
type BundleHandler struct {
	uc *inventory.BundleUseCase
}

// NewBundleHandler construye el handler.
func NewBundleHandler(uc *inventory.BundleUseCase) *BundleHandler {
	return &BundleHandler{uc: uc}
}

// ListComponents godoc
// @Summary      Componentes de un kit
// @Tags         bundles
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "Producto kit"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/bundles/{id}/components [get]
func (h *BundleHandler) ListComponents(c *fiber.Ctx) error {
	list, err := h.uc.ListComponents(c.UserContext(), GetTenantID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"items": list})
}

// AddComponent godoc
// @Summary      Agregar componente a un kit
// @Tags         bundles
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                          true  "Producto kit"
// @Param        body  body  dto.AddBundleComponentRequest  true  "component_product_id, quantity"
// @Success      201   {object}  entity.BundleComponent
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/bundles/{id}/components [post]
func (h *BundleHandler) AddComponent(c *fiber.Ctx) error {
	var in dto.AddBundleComponentRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	comp, err := h.uc.AddComponent(c.UserContext(), inventory.AddComponentInput{
		TenantID:           GetTenantID(c),
		BundleProductID:    c.Params("id"),
		ComponentProductID: in.ComponentProductID,
		ComponentVariantID: in.ComponentVariantID,
		Quantity:           in.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comp)
}

// RemoveComponent godoc
// @Summary      Quitar componente de un kit
// @Tags         bundles
// @Security     Bearer
// @Param        id            path  string  true  "Producto kit"
// @Param        component_id  path  string  true  "ID del componente"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/bundles/{id}/components/{component_id} [delete]
func (h *BundleHandler) RemoveComponent(c *fiber.Ctx) error {
	if err := h.uc.RemoveComponent(c.UserContext(), GetTenantID(c), c.Params("component_id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Assemble godoc
// @Summary      Ensamblar unidades de un kit
// @Tags         bundles
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string  true  "Clave de idempotencia"
// @Param        id    path  string                     true  "Producto kit"
// @Param        body  body  dto.AssembleBundleRequest  true  "store_id, quantity"
// @Success      201   {object}  inventory.AssembleResult
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/bundles/{id}/assemble [post]
func (h *BundleHandler) Assemble(c *fiber.Ctx) error {
	var in dto.AssembleBundleRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	res, replayed, err := h.uc.Assemble(c.UserContext(), inventory.AssembleInput{
		TenantID:        GetTenantID(c),
		StoreID:         in.StoreID,
		BundleProductID: c.Params("id"),
		Quantity:        in.Quantity,
		IdempotencyKey:  idempotencyKey(c),
		Caller:          callerID(c),
		ActorID:         GetUserID(c),
	})
	if err != nil {
		return writeError(c, err)
	}
	return respondMutation(c, res, replayed)
}
