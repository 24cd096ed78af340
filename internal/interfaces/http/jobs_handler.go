package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/invorya-core/internal/application/dto"
	"github.com/jhoicas/invorya-core/internal/application/jobs"
)

// JobsHandler administración de jobs y dead letters (solo admin).
type JobsHandler struct {
	runner *jobs.Runner
}

// NewJobsHandler construye el handler.
func NewJobsHandler(runner *jobs.Runner) *JobsHandler {
	return &JobsHandler{runner: runner}
}

// attemptResponse forma JSON de jobs.AttemptResult.
type attemptResponse struct {
	Job      string `json:"job,omitempty"`
	Attempts int    `json:"attempts"`
	Result   any    `json:"result,omitempty"`
	Error    string `json:"error,omitempty"`
}

// List godoc
// @Summary      Jobs registrados
// @Tags         jobs
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/jobs [get]
func (h *JobsHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"items": h.runner.ListJobs()})
}

func jobPayload(c *fiber.Ctx) (json.RawMessage, bool, error) {
	if len(c.Body()) == 0 {
		return nil, true, nil
	}
	var in dto.RunJobRequest
	if err := c.BodyParser(&in); err != nil {
		return nil, false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Payload == nil {
		return nil, true, nil
	}
	raw, err := json.Marshal(in.Payload)
	if err != nil {
		return nil, false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "payload inválido"})
	}
	return raw, true, nil
}

// Run godoc
// @Summary      Ejecutar un job con exclusión mutua
// @Description  status=ok con los detalles del job; status=skipped con reason=locked si otra
//
//	ejecución tiene el lock, o reason=failed si agotó los intentos (queda en dead letters).
//
// @Tags         jobs
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        name  path  string             true   "Nombre del job"
// @Param        body  body  dto.RunJobRequest  false  "payload"
// @Success      200   {object}  jobs.RunResult
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/jobs/{name}/run [post]
func (h *JobsHandler) Run(c *fiber.Ctx) error {
	payload, ok, err := jobPayload(c)
	if !ok {
		return err
	}
	res, err := h.runner.RunJob(c.UserContext(), c.Params("name"), payload)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(res)
}

// Retry godoc
// @Summary      Reintentar un job sin lock ni dead letter
// @Tags         jobs
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        name  path  string             true   "Nombre del job"
// @Param        body  body  dto.RunJobRequest  false  "payload"
// @Success      200   {object}  attemptResponse
// @Failure      422   {object}  attemptResponse
// @Router       /api/jobs/{name}/retry [post]
func (h *JobsHandler) Retry(c *fiber.Ctx) error {
	payload, ok, err := jobPayload(c)
	if !ok {
		return err
	}
	name := c.Params("name")
	res, err := h.runner.RetryJob(c.UserContext(), name, payload)
	if err != nil {
		return writeError(c, err)
	}
	return writeAttempt(c, name, res)
}

// ListDeadLetters godoc
// @Summary      Dead letters, más recientes primero
// @Tags         jobs
// @Security     Bearer
// @Produce      json
// @Param        limit   query  int  false  "Límite (1-100)"
// @Param        offset  query  int  false  "Desplazamiento"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/jobs/dead-letters [get]
func (h *JobsHandler) ListDeadLetters(c *fiber.Ctx) error {
	page, ok, err := parsePage(c)
	if !ok {
		return err
	}
	list, err := h.runner.ListDeadLetters(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"items": list,
		"page":  dto.NewPageResponse(page, len(list)),
	})
}

// ReplayDeadLetter godoc
// @Summary      Reintentar un dead letter con su payload original
// @Description  Si el reintento tiene éxito el dead letter se elimina.
// @Tags         jobs
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del dead letter"
// @Success      200  {object}  attemptResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      422  {object}  attemptResponse
// @Router       /api/jobs/dead-letters/{id}/replay [post]
func (h *JobsHandler) ReplayDeadLetter(c *fiber.Ctx) error {
	res, err := h.runner.ReplayDeadLetter(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return writeAttempt(c, "", res)
}

func writeAttempt(c *fiber.Ctx, name string, res jobs.AttemptResult) error {
	body := attemptResponse{Job: name, Attempts: res.Attempts, Result: res.Result}
	if res.Err != nil {
		body.Error = res.Err.Error()
		return c.Status(fiber.StatusUnprocessableEntity).JSON(body)
	}
	return c.JSON(body)
}
