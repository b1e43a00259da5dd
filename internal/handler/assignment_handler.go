package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examind/examind-api/internal/dto"
	"github.com/examind/examind-api/internal/service"
	"github.com/examind/examind-api/internal/utils"
)

// AssignmentHandler exposes the admin assignment endpoints.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler constructs a handler instance.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register binds the assignment routes.
func (h *AssignmentHandler) Register(router fiber.Router) {
	router.Post("/", h.create)
	router.Get("/:id", h.get)
	router.Patch("/:id/students", h.reassign)
	router.Patch("/:id/due-date", h.extendDueDate)
	router.Get("/by-test/:testId", h.listByTest)
	router.Get("/by-test/:testId/summary", h.summary)
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.CreateOrMerge(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Uint("test_id", payload.TestID).Msg("assignment rejected")
		return sendServiceError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment saved", assignment)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	assignment, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "assignment", assignment)
}

func (h *AssignmentHandler) reassign(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	var payload dto.AssignmentReassignRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.Reassign(requestContext(c), id, payload)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Uint("assignment_id", id).Msg("reassignment rejected")
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "assignment updated", assignment)
}

func (h *AssignmentHandler) extendDueDate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid assignment id")
	}

	var payload dto.AssignmentDueDateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.ExtendDueDate(requestContext(c), id, payload)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Uint("assignment_id", id).Msg("due date change rejected")
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "due date updated", assignment)
}

func (h *AssignmentHandler) listByTest(c *fiber.Ctx) error {
	testID, err := parseIDParam(c, "testId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test id")
	}

	assignments, err := h.service.ListByTest(requestContext(c), testID)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "assignments", assignments)
}

func (h *AssignmentHandler) summary(c *fiber.Ctx) error {
	testID, err := parseIDParam(c, "testId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test id")
	}

	summary, err := h.service.SummaryByTest(requestContext(c), testID)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "assignment summary", summary)
}
