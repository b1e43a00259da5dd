package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examind/examind-api/internal/dto"
	"github.com/examind/examind-api/internal/service"
	"github.com/examind/examind-api/internal/utils"
)

// TestHandler exposes the admin authoring endpoints.
type TestHandler struct {
	service service.TestService
	logger  zerolog.Logger
}

// NewTestHandler constructs a handler instance.
func NewTestHandler(service service.TestService, logger zerolog.Logger) *TestHandler {
	return &TestHandler{
		service: service,
		logger:  logger.With().Str("component", "test_handler").Logger(),
	}
}

// Register binds the authoring routes.
func (h *TestHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id/questions", h.updateQuestions)
	router.Post("/:id/publish", h.publish)
}

func (h *TestHandler) list(c *fiber.Ctx) error {
	tests, err := h.service.List(requestContext(c))
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "tests", tests)
}

func (h *TestHandler) create(c *fiber.Ctx) error {
	var payload dto.TestCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	test, err := h.service.Create(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Msg("test creation rejected")
		return sendServiceError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "test created", test)
}

func (h *TestHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test id")
	}

	test, err := h.service.Get(requestContext(c), id)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "test", test)
}

func (h *TestHandler) updateQuestions(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test id")
	}

	var payload dto.TestQuestionsUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	test, err := h.service.UpdateQuestions(requestContext(c), id, payload)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Uint("test_id", id).Msg("question update rejected")
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "questions updated", test)
}

func (h *TestHandler) publish(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test id")
	}

	test, err := h.service.Publish(requestContext(c), id)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Uint("test_id", id).Msg("publish rejected")
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "test published", test)
}
