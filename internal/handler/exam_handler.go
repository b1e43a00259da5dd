package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/examind/examind-api/internal/dto"
	"github.com/examind/examind-api/internal/service"
	"github.com/examind/examind-api/internal/utils"
)

// ExamHandler exposes the student-facing exam flow: start, submit, beacon
// submit and result review.
type ExamHandler struct {
	service service.ExamService
	logger  zerolog.Logger
}

// NewExamHandler constructs a handler instance.
func NewExamHandler(service service.ExamService, logger zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		service: service,
		logger:  logger.With().Str("component", "exam_handler").Logger(),
	}
}

// Register binds the authenticated student routes.
func (h *ExamHandler) Register(router fiber.Router) {
	router.Post("/:id/start", h.start)
	router.Post("/:id/submit", h.submit)
	router.Get("/:id/results", h.results)
}

// RegisterBeacon binds the credential-in-body submit route. It sits outside
// the bearer middleware because sendBeacon cannot set headers.
func (h *ExamHandler) RegisterBeacon(router fiber.Router) {
	router.Post("/:id/submit-beacon", h.submitBeacon)
}

func (h *ExamHandler) start(c *fiber.Ctx) error {
	testID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test id")
	}

	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	response, err := h.service.StartTest(requestContext(c), studentID, testID)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Uint("test_id", testID).Msg("start test rejected")
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "test started", response)
}

func (h *ExamHandler) submit(c *fiber.Ctx) error {
	testID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test id")
	}

	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.SubmitTestRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.Submit(requestContext(c), studentID, testID, payload)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Uint("test_id", testID).Msg("submission rejected")
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "test submitted", response)
}

func (h *ExamHandler) submitBeacon(c *fiber.Ctx) error {
	testID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test id")
	}

	var payload dto.BeaconSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	response, err := h.service.SubmitWithBeacon(requestContext(c), testID, payload)
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Uint("test_id", testID).Msg("beacon submission rejected")
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "test submitted", response)
}

func (h *ExamHandler) results(c *fiber.Ctx) error {
	testID, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid test id")
	}

	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	attempts, err := h.service.ListResults(requestContext(c), studentID, testID)
	if err != nil {
		return sendServiceError(c, err)
	}

	return utils.SendSuccess(c, "attempts", attempts)
}
