package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/examind/examind-api/internal/dto"
	"github.com/examind/examind-api/internal/handler"
	"github.com/examind/examind-api/internal/service"
)

type mockExamService struct {
	startResponse  dto.StartTestResponse
	submitResponse dto.SubmitTestResponse
	results        []dto.AttemptResponse
	err            error

	lastStudentID uint
	lastTestID    uint
	lastSubmit    dto.SubmitTestRequest
	lastBeacon    dto.BeaconSubmitRequest
}

func (m *mockExamService) StartTest(_ context.Context, studentID, testID uint) (dto.StartTestResponse, error) {
	m.lastStudentID, m.lastTestID = studentID, testID
	if m.err != nil {
		return dto.StartTestResponse{}, m.err
	}
	return m.startResponse, nil
}

func (m *mockExamService) Submit(_ context.Context, studentID, testID uint, payload dto.SubmitTestRequest) (dto.SubmitTestResponse, error) {
	m.lastStudentID, m.lastTestID, m.lastSubmit = studentID, testID, payload
	if m.err != nil {
		return dto.SubmitTestResponse{}, m.err
	}
	return m.submitResponse, nil
}

func (m *mockExamService) SubmitWithBeacon(_ context.Context, testID uint, payload dto.BeaconSubmitRequest) (dto.SubmitTestResponse, error) {
	m.lastTestID, m.lastBeacon = testID, payload
	if m.err != nil {
		return dto.SubmitTestResponse{}, m.err
	}
	return m.submitResponse, nil
}

func (m *mockExamService) ListResults(_ context.Context, studentID, testID uint) ([]dto.AttemptResponse, error) {
	m.lastStudentID, m.lastTestID = studentID, testID
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

func (m *mockExamService) AutoSubmit(uint, uint, []dto.SubmittedAnswer, int) {}

func newExamApp(svc service.ExamService, authenticated bool) *fiber.App {
	app := fiber.New()
	logger := zerolog.New(io.Discard)

	group := app.Group("/api/v1/exams", func(c *fiber.Ctx) error {
		if authenticated {
			c.Locals("user_id", uint(100))
			c.Locals("user_role", "student")
		}
		return c.Next()
	})
	h := handler.NewExamHandler(svc, logger)
	h.Register(group)
	h.RegisterBeacon(app.Group("/api/v1/exams"))
	return app
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

func TestExamHandler_StartSuccess(t *testing.T) {
	svc := &mockExamService{startResponse: dto.StartTestResponse{
		TestID:           7,
		Title:            "Basics",
		TimeLimitMinutes: 30,
		AttemptNumber:    1,
		Questions:        []dto.QuestionView{{ID: 1, Prompt: "Pick"}},
	}}
	app := newExamApp(svc, true)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/exams/7/start", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool                  `json:"success"`
		Data    dto.StartTestResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, uint(7), response.Data.TestID)
	require.Equal(t, uint(100), svc.lastStudentID)
}

func TestExamHandler_StartRequiresAuth(t *testing.T) {
	svc := &mockExamService{}
	app := newExamApp(svc, false)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/exams/7/start", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestExamHandler_StartInvalidID(t *testing.T) {
	svc := &mockExamService{}
	app := newExamApp(svc, true)

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/exams/abc/start", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestExamHandler_SubmitForwardsPayload(t *testing.T) {
	submittedAt := time.Now().UTC()
	svc := &mockExamService{submitResponse: dto.SubmitTestResponse{
		AttemptNumber: 1, Score: 2, Percentage: 100, CorrectAnswers: 2, TotalQuestions: 2, SubmittedAt: submittedAt,
	}}
	app := newExamApp(svc, true)

	optionID := uint(11)
	payload := dto.SubmitTestRequest{
		Answers: []dto.SubmittedAnswer{{QuestionID: 1, OptionID: &optionID}},
	}
	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/exams/7/submit", payload))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Equal(t, uint(7), svc.lastTestID)
	require.Len(t, svc.lastSubmit.Answers, 1)
	require.Equal(t, uint(11), *svc.lastSubmit.Answers[0].OptionID)
}

func TestExamHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "not found", err: service.ErrTestNotFound, statusCode: fiber.StatusNotFound},
		{name: "not assigned", err: service.ErrNotAssigned, statusCode: fiber.StatusForbidden},
		{name: "deadline", err: service.ErrDeadlinePassed, statusCode: fiber.StatusForbidden},
		{name: "attempts", err: service.ErrAttemptsExhausted, statusCode: fiber.StatusForbidden},
		{name: "duplicate", err: service.ErrDuplicateAttempt, statusCode: fiber.StatusConflict},
		{name: "session", err: service.ErrSessionActive, statusCode: fiber.StatusConflict},
		{name: "generic", err: errors.New("boom"), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockExamService{err: tc.err}
			app := newExamApp(svc, true)

			resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/exams/7/submit", dto.SubmitTestRequest{}))
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)
		})
	}
}

func TestExamHandler_BeaconDoesNotRequireBearer(t *testing.T) {
	svc := &mockExamService{submitResponse: dto.SubmitTestResponse{AttemptNumber: 1}}
	app := newExamApp(svc, false)

	payload := dto.BeaconSubmitRequest{Token: "token-in-body"}
	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/exams/7/submit-beacon", payload))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "token-in-body", svc.lastBeacon.Token)
}

func TestExamHandler_BeaconRejectedCredential(t *testing.T) {
	svc := &mockExamService{err: service.ErrBeaconAuth}
	app := newExamApp(svc, false)

	payload := dto.BeaconSubmitRequest{Token: "bad"}
	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/api/v1/exams/7/submit-beacon", payload))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestExamHandler_Results(t *testing.T) {
	svc := &mockExamService{results: []dto.AttemptResponse{
		{AttemptNumber: 1, Score: 1},
		{AttemptNumber: 2, Score: 2},
	}}
	app := newExamApp(svc, true)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/exams/7/results", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Success bool                  `json:"success"`
		Data    []dto.AttemptResponse `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Len(t, response.Data, 2)
}
