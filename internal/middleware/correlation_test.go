package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newCorrelationApp() *fiber.App {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(GetCorrelationID(c))
	})
	return app
}

func TestCorrelationIDEchoesCallerHeader(t *testing.T) {
	app := newCorrelationApp()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "attempt-42-refresh")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "attempt-42-refresh", resp.Header.Get(HeaderCorrelationID))
}

func TestCorrelationIDFallsBackToRequestID(t *testing.T) {
	app := newCorrelationApp()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "gateway-7")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "gateway-7", resp.Header.Get(HeaderCorrelationID))
}

func TestCorrelationIDGeneratedWhenAbsent(t *testing.T) {
	app := newCorrelationApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	id := resp.Header.Get(HeaderCorrelationID)
	_, parseErr := uuid.Parse(id)
	require.NoError(t, parseErr)
}

func TestCorrelationIDReplacesOversizedHeader(t *testing.T) {
	app := newCorrelationApp()

	oversized := strings.Repeat("a", maxCorrelationIDLength+1)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, oversized)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	id := resp.Header.Get(HeaderCorrelationID)
	require.NotEqual(t, oversized, id)
	_, parseErr := uuid.Parse(id)
	require.NoError(t, parseErr)
}

func TestSanitizeCorrelationID(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "clean", raw: "attempt-42", want: "attempt-42"},
		{name: "trimmed", raw: "  attempt-42  ", want: "attempt-42"},
		{name: "empty", raw: "", want: ""},
		{name: "control characters", raw: "bad\x00id", want: ""},
		{name: "non ascii", raw: "идентификатор", want: ""},
		{name: "oversized", raw: strings.Repeat("a", maxCorrelationIDLength+1), want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, sanitizeCorrelationID(tc.raw))
		})
	}
}

func TestContextWithCorrelationRoundTrip(t *testing.T) {
	ctx := ContextWithCorrelation(nil, " attempt-9 ")
	require.Equal(t, "attempt-9", CorrelationIDFromContext(ctx))

	require.Empty(t, CorrelationIDFromContext(ContextWithCorrelation(nil, "   ")))
}
