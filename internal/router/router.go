package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/examind/examind-api/internal/config"
	"github.com/examind/examind-api/internal/handler"
	"github.com/examind/examind-api/internal/middleware"
	"github.com/examind/examind-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ExamHandler         *handler.ExamHandler
	SessionHandler      *handler.SessionHandler
	TestHandler         *handler.TestHandler
	AssignmentHandler   *handler.AssignmentHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
	SubmitRateLimit     int
	SubmitRateWindow    time.Duration
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Student exam flow. The beacon route stays outside the bearer middleware
	// since the credential travels in the body.
	if deps.ExamHandler != nil {
		exams := app.Group("/api/v1/exams", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleStudent))
		exams.Use("/:id/submit", middleware.RateLimit("exam-submit", deps.SubmitRateLimit, deps.SubmitRateWindow))
		deps.ExamHandler.Register(exams)

		beacon := app.Group("/api/v1/exams",
			middleware.RateLimit("exam-beacon", deps.SubmitRateLimit, deps.SubmitRateWindow))
		deps.ExamHandler.RegisterBeacon(beacon)
	}

	// Timed session channel
	if deps.SessionHandler != nil {
		sessions := app.Group("/api/v1/sessions", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleStudent))
		deps.SessionHandler.Register(sessions)
	}

	// Admin authoring & assignment management
	if deps.TestHandler != nil {
		tests := app.Group("/api/v1/admin/tests", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleAdmin))
		deps.TestHandler.Register(tests)
	}
	if deps.AssignmentHandler != nil {
		assignments := app.Group("/api/v1/admin/assignments", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleAdmin))
		deps.AssignmentHandler.Register(assignments)
	}

	// Notification centre
	if deps.NotificationHandler != nil {
		notifications := app.Group("/api/v1/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}
}
