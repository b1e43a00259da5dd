package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope every endpoint returns. Data carries the
// operation payload (an attempt, a graded result, an assignment roster);
// Message is a short human-readable outcome; Success mirrors the HTTP
// status class so stream clients parsing buffered bodies need not keep it.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

func send(c *fiber.Ctx, status int, success bool, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Success: success,
		Data:    data,
		Message: message,
	})
}

// SendSuccess wraps data in the envelope with a 200 status.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus wraps data in the envelope using the given status,
// for endpoints that create resources or accept work asynchronously.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if message == "" {
		message = "success"
	}

	return send(c, status, true, message, data)
}

// SendError returns the envelope with Success false and no data. Service
// errors are translated to a status by the handler layer before reaching
// here; the message is safe to show to exam takers.
func SendError(c *fiber.Ctx, status int, message string) error {
	if message == "" {
		message = "error"
	}

	return send(c, status, false, message, nil)
}
