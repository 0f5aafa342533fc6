package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the {success, data, message} envelope of every /api/v1 response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
}

// SendSuccess replies 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus replies with a success envelope and status, 200 when status is zero.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return send(c, status, true, orDefault(message, "success"), data)
}

// SendError replies with a failure envelope and no data.
func SendError(c *fiber.Ctx, status int, message string) error {
	return SendFailure(c, status, message, nil)
}

// SendFailure replies with a failure envelope that still carries data, such as a degraded
// health report.
func SendFailure(c *fiber.Ctx, status int, message string, data interface{}) error {
	return send(c, status, false, orDefault(message, "error"), data)
}

func send(c *fiber.Ctx, status int, success bool, message string, data interface{}) error {
	return c.Status(status).JSON(APIResponse{Success: success, Data: data, Message: message})
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}
