package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/HassanDastagir/SpotCancerAI/internal/apperr"
	"github.com/HassanDastagir/SpotCancerAI/internal/http/middleware"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking
// internal errors.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// statusForKind maps pipeline error kinds to HTTP status codes.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindTimeout:
		return fiber.StatusGatewayTimeout
	case apperr.KindService:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// writeAppError translates a pipeline error into the standard envelope.
// Unclassified errors become a generic 500 so internals never leak.
func writeAppError(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	if kind == "" {
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
	return writeError(c, statusForKind(kind), string(kind), apperr.MessageOf(err))
}

// ErrorHandler returns a Fiber global error handler that standardizes
// error responses for errors escaping the handlers, including the ones
// raised by the auth middleware.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := ""
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
			message = e.Message
		}

		switch status {
		case fiber.StatusUnauthorized:
			if message == "" {
				message = "authentication required"
			}
			return writeError(c, status, "UNAUTHORIZED", message)
		case fiber.StatusBadRequest:
			return writeError(c, status, "VALIDATION_ERROR", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "VALIDATION_ERROR", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
