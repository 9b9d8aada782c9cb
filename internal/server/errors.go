package server

import (
	"errors"
	"log/slog"

	"zing/internal/models"
	"zing/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch models.CodeOf(err) {
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeValidation, models.CodeSelfFollow, models.CodeDuplicate:
		return fiber.StatusBadRequest
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError writes err with the given status. Causes of internal
// errors are logged, not returned.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
	} else {
		response = ErrorResponse{
			Error: "Internal server error",
			Code:  models.CodeInternal,
		}
	}

	if status >= fiber.StatusInternalServerError {
		observability.Logger.ErrorContext(c.UserContext(), "request error",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}

	return c.Status(status).JSON(response)
}

// respondError writes err with the status its kind maps to.
func respondError(c *fiber.Ctx, err error) error {
	return RespondWithError(c, statusFor(err), err)
}

// errorHandler renders errors that escape handlers, including Fiber's own
// routing errors.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
	}
	return respondError(c, err)
}
