package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/LinkPulse/internal/app/service"
	"go.uber.org/zap"
)

// statusFor maps service errors onto HTTP statuses. Unknown errors are 500s and their
// text is not exposed to the client.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrInvalidCode),
		errors.Is(err, service.ErrCodeReserved):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrCodeTaken):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, service.ErrForbidden):
		return fiber.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrNotFound):
		return fiber.StatusNotFound, "short link not found"
	case errors.Is(err, service.ErrExpired):
		return fiber.StatusGone, "short link expired"
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}

func writeError(c *fiber.Ctx, logger *zap.Logger, err error, msg string, fields ...zap.Field) error {
	status, text := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logger.Error(msg, append(fields, zap.Error(err))...)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": text,
	})
}
