package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	httpUtil "github.com/sifan077/LinkPulse/internal/http/util"
	"go.uber.org/zap"
)

// Logger writes one access log entry per request. 5xx responses log at warn.
func Logger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		fields := append(requestFields(c),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", httpUtil.ClientIP(c)),
			zap.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		)

		switch {
		case err != nil:
			logger.Error("request error", append(fields, zap.Error(err))...)
		case status >= fiber.StatusInternalServerError:
			logger.Warn("request failed", fields...)
		default:
			logger.Info("request", fields...)
		}

		return err
	}
}
