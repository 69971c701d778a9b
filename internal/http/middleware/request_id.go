package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	maxRequestIDLen = 128
)

// RequestID propagates the caller's X-Request-ID or generates a new one
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get(RequestIDHeader)
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = uuid.NewString()
		}
		c.Set(RequestIDHeader, rid)
		c.Locals(requestIDKey, rid)
		return c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID, or "".
func GetRequestID(c *fiber.Ctx) string {
	rid, _ := c.Locals(requestIDKey).(string)
	return rid
}

// requestFields are the fields every per-request log line carries.
func requestFields(c *fiber.Ctx) []zap.Field {
	fields := make([]zap.Field, 0, 4)
	fields = append(fields,
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
	)
	if rid := GetRequestID(c); rid != "" {
		fields = append(fields, zap.String("request_id", rid))
	}
	if owner := OwnerID(c); owner != "" {
		fields = append(fields, zap.String("owner_id", owner))
	}
	return fields
}
