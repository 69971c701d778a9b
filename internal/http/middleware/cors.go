package middleware

import (
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	corsAllowMethods  = "GET, POST, PATCH, DELETE, OPTIONS"
	corsAllowHeaders  = "Origin, Content-Type, Accept, Authorization, " + RequestIDHeader
	corsExposeHeaders = "Content-Length, Content-Type, " + RequestIDHeader + ", X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset"
)

// CORS lets browser clients call the API. With no origins configured every
// origin is allowed; otherwise only a listed Origin is echoed back.
func CORS(allowOrigins ...string) fiber.Handler {
	wildcard := len(allowOrigins) == 0 || slices.Contains(allowOrigins, "*")

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		switch {
		case wildcard:
			c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		case origin != "" && slices.ContainsFunc(allowOrigins, func(o string) bool { return strings.EqualFold(o, origin) }):
			c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
			c.Vary(fiber.HeaderOrigin)
		default:
			c.Vary(fiber.HeaderOrigin)
		}

		c.Set(fiber.HeaderAccessControlAllowMethods, corsAllowMethods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, corsAllowHeaders)
		c.Set(fiber.HeaderAccessControlExposeHeaders, corsExposeHeaders)
		c.Set(fiber.HeaderAccessControlMaxAge, "86400")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}
