package util

import (
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
)

var forwardedHeaders = []string{"X-Real-IP", "X-Client-IP"}

// ClientIP returns the visitor address, preferring the first X-Forwarded-For hop,
// then X-Real-IP and X-Client-IP, then the socket peer.
func ClientIP(c *fiber.Ctx) string {
	if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := cleanIP(first); ip != "" {
			return ip
		}
	}
	for _, header := range forwardedHeaders {
		if ip := cleanIP(c.Get(header)); ip != "" {
			return ip
		}
	}
	return c.IP()
}

func cleanIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	if net.ParseIP(raw) == nil {
		return ""
	}
	return raw
}
