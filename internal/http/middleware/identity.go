package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	httpUtil "github.com/sifan077/LinkPulse/internal/http/util"
	"go.uber.org/zap"
)

const ownerIDKey = "owner_id"

// Identity resolves the optional bearer token into an owner id. Requests without
// a token continue anonymously; a present but invalid token is rejected.
func Identity(signer *httpUtil.TokenSigner, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authorization header must use the Bearer scheme",
			})
		}

		ownerID, err := signer.Validate(strings.TrimSpace(token))
		if err != nil {
			if !errors.Is(err, httpUtil.ErrInvalidToken) {
				logger.Error("failed to validate token", zap.Error(err))
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": httpUtil.ErrInvalidToken.Error(),
			})
		}

		c.Locals(ownerIDKey, ownerID)
		return c.Next()
	}
}

// OwnerID returns the authenticated owner or "" for anonymous requests.
func OwnerID(c *fiber.Ctx) string {
	owner, _ := c.Locals(ownerIDKey).(string)
	return owner
}
