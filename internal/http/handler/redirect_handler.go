package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/LinkPulse/internal/app/service"
	httpUtil "github.com/sifan077/LinkPulse/internal/http/util"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency the health endpoint probes, e.g. *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	// Checks are probed by /health, keyed by dependency name.
	Checks map[string]Pinger
}

// RedirectHandler implements the redirect and health endpoints.
type RedirectHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	checks      map[string]Pinger
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:      logger,
		linkService: deps.LinkService,
		checks:      deps.Checks,
	}
}

// Register wires redirect routes onto the provided router. Register it last:
// /:code matches any single path segment.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
	router.Get("/:code", h.Resolve)
}

// Health reports the service status and each dependency check. Any failing check yields 503.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	checks := make(fiber.Map, len(h.checks))
	for name, pinger := range h.checks {
		if err := pinger.Ping(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "down"
			status = "degraded"
			continue
		}
		checks[name] = "up"
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"service": "LinkPulse",
		"status":  status,
		"checks":  checks,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:code: 302 to the original URL, 404 for unknown or
// inactive codes, 410 once the link has expired.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing link code",
		})
	}

	link, err := h.linkService.Visit(c.UserContext(), code, httpUtil.ClientIP(c), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return writeError(c, h.logger, err, "failed to resolve link", zap.String("code", code))
	}

	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", link.OriginalURL))
	c.Set(fiber.HeaderCacheControl, "private, max-age=0, no-cache")
	return c.Redirect(link.OriginalURL, fiber.StatusFound)
}
