package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/LinkPulse/internal/app/service"
	inthttp "github.com/sifan077/LinkPulse/internal/http/handler"
	"github.com/sifan077/LinkPulse/internal/http/middleware"
	httpUtil "github.com/sifan077/LinkPulse/internal/http/util"
	"go.uber.org/zap"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	bodyLimit    = 64 * 1024
)

// Dependencies bundles what the HTTP server needs.
type Dependencies struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	Tokens      *httpUtil.TokenSigner
	BaseURL     string
	// CORSOrigins restricts browser origins; empty allows any.
	CORSOrigins []string
	// Checks are probed by /health.
	Checks map[string]inthttp.Pinger
	// RateLimiter guards link creation when set.
	RateLimiter middleware.Counter
	RateLimit   middleware.RateLimitConfig
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "LinkPulse",
		ReadTimeout:           readTimeout,
		WriteTimeout:          writeTimeout,
		IdleTimeout:           idleTimeout,
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		// Params and headers outlive the request in click logs and caches.
		Immutable: true,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	log := s.deps.Logger

	s.app.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.CORS(s.deps.CORSOrigins...),
		middleware.Logger(log.Named("http")),
		middleware.Identity(s.deps.Tokens, log),
	)

	var writeGuards []fiber.Handler
	if s.deps.RateLimiter != nil {
		writeGuards = append(writeGuards, middleware.RateLimit(s.deps.RateLimiter, s.deps.RateLimit, log))
	}

	apiHandler := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      log,
		LinkService: s.deps.LinkService,
		BaseURL:     s.deps.BaseURL,
	})
	apiHandler.Register(s.app, writeGuards...)

	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:      log,
		LinkService: s.deps.LinkService,
		Checks:      s.deps.Checks,
	})
	redirectHandler.Register(s.app)
}
