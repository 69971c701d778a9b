package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/service"
	"github.com/sifan077/LinkPulse/internal/http/middleware"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	// BaseURL prefixes codes in short_url fields.
	BaseURL string
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	baseURL     string
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
		baseURL:     strings.TrimRight(deps.BaseURL, "/"),
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router, writeGuards ...fiber.Handler) {
	api := router.Group("/api")
	{
		urls := api.Group("/urls")
		{
			urls.Post("/", append(append([]fiber.Handler{}, writeGuards...), h.Shorten)...)
			urls.Get("/", requireOwner, h.ListLinks)
			urls.Get("/:code/stats", h.LinkStats)
			urls.Patch("/:code", requireOwner, h.UpdateLink)
			urls.Delete("/:code", requireOwner, h.DeleteLink)
		}
		api.Get("/dashboard", requireOwner, h.Dashboard)
	}
}

func requireOwner(c *fiber.Ctx) error {
	if middleware.OwnerID(c) == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}
	return c.Next()
}

// ShortenRequest represents the request body for shortening a URL.
type ShortenRequest struct {
	URL        string `json:"url"`
	CustomCode string `json:"custom_code,omitempty"`
}

// LinkResponse represents a short link in API responses.
type LinkResponse struct {
	Code           string     `json:"code"`
	ShortURL       string     `json:"short_url"`
	OriginalURL    string     `json:"original_url"`
	IsActive       bool       `json:"is_active"`
	TotalClicks    int64      `json:"total_clicks"`
	ClicksToday    *int64     `json:"clicks_today,omitempty"`
	ClicksThisWeek *int64     `json:"clicks_this_week,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ShortenResponse is returned by POST /api/urls.
type ShortenResponse struct {
	LinkResponse
	IsNew bool `json:"is_new"`
}

func (h *APIHandler) linkResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		Code:        link.Code,
		ShortURL:    h.shortURL(link.Code),
		OriginalURL: link.OriginalURL,
		IsActive:    link.IsActive,
		TotalClicks: link.TotalClicks,
		ExpiresAt:   link.ExpiresAt,
		CreatedAt:   link.CreatedAt,
	}
}

func (h *APIHandler) summaryResponse(s service.LinkSummary) LinkResponse {
	today, week := s.ClicksToday, s.ClicksThisWeek
	return LinkResponse{
		Code:           s.Code,
		ShortURL:       h.shortURL(s.Code),
		OriginalURL:    s.OriginalURL,
		IsActive:       s.IsActive,
		TotalClicks:    s.TotalClicks,
		ClicksToday:    &today,
		ClicksThisWeek: &week,
		ExpiresAt:      s.ExpiresAt,
		CreatedAt:      s.CreatedAt,
	}
}

func (h *APIHandler) shortURL(code string) string {
	return h.baseURL + "/" + code
}

// Shorten handles POST /api/urls. It answers 201 for a new link and 200 when
// the caller already shortened the same URL.
func (h *APIHandler) Shorten(c *fiber.Ctx) error {
	var req ShortenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if strings.TrimSpace(req.URL) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url is required",
		})
	}

	owner := middleware.OwnerID(c)
	result, err := h.linkService.Shorten(c.UserContext(), service.ShortenInput{
		URL:        req.URL,
		CustomCode: req.CustomCode,
		OwnerID:    owner,
	})
	if err != nil {
		return writeError(c, h.logger, err, "failed to shorten url", zap.String("owner_id", owner))
	}

	status := fiber.StatusOK
	if result.IsNewlyCreated {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(ShortenResponse{
		LinkResponse: h.linkResponse(result.Link),
		IsNew:        result.IsNewlyCreated,
	})
}

// ListLinks handles GET /api/urls?page=&limit=
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	owner := middleware.OwnerID(c)
	page, err := h.linkService.ListLinks(c.UserContext(), owner, c.QueryInt("page", 1), c.QueryInt("limit", 10))
	if err != nil {
		return writeError(c, h.logger, err, "failed to list links", zap.String("owner_id", owner))
	}

	links := make([]LinkResponse, 0, len(page.Links))
	for _, s := range page.Links {
		links = append(links, h.summaryResponse(s))
	}

	return c.JSON(fiber.Map{
		"links": links,
		"pagination": fiber.Map{
			"page":  page.Page,
			"limit": page.Limit,
			"pages": page.Pages,
			"total": page.Total,
		},
	})
}

// UpdateLinkRequest represents the request body for updating a link.
// An explicit "expires_at": null removes the expiry.
type UpdateLinkRequest struct {
	IsActive  *bool      `json:"is_active,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// UpdateLink handles PATCH /api/urls/:code
func (h *APIHandler) UpdateLink(c *fiber.Ctx) error {
	code := c.Params("code")

	var req UpdateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	input := service.UpdateLinkInput{
		IsActive:    req.IsActive,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ExpiresAt == nil && explicitNull(c.Body(), "expires_at"),
	}
	if input.IsActive == nil && input.ExpiresAt == nil && !input.ClearExpiry {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "nothing to update",
		})
	}

	owner := middleware.OwnerID(c)
	link, err := h.linkService.UpdateLink(c.UserContext(), code, owner, input)
	if err != nil {
		return writeError(c, h.logger, err, "failed to update link", zap.String("code", code))
	}

	return c.JSON(h.linkResponse(link))
}

// DeleteLink handles DELETE /api/urls/:code
func (h *APIHandler) DeleteLink(c *fiber.Ctx) error {
	code := c.Params("code")
	if err := h.linkService.DeleteLink(c.UserContext(), code, middleware.OwnerID(c)); err != nil {
		return writeError(c, h.logger, err, "failed to delete link", zap.String("code", code))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LinkStats handles GET /api/urls/:code/stats
func (h *APIHandler) LinkStats(c *fiber.Ctx) error {
	code := c.Params("code")
	stats, err := h.linkService.LinkStats(c.UserContext(), code, middleware.OwnerID(c))
	if err != nil {
		return writeError(c, h.logger, err, "failed to load link stats", zap.String("code", code))
	}

	history := make([]fiber.Map, 0, len(stats.History))
	for _, click := range stats.History {
		history = append(history, fiber.Map{
			"ip":         click.IP,
			"user_agent": click.UserAgent,
			"timestamp":  click.Timestamp,
		})
	}

	return c.JSON(fiber.Map{
		"link":        h.summaryResponse(stats.LinkSummary),
		"windows":     windowsResponse(stats.Windows),
		"last_7_days": dailyResponse(stats.Last7Days),
		"history":     history,
	})
}

// Dashboard handles GET /api/dashboard
func (h *APIHandler) Dashboard(c *fiber.Ctx) error {
	owner := middleware.OwnerID(c)
	d, err := h.linkService.OwnerStats(c.UserContext(), owner)
	if err != nil {
		return writeError(c, h.logger, err, "failed to build dashboard", zap.String("owner_id", owner))
	}

	top := make([]fiber.Map, 0, len(d.TopLinks))
	for _, l := range d.TopLinks {
		top = append(top, fiber.Map{
			"code":         l.Code,
			"short_url":    h.shortURL(l.Code),
			"original_url": l.OriginalURL,
			"total_clicks": l.TotalClicks,
			"created_at":   l.CreatedAt,
		})
	}
	recent := make([]LinkResponse, 0, len(d.RecentLinks))
	for _, s := range d.RecentLinks {
		recent = append(recent, h.summaryResponse(s))
	}

	return c.JSON(fiber.Map{
		"total_urls":   d.TotalURLs,
		"total_clicks": d.TotalClicks,
		"windows":      windowsResponse(d.Windows),
		"top_links":    top,
		"last_7_days":  dailyResponse(d.Last7Days),
		"recent_links": recent,
		"generated_at": d.GeneratedAt,
	})
}

func windowsResponse(w service.WindowCounts) fiber.Map {
	return fiber.Map{
		"today":      w.Today,
		"this_week":  w.ThisWeek,
		"this_month": w.ThisMonth,
	}
}

func dailyResponse(days []service.DailyCount) []fiber.Map {
	out := make([]fiber.Map, 0, len(days))
	for _, d := range days {
		out = append(out, fiber.Map{"date": d.Date, "clicks": d.Clicks})
	}
	return out
}

// explicitNull reports whether body sets field to JSON null.
func explicitNull(body []byte, field string) bool {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return false
	}
	value, ok := raw[field]
	return ok && string(value) == "null"
}
