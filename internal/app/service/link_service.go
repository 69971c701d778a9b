package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sifan077/LinkPulse/internal/app/cache"
	"github.com/sifan077/LinkPulse/internal/app/metrics"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/sifan077/LinkPulse/internal/app/repository"
	"github.com/sifan077/LinkPulse/internal/app/shortcode"
	"github.com/sifan077/LinkPulse/internal/app/urlutil"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	clickTimeout     = 2 * time.Second
)

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	Shorten(ctx context.Context, input ShortenInput) (*ShortenResult, error)
	Resolve(ctx context.Context, code string) (*model.Link, error)
	Visit(ctx context.Context, code, ip, userAgent string) (*model.Link, error)
	RecordVisit(ctx context.Context, code, ip, userAgent string)
	ListLinks(ctx context.Context, ownerID string, page, limit int) (*LinkPage, error)
	UpdateLink(ctx context.Context, code, ownerID string, input UpdateLinkInput) (*model.Link, error)
	DeleteLink(ctx context.Context, code, ownerID string) error
	OwnerStats(ctx context.Context, ownerID string) (*Dashboard, error)
	LinkStats(ctx context.Context, code, requesterID string) (*LinkStats, error)
}

// LinkCache is the cache-aside store consulted by Resolve. *cache.LinkCache implements it.
type LinkCache interface {
	Get(ctx context.Context, code string) (*model.Link, error)
	Set(ctx context.Context, link *model.Link) error
	Delete(ctx context.Context, code string) error
	IsMissing(ctx context.Context, code string) (bool, error)
	SetMissing(ctx context.Context, code string) error
}

// Config holds the service tunables.
type Config struct {
	MaxURLLength int
	TopN         int
	Location     *time.Location
}

// Deps groups the service collaborators. Links and Generator are required.
type Deps struct {
	Links     repository.LinkRepository
	Generator *shortcode.Generator
	Cache     LinkCache
	// Clicks receives visit events; nil records them directly through a ClickTracker.
	Clicks  ClickSink
	Metrics metrics.Recorder
	Logger  *zap.Logger
	Config  Config
	Now     func() time.Time
}

type linkService struct {
	links     repository.LinkRepository
	generator *shortcode.Generator
	cache     LinkCache
	clicks    ClickSink
	stats     *StatsAggregator
	metrics   metrics.Recorder
	logger    *zap.Logger
	cfg       Config
	now       func() time.Time
}

// NewLinkService returns a service implementation backed by deps.
func NewLinkService(deps Deps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	cfg := deps.Config
	if cfg.MaxURLLength <= 0 {
		cfg.MaxURLLength = urlutil.DefaultMaxLength
	}
	clicks := deps.Clicks
	if clicks == nil {
		clicks = NewClickTracker(deps.Links, recorder, logger)
	}

	return &linkService{
		links:     deps.Links,
		generator: deps.Generator,
		cache:     deps.Cache,
		clicks:    clicks,
		stats:     NewStatsAggregator(cfg.TopN, cfg.Location),
		metrics:   recorder,
		logger:    logger.Named("links"),
		cfg:       cfg,
		now:       now,
	}
}

// ShortenInput captures data required to shorten a URL.
type ShortenInput struct {
	URL        string
	CustomCode string
	OwnerID    string
}

// ShortenResult is the outcome of Shorten. IsNewlyCreated is false when an
// existing link for the same URL and owner was returned.
type ShortenResult struct {
	Link           *model.Link
	Code           string
	OriginalURL    string
	IsNewlyCreated bool
}

// UpdateLinkInput captures fields the owner can change. ClearExpiry removes any expiry.
type UpdateLinkInput struct {
	IsActive    *bool
	ExpiresAt   *time.Time
	ClearExpiry bool
}

// LinkPage is one page of an owner's links, newest first.
type LinkPage struct {
	Links []LinkSummary
	Page  int
	Limit int
	Pages int
	Total int64
}

func (s *linkService) Shorten(ctx context.Context, input ShortenInput) (*ShortenResult, error) {
	raw := strings.TrimSpace(input.URL)
	if raw == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	if err := urlutil.CheckLength(raw, s.cfg.MaxURLLength); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	normalized := urlutil.Normalize(raw)
	if err := urlutil.Validate(normalized); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	custom := strings.TrimSpace(input.CustomCode)
	if custom != "" {
		if err := shortcode.ValidateCustom(custom); err != nil {
			if errors.Is(err, shortcode.ErrReservedCode) {
				return nil, fmt.Errorf("%w: %s", ErrCodeReserved, custom)
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidCode, err)
		}
		taken, err := s.links.CodeExists(ctx, custom)
		if err != nil {
			return nil, fmt.Errorf("check custom code: %w", err)
		}
		if taken {
			return nil, fmt.Errorf("%w: %s", ErrCodeTaken, custom)
		}
	}

	fingerprint := urlutil.Fingerprint(normalized, input.OwnerID)
	existing, err := s.findExisting(ctx, normalized, fingerprint, input.OwnerID)
	if err != nil {
		// The duplicate check is an optimization; a failed lookup only costs a new code.
		s.logger.Warn("duplicate lookup failed", zap.String("fingerprint", fingerprint), zap.Error(err))
	}
	if existing != nil {
		s.metrics.IncLinkDeduplicated()
		s.logger.Debug("returning existing link",
			zap.String("code", existing.Code),
			zap.String("owner_id", input.OwnerID),
		)
		return &ShortenResult{
			Link:           existing,
			Code:           existing.Code,
			OriginalURL:    existing.OriginalURL,
			IsNewlyCreated: false,
		}, nil
	}

	link := &model.Link{
		OriginalURL: normalized,
		Fingerprint: fingerprint,
		OwnerID:     model.OwnerRef(input.OwnerID),
		IsActive:    true,
	}
	insert := func(ctx context.Context, code string) error {
		link.Code = code
		return s.links.InsertUnique(ctx, link)
	}

	if custom != "" {
		if err := insert(ctx, custom); err != nil {
			if errors.Is(err, repository.ErrCodeConflict) {
				return nil, fmt.Errorf("%w: %s", ErrCodeTaken, custom)
			}
			return nil, fmt.Errorf("create link: %w", err)
		}
		s.generator.Remember(custom)
	} else if _, err := s.generator.Allocate(ctx, insert); err != nil {
		return nil, fmt.Errorf("allocate code: %w", err)
	}

	s.invalidate(ctx, link.Code)
	s.metrics.IncLinkCreated()
	s.logger.Info("link created",
		zap.String("code", link.Code),
		zap.String("owner_id", input.OwnerID),
		zap.Bool("custom", custom != ""),
	)

	return &ShortenResult{
		Link:           link,
		Code:           link.Code,
		OriginalURL:    link.OriginalURL,
		IsNewlyCreated: true,
	}, nil
}

// findExisting confirms fingerprint hits by exact URL equality; the fingerprint is only the index.
func (s *linkService) findExisting(ctx context.Context, normalized, fingerprint, ownerID string) (*model.Link, error) {
	candidates, err := s.links.FindByFingerprintOrURL(ctx, fingerprint, normalized, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if candidates[i].OriginalURL == normalized {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

func (s *linkService) Resolve(ctx context.Context, code string) (*model.Link, error) {
	start := time.Now()
	link, err := s.resolve(ctx, code)
	s.metrics.ObserveRedirectDuration(time.Since(start))

	switch {
	case err == nil:
		s.metrics.IncRedirect("ok")
	case errors.Is(err, ErrNotFound):
		s.metrics.IncRedirect("not_found")
	case errors.Is(err, ErrExpired):
		s.metrics.IncRedirect("expired")
	default:
		s.metrics.IncRedirect("error")
	}
	return link, err
}

func (s *linkService) resolve(ctx context.Context, code string) (*model.Link, error) {
	link, err := s.lookup(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve link: %w", err)
	}
	if !link.IsActive {
		return nil, ErrNotFound
	}
	if link.IsExpired(s.now()) {
		return nil, ErrExpired
	}
	return link, nil
}

// lookup reads through the cache when one is configured. Cache failures fall back to the store.
func (s *linkService) lookup(ctx context.Context, code string) (*model.Link, error) {
	if s.cache == nil {
		return s.links.FindByCode(ctx, code)
	}

	cached, err := s.cache.Get(ctx, code)
	if err == nil {
		s.metrics.IncRedirectCacheHit()
		return cached, nil
	}
	s.metrics.IncRedirectCacheMiss()
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("cache read failed", zap.String("code", code), zap.Error(err))
	} else if missing, err := s.cache.IsMissing(ctx, code); err == nil && missing {
		return nil, repository.ErrLinkNotFound
	}

	link, err := s.links.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrLinkNotFound) {
		if err := s.cache.SetMissing(ctx, code); err != nil {
			s.logger.Warn("negative cache write failed", zap.String("code", code), zap.Error(err))
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, link); err != nil {
		s.logger.Warn("cache write failed", zap.String("code", code), zap.Error(err))
	}
	return link, nil
}

func (s *linkService) invalidate(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, code); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("code", code), zap.Error(err))
	}
}

func (s *linkService) Visit(ctx context.Context, code, ip, userAgent string) (*model.Link, error) {
	link, err := s.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	s.RecordVisit(ctx, code, ip, userAgent)
	return link, nil
}

// RecordVisit hands the click to the sink. Failures are logged and counted, never returned.
// The write is detached from ctx so a client hanging up mid-redirect does not drop the click.
func (s *linkService) RecordVisit(ctx context.Context, code, ip, userAgent string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clickTimeout)
	defer cancel()

	event := model.NewClickEvent(code, ip, userAgent, s.now())
	if err := s.clicks.Submit(ctx, event); err != nil {
		s.metrics.IncClickFailed()
		s.logger.Warn("failed to record click",
			zap.String("code", code),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
}

func (s *linkService) ListLinks(ctx context.Context, ownerID string, page, limit int) (*LinkPage, error) {
	if ownerID == "" {
		return nil, ErrForbidden
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	links, total, err := s.links.ListPageByOwner(ctx, ownerID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	now := s.now()
	summaries := make([]LinkSummary, 0, len(links))
	for i := range links {
		summaries = append(summaries, s.stats.Summary(&links[i], now))
	}

	return &LinkPage{
		Links: summaries,
		Page:  page,
		Limit: limit,
		Pages: int((total + int64(limit) - 1) / int64(limit)),
		Total: total,
	}, nil
}

func (s *linkService) UpdateLink(ctx context.Context, code, ownerID string, input UpdateLinkInput) (*model.Link, error) {
	link, err := s.owned(ctx, code, ownerID)
	if err != nil {
		return nil, err
	}

	if input.IsActive != nil {
		link.IsActive = *input.IsActive
	}
	switch {
	case input.ClearExpiry:
		link.ExpiresAt = nil
	case input.ExpiresAt != nil:
		expires := *input.ExpiresAt
		link.ExpiresAt = &expires
	}

	if err := s.links.Update(ctx, link); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update link: %w", err)
	}

	s.invalidate(ctx, code)
	s.metrics.IncLinkUpdated()
	s.logger.Info("link updated",
		zap.String("code", code),
		zap.String("owner_id", ownerID),
		zap.Bool("is_active", link.IsActive),
	)
	return link, nil
}

func (s *linkService) DeleteLink(ctx context.Context, code, ownerID string) error {
	if _, err := s.owned(ctx, code, ownerID); err != nil {
		return err
	}
	if err := s.links.Delete(ctx, code); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete link: %w", err)
	}

	s.invalidate(ctx, code)
	s.metrics.IncLinkDeleted()
	s.logger.Info("link deleted", zap.String("code", code), zap.String("owner_id", ownerID))
	return nil
}

// owned loads code and checks that ownerID may mutate it. Anonymous links have no owner to match.
func (s *linkService) owned(ctx context.Context, code, ownerID string) (*model.Link, error) {
	link, err := s.links.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get link: %w", err)
	}
	if ownerID == "" || !link.IsOwnedBy(ownerID) {
		return nil, ErrForbidden
	}
	return link, nil
}

func (s *linkService) OwnerStats(ctx context.Context, ownerID string) (*Dashboard, error) {
	if ownerID == "" {
		return nil, ErrForbidden
	}
	links, err := s.links.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list owner links: %w", err)
	}
	return s.stats.Summarize(links, s.now()), nil
}

// LinkStats is visible to anyone for anonymous links and only to the owner otherwise.
func (s *linkService) LinkStats(ctx context.Context, code, requesterID string) (*LinkStats, error) {
	link, err := s.links.FindByCodeWithClicks(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get link stats: %w", err)
	}
	if link.OwnerID != nil && !link.IsOwnedBy(requesterID) {
		return nil, ErrForbidden
	}
	return s.stats.Link(link, s.now()), nil
}
