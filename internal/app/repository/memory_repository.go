package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sifan077/LinkPulse/internal/app/model"
)

// memoryLinkRepository keeps links in process memory. A single mutex makes every
// operation, including AppendClick, atomic. Deleted codes stay reserved.
type memoryLinkRepository struct {
	mu      sync.RWMutex
	links   map[string]*model.Link
	order   []string
	deleted map[string]struct{}
	clicks  map[string]struct{}
	now     func() time.Time
}

// NewMemoryLinkRepository returns a LinkRepository for development and tests.
func NewMemoryLinkRepository() LinkRepository {
	return &memoryLinkRepository{
		links:   make(map[string]*model.Link),
		deleted: make(map[string]struct{}),
		clicks:  make(map[string]struct{}),
		now:     time.Now,
	}
}

func (r *memoryLinkRepository) InsertUnique(ctx context.Context, link *model.Link) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[link.Code]; ok {
		return ErrCodeConflict
	}
	if _, ok := r.deleted[link.Code]; ok {
		return ErrCodeConflict
	}

	now := r.now()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	link.TotalClicks = int64(len(link.Clicks))

	r.links[link.Code] = link.Clone()
	r.order = append(r.order, link.Code)
	return nil
}

func (r *memoryLinkRepository) FindByCode(ctx context.Context, code string) (*model.Link, error) {
	link, err := r.FindByCodeWithClicks(ctx, code)
	if err != nil {
		return nil, err
	}
	link.Clicks = nil
	return link, nil
}

func (r *memoryLinkRepository) FindByCodeWithClicks(ctx context.Context, code string) (*model.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[code]
	if !ok {
		return nil, ErrLinkNotFound
	}
	return link.Clone(), nil
}

func (r *memoryLinkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.links[code]; ok {
		return true, nil
	}
	_, ok := r.deleted[code]
	return ok, nil
}

func (r *memoryLinkRepository) FindByFingerprintOrURL(ctx context.Context, fingerprint, url, ownerID string) ([]model.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []model.Link
	for _, code := range r.order {
		link, ok := r.links[code]
		if !ok || link.Owner() != ownerID {
			continue
		}
		if link.Fingerprint == fingerprint || link.OriginalURL == url {
			cp := link.Clone()
			cp.Clicks = nil
			result = append(result, *cp)
		}
	}
	return result, nil
}

func (r *memoryLinkRepository) AppendClick(ctx context.Context, code string, click *model.Click) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	prepareClick(code, click)

	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[code]
	if !ok {
		return ErrLinkNotFound
	}
	if _, seen := r.clicks[click.ID]; seen {
		return ErrDuplicateClick
	}
	stored := *click
	stored.ID = strings.Clone(click.ID)
	stored.LinkCode = strings.Clone(code)
	stored.IP = strings.Clone(click.IP)
	stored.UserAgent = strings.Clone(click.UserAgent)

	r.clicks[stored.ID] = struct{}{}
	link.Clicks = append(link.Clicks, stored)
	link.TotalClicks = int64(len(link.Clicks))
	return nil
}

func (r *memoryLinkRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.ownedLocked(ownerID), nil
}

func (r *memoryLinkRepository) ListPageByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	owned := r.ownedLocked(ownerID)
	r.mu.RUnlock()

	sort.SliceStable(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	total := int64(len(owned))
	if offset >= len(owned) {
		return []model.Link{}, total, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], total, nil
}

// ownedLocked returns clones of the owner's links in insertion order. Callers hold r.mu.
func (r *memoryLinkRepository) ownedLocked(ownerID string) []model.Link {
	result := make([]model.Link, 0)
	for _, code := range r.order {
		link, ok := r.links[code]
		if !ok || link.Owner() != ownerID {
			continue
		}
		result = append(result, *link.Clone())
	}
	return result
}

func (r *memoryLinkRepository) ListCodes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.links)+len(r.deleted))
	for code := range r.links {
		codes = append(codes, code)
	}
	for code := range r.deleted {
		codes = append(codes, code)
	}
	return codes, nil
}

func (r *memoryLinkRepository) Update(ctx context.Context, link *model.Link) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.links[link.Code]
	if !ok {
		return ErrLinkNotFound
	}
	stored.IsActive = link.IsActive
	stored.ExpiresAt = nil
	if link.ExpiresAt != nil {
		exp := *link.ExpiresAt
		stored.ExpiresAt = &exp
	}
	stored.UpdatedAt = r.now()

	*link = *stored.Clone()
	return nil
}

func (r *memoryLinkRepository) Delete(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[code]; !ok {
		return ErrLinkNotFound
	}
	delete(r.links, code)
	r.deleted[code] = struct{}{}

	for i, c := range r.order {
		if c == code {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
