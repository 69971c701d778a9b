package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sifan077/LinkPulse/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrCodeConflict signals that the code is already held by another link.
	ErrCodeConflict = errors.New("short code already exists")
	// ErrDuplicateClick signals that a click with the same ID was already recorded.
	ErrDuplicateClick = errors.New("click already recorded")
)

// LinkRepository is the record store consumed by the shortening engine.
// Code uniqueness is enforced by InsertUnique itself, never by callers.
type LinkRepository interface {
	InsertUnique(ctx context.Context, link *model.Link) error
	FindByCode(ctx context.Context, code string) (*model.Link, error)
	FindByCodeWithClicks(ctx context.Context, code string) (*model.Link, error)
	// CodeExists also reports codes of deleted links, which are never reissued.
	CodeExists(ctx context.Context, code string) (bool, error)
	// FindByFingerprintOrURL returns the owner's links matching either key, oldest first.
	FindByFingerprintOrURL(ctx context.Context, fingerprint, url, ownerID string) ([]model.Link, error)
	// AppendClick pushes click onto the log and bumps total_clicks as one atomic step.
	AppendClick(ctx context.Context, code string, click *model.Click) error
	// ListByOwner returns every link of the owner with clicks preloaded, oldest first.
	ListByOwner(ctx context.Context, ownerID string) ([]model.Link, error)
	ListPageByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, int64, error)
	ListCodes(ctx context.Context) ([]string, error)
	Update(ctx context.Context, link *model.Link) error
	Delete(ctx context.Context, code string) error
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) InsertUnique(ctx context.Context, link *model.Link) error {
	if err := r.db.WithContext(ctx).Omit("Clicks").Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrCodeConflict
		}
		return err
	}
	return nil
}

func (r *linkRepository) FindByCode(ctx context.Context, code string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) FindByCodeWithClicks(ctx context.Context, code string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).
		Preload("Clicks", orderClicks).
		Where("code = ?", code).
		First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.Link{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *linkRepository) FindByFingerprintOrURL(ctx context.Context, fingerprint, url, ownerID string) ([]model.Link, error) {
	var result []model.Link
	if err := ownerScope(r.db.WithContext(ctx), ownerID).
		Where("fingerprint = ? OR original_url = ?", fingerprint, url).
		Order("created_at ASC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *linkRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Link, error) {
	var result []model.Link
	if err := ownerScope(r.db.WithContext(ctx), ownerID).
		Preload("Clicks", orderClicks).
		Order("created_at ASC").
		Order("code ASC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

func (r *linkRepository) ListPageByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, int64, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := ownerScope(r.db.WithContext(ctx).Model(&model.Link{}), ownerID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var result []model.Link
	if err := ownerScope(r.db.WithContext(ctx), ownerID).
		Preload("Clicks", orderClicks).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, 0, err
	}

	return result, total, nil
}

func (r *linkRepository) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Unscoped().
		Model(&model.Link{}).
		Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *linkRepository) Update(ctx context.Context, link *model.Link) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("code = ?", link.Code).
		Updates(map[string]interface{}{
			"is_active":  link.IsActive,
			"expires_at": link.ExpiresAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}

	return r.db.WithContext(ctx).Where("code = ?", link.Code).First(link).Error
}

// Delete soft-deletes the link and removes its click log.
func (r *linkRepository) Delete(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("code = ?", code).Delete(&model.Link{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrLinkNotFound
		}
		return tx.Where("link_code = ?", code).Delete(&model.Click{}).Error
	})
}

func ownerScope(db *gorm.DB, ownerID string) *gorm.DB {
	if ownerID == "" {
		return db.Where("owner_id IS NULL")
	}
	return db.Where("owner_id = ?", ownerID)
}

func orderClicks(db *gorm.DB) *gorm.DB {
	return db.Order("timestamp ASC")
}

// isUniqueViolation recognises duplicate-key errors from the translated gorm error,
// Postgres (SQLSTATE 23505) and SQLite.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
