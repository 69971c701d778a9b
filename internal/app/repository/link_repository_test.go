package repository

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sifan077/LinkPulse/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteRepository(t *testing.T) LinkRepository {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Link{}, &model.Click{}))
	return NewLinkRepository(db)
}

// forEachRepository runs fn against every LinkRepository implementation.
func forEachRepository(t *testing.T, fn func(t *testing.T, repo LinkRepository)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryLinkRepository()) })
	t.Run("gorm_sqlite", func(t *testing.T) { fn(t, newSQLiteRepository(t)) })
}

func newLink(code, url, owner string, createdAt time.Time) *model.Link {
	return &model.Link{
		Code:        code,
		OriginalURL: url,
		Fingerprint: "fp-" + code,
		OwnerID:     model.OwnerRef(owner),
		IsActive:    true,
		CreatedAt:   createdAt,
	}
}

func TestLinkRepository_InsertUniqueRejectsDuplicateCode(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo LinkRepository) {
		ctx := context.Background()
		now := time.Now()

		require.NoError(t, repo.InsertUnique(ctx, newLink("abc123", "https://example.com", "", now)))
		err := repo.InsertUnique(ctx, newLink("abc123", "https://other.example.com", "", now))
		assert.ErrorIs(t, err, ErrCodeConflict)

		// Codes are case-sensitive.
		assert.NoError(t, repo.InsertUnique(ctx, newLink("ABC123", "https://other.example.com", "", now)))
	})
}

func TestLinkRepository_FindByCode(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo LinkRepository) {
		ctx := context.Background()

		_, err := repo.FindByCode(ctx, "missing")
		assert.ErrorIs(t, err, ErrLinkNotFound)

		require.NoError(t, repo.InsertUnique(ctx, newLink("found1", "https://example.com", "u1", time.Now())))
		link, err := repo.FindByCode(ctx, "found1")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", link.OriginalURL)
		assert.Equal(t, "u1", link.Owner())
		assert.True(t, link.IsActive)
	})
}

func TestLinkRepository_AppendClick(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo LinkRepository) {
		ctx := context.Background()
		require.NoError(t, repo.InsertUnique(ctx, newLink("click1", "https://example.com", "", time.Now())))

		base := time.Now().Add(-time.Hour)
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.AppendClick(ctx, "click1", &model.Click{
				IP:        "203.0.113.7",
				UserAgent: "test-agent",
				Timestamp: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		link, err := repo.FindByCodeWithClicks(ctx, "click1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), link.TotalClicks)
		require.Len(t, link.Clicks, 3)
		assert.True(t, link.Clicks[0].Timestamp.Before(link.Clicks[2].Timestamp))
		assert.NotEmpty(t, link.Clicks[0].ID)
		assert.Equal(t, "click1", link.Clicks[0].LinkCode)

		err = repo.AppendClick(ctx, "nope", &model.Click{IP: "203.0.113.7"})
		assert.ErrorIs(t, err, ErrLinkNotFound)
	})
}

func TestLinkRepository_AppendClickRejectsRedelivery(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo LinkRepository) {
		ctx := context.Background()
		require.NoError(t, repo.InsertUnique(ctx, newLink("redo1", "https://example.com", "", time.Now())))

		require.NoError(t, repo.AppendClick(ctx, "redo1", &model.Click{ID: "evt-1", IP: "203.0.113.7"}))
		err := repo.AppendClick(ctx, "redo1", &model.Click{ID: "evt-1", IP: "203.0.113.7"})
		assert.ErrorIs(t, err, ErrDuplicateClick)

		link, err := repo.FindByCodeWithClicks(ctx, "redo1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), link.TotalClicks)
		assert.Len(t, link.Clicks, 1)
	})
}

func TestLinkRepository_FindByFingerprintOrURLIsOwnerScoped(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo LinkRepository) {
		ctx := context.Background()
		now := time.Now()

		require.NoError(t, repo.InsertUnique(ctx, newLink("anon01", "https://example.com", "", now)))
		require.NoError(t, repo.InsertUnique(ctx, newLink("user01", "https://example.com", "u1", now.Add(time.Second))))

		anon, err := repo.FindByFingerprintOrURL(ctx, "unrelated", "https://example.com", "")
		require.NoError(t, err)
		require.Len(t, anon, 1)
		assert.Equal(t, "anon01", anon[0].Code)

		owned, err := repo.FindByFingerprintOrURL(ctx, "fp-user01", "https://nowhere.example.com", "u1")
		require.NoError(t, err)
		require.Len(t, owned, 1)
		assert.Equal(t, "user01", owned[0].Code)

		none, err := repo.FindByFingerprintOrURL(ctx, "fp-user01", "https://example.com", "u2")
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestLinkRepository_ListByOwner(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo LinkRepository) {
		ctx := context.Background()
		base := time.Now().Add(-time.Hour)

		require.NoError(t, repo.InsertUnique(ctx, newLink("first1", "https://a.example.com", "u1", base)))
		require.NoError(t, repo.InsertUnique(ctx, newLink("second", "https://b.example.com", "u1", base.Add(time.Minute))))
		require.NoError(t, repo.InsertUnique(ctx, newLink("other1", "https://c.example.com", "u2", base)))
		require.NoError(t, repo.AppendClick(ctx, "second", &model.Click{IP: "198.51.100.1"}))

		links, err := repo.ListByOwner(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, "first1", links[0].Code)
		assert.Equal(t, "second", links[1].Code)
		assert.Len(t, links[1].Clicks, 1)

		page, total, err := repo.ListPageByOwner(ctx, "u1", 1, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, page, 1)
		assert.Equal(t, "second", page[0].Code)

		page, _, err = repo.ListPageByOwner(ctx, "u1", 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "first1", page[0].Code)
	})
}

func TestLinkRepository_Update(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo LinkRepository) {
		ctx := context.Background()
		require.NoError(t, repo.InsertUnique(ctx, newLink("upd001", "https://example.com", "u1", time.Now())))

		expires := time.Now().Add(48 * time.Hour).Truncate(time.Second)
		link := &model.Link{Code: "upd001", IsActive: false, ExpiresAt: &expires}
		require.NoError(t, repo.Update(ctx, link))

		stored, err := repo.FindByCode(ctx, "upd001")
		require.NoError(t, err)
		assert.False(t, stored.IsActive)
		require.NotNil(t, stored.ExpiresAt)
		assert.True(t, stored.ExpiresAt.Equal(expires))

		err = repo.Update(ctx, &model.Link{Code: "missing"})
		assert.ErrorIs(t, err, ErrLinkNotFound)
	})
}

func TestLinkRepository_DeleteKeepsCodeReserved(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo LinkRepository) {
		ctx := context.Background()
		require.NoError(t, repo.InsertUnique(ctx, newLink("gone01", "https://example.com", "u1", time.Now())))
		require.NoError(t, repo.AppendClick(ctx, "gone01", &model.Click{IP: "198.51.100.1"}))

		require.NoError(t, repo.Delete(ctx, "gone01"))
		assert.ErrorIs(t, repo.Delete(ctx, "gone01"), ErrLinkNotFound)

		_, err := repo.FindByCode(ctx, "gone01")
		assert.ErrorIs(t, err, ErrLinkNotFound)

		exists, err := repo.CodeExists(ctx, "gone01")
		require.NoError(t, err)
		assert.True(t, exists, "deleted codes must never be reissued")

		err = repo.InsertUnique(ctx, newLink("gone01", "https://example.org", "u1", time.Now()))
		assert.ErrorIs(t, err, ErrCodeConflict)

		codes, err := repo.ListCodes(ctx)
		require.NoError(t, err)
		assert.Contains(t, codes, "gone01")
	})
}

func TestLinkRepository_ConcurrentClicksAreNotLost(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo LinkRepository) {
		ctx := context.Background()
		require.NoError(t, repo.InsertUnique(ctx, newLink("busy01", "https://example.com", "", time.Now())))

		const clicks = 100
		var wg sync.WaitGroup
		for i := 0; i < clicks; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.AppendClick(ctx, "busy01", &model.Click{IP: "203.0.113.1"}))
			}()
		}
		wg.Wait()

		link, err := repo.FindByCodeWithClicks(ctx, "busy01")
		require.NoError(t, err)
		assert.Equal(t, int64(clicks), link.TotalClicks)
		assert.Len(t, link.Clicks, clicks)
	})
}

func TestMemoryLinkRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryLinkRepository()
	ctx := context.Background()
	require.NoError(t, repo.InsertUnique(ctx, newLink("copy01", "https://example.com", "", time.Now())))

	link, err := repo.FindByCode(ctx, "copy01")
	require.NoError(t, err)
	link.OriginalURL = "https://mutated.example.com"

	again, err := repo.FindByCode(ctx, "copy01")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", again.OriginalURL)
}
