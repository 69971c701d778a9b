// Package cache keeps hot redirect lookups in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/LinkPulse/internal/app/model"
)

const (
	linkKeyPrefix     = "link:"
	negCacheKeySuffix = ":neg"

	// DefaultLinkTTL is the TTL for cached link data.
	DefaultLinkTTL = 24 * time.Hour
	// NegativeCacheTTL is the TTL for unknown-code markers.
	NegativeCacheTTL = 5 * time.Minute
)

// ErrCacheMiss is returned when the code is not cached.
var ErrCacheMiss = errors.New("cache miss")

// LinkCache is a cache-aside store for the fields the redirect path needs.
type LinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLinkCache wraps client. A zero ttl uses DefaultLinkTTL.
func NewLinkCache(client *redis.Client, ttl time.Duration) *LinkCache {
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	return &LinkCache{client: client, ttl: ttl}
}

// Get returns the cached link or ErrCacheMiss. Only redirect fields are populated.
func (c *LinkCache) Get(ctx context.Context, code string) (*model.Link, error) {
	result, err := c.client.HGetAll(ctx, linkKeyPrefix+code).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(result) == 0 {
		return nil, ErrCacheMiss
	}
	return decodeLink(code, result)
}

// Set caches link until it expires or the default TTL passes, whichever is sooner.
func (c *LinkCache) Set(ctx context.Context, link *model.Link) error {
	key := linkKeyPrefix + link.Code

	ttl := entryTTL(link, c.ttl, time.Now())
	if ttl <= 0 {
		return c.client.Del(ctx, key, key+negCacheKeySuffix).Err()
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, encodeLink(link))
	pipe.Expire(ctx, key, ttl)
	pipe.Del(ctx, key+negCacheKeySuffix)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache link: %w", err)
	}
	return nil
}

// Delete drops both the entry and any negative marker for code.
func (c *LinkCache) Delete(ctx context.Context, code string) error {
	key := linkKeyPrefix + code
	if err := c.client.Del(ctx, key, key+negCacheKeySuffix).Err(); err != nil {
		return fmt.Errorf("failed to delete link from cache: %w", err)
	}
	return nil
}

// IsMissing reports whether code was recently looked up and not found.
func (c *LinkCache) IsMissing(ctx context.Context, code string) (bool, error) {
	exists, err := c.client.Exists(ctx, linkKeyPrefix+code+negCacheKeySuffix).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}
	return exists > 0, nil
}

// SetMissing marks code as unknown for NegativeCacheTTL.
func (c *LinkCache) SetMissing(ctx context.Context, code string) error {
	if err := c.client.SetEx(ctx, linkKeyPrefix+code+negCacheKeySuffix, "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}

func entryTTL(link *model.Link, ttl time.Duration, now time.Time) time.Duration {
	if link.ExpiresAt == nil {
		return ttl
	}
	until := link.ExpiresAt.Sub(now)
	if until < ttl {
		return until
	}
	return ttl
}

func encodeLink(link *model.Link) map[string]any {
	fields := map[string]any{
		"original_url": link.OriginalURL,
		"is_active":    strconv.FormatBool(link.IsActive),
		"owner_id":     link.Owner(),
		"created_at":   link.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expires_at":   "",
	}
	if link.ExpiresAt != nil {
		fields["expires_at"] = link.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	return fields
}

func decodeLink(code string, fields map[string]string) (*model.Link, error) {
	active, err := strconv.ParseBool(fields["is_active"])
	if err != nil {
		return nil, fmt.Errorf("decode cached link %s: is_active: %w", code, err)
	}

	link := &model.Link{
		Code:        code,
		OriginalURL: fields["original_url"],
		OwnerID:     model.OwnerRef(fields["owner_id"]),
		IsActive:    active,
	}
	if raw := fields["created_at"]; raw != "" {
		if created, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			link.CreatedAt = created
		}
	}
	if raw := fields["expires_at"]; raw != "" {
		expires, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("decode cached link %s: expires_at: %w", code, err)
		}
		link.ExpiresAt = &expires
	}
	if link.OriginalURL == "" {
		return nil, ErrCacheMiss
	}
	return link, nil
}
