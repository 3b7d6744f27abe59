package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/octobees/contact-crawler/internal/entity"
)

const (
	keyPrefix  = "crawl:"
	defaultTTL = 7 * 24 * time.Hour
)

// PageCache memoizes crawled page results in Redis so re-running a job
// over the same site list does not re-fetch unchanged pages. Every cache
// failure is soft: a broken Redis degrades to crawling without a cache.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPageCache wraps the given client. A nil client yields a disabled
// cache whose Get always misses.
func NewPageCache(client *redis.Client, ttl time.Duration) *PageCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &PageCache{client: client, ttl: ttl}
}

// Get returns the cached result for a URL, if any.
func (c *PageCache) Get(ctx context.Context, url string) (*entity.PageResult, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, cacheKey(url)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("page cache read failed url=%s err=%v", url, err)
		}
		return nil, false
	}

	var page entity.PageResult
	if err := json.Unmarshal(raw, &page); err != nil {
		log.Printf("page cache entry corrupt url=%s err=%v", url, err)
		return nil, false
	}
	return &page, true
}

// Set stores a page result under the URL's key.
func (c *PageCache) Set(ctx context.Context, url string, page *entity.PageResult) {
	if c == nil || c.client == nil || page == nil {
		return
	}

	raw, err := json.Marshal(page)
	if err != nil {
		log.Printf("page cache encode failed url=%s err=%v", url, err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(url), raw, c.ttl).Err(); err != nil {
		log.Printf("page cache write failed url=%s err=%v", url, err)
	}
}

// cacheKey hashes the URL so arbitrary characters never leak into the
// Redis keyspace.
func cacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return keyPrefix + hex.EncodeToString(sum[:])
}
