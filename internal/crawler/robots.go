package crawler

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const (
	robotsFetchTimeout = 5 * time.Second
	robotsCacheTTL     = 1 * time.Hour
	maxRobotsBody      = 512 * 1024
)

// HTTPClient abstracts HTTP requests to simplify testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RobotsCache fetches and caches robots.txt policies per origin.
// Missing, unreachable or malformed robots.txt yields a permissive
// policy; the crawler never fails closed on robots errors.
type RobotsCache struct {
	client    HTTPClient
	userAgent string
	ttl       time.Duration

	mu      sync.Mutex
	entries map[string]*robotsEntry
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	allowAll  bool
}

// RobotsCacheOption configures optional dependencies.
type RobotsCacheOption func(*RobotsCache)

// WithRobotsHTTPClient overrides the default HTTP client.
func WithRobotsHTTPClient(client HTTPClient) RobotsCacheOption {
	return func(r *RobotsCache) {
		if client != nil {
			r.client = client
		}
	}
}

// NewRobotsCache builds a cache scoped to the given user agent.
func NewRobotsCache(userAgent string, opts ...RobotsCacheOption) *RobotsCache {
	r := &RobotsCache{
		client:    &http.Client{Timeout: robotsFetchTimeout},
		userAgent: userAgent,
		ttl:       robotsCacheTTL,
		entries:   make(map[string]*robotsEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Allowed reports whether the URL may be fetched and the origin's
// crawl-delay. Any failure along the way resolves to allowed with no
// delay.
func (r *RobotsCache) Allowed(ctx context.Context, rawURL string) (bool, time.Duration) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true, 0
	}
	origin := u.Scheme + "://" + u.Host

	entry := r.entry(ctx, origin)
	if entry.allowAll || entry.data == nil {
		return true, 0
	}

	group := entry.data.FindGroup(r.userAgent)
	if group == nil {
		return true, 0
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return group.Test(path), group.CrawlDelay
}

func (r *RobotsCache) entry(ctx context.Context, origin string) *robotsEntry {
	r.mu.Lock()
	cached, ok := r.entries[origin]
	r.mu.Unlock()
	if ok && time.Since(cached.fetchedAt) < r.ttl {
		return cached
	}

	entry := r.fetch(ctx, origin)

	r.mu.Lock()
	r.entries[origin] = entry
	r.mu.Unlock()
	return entry
}

func (r *RobotsCache) fetch(ctx context.Context, origin string) *robotsEntry {
	ctx, cancel := context.WithTimeout(ctx, robotsFetchTimeout)
	defer cancel()

	permissive := &robotsEntry{fetchedAt: time.Now(), allowAll: true}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return permissive
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		log.Printf("robots fetch failed origin=%s err=%v", origin, err)
		return permissive
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return permissive
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		return permissive
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		log.Printf("robots parse failed origin=%s err=%v", origin, err)
		return permissive
	}

	return &robotsEntry{data: data, fetchedAt: time.Now()}
}
