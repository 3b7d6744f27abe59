package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsCacheDisallowAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte("User-agent: *\nDisallow: /\n"))
	}))
	defer srv.Close()

	cache := NewRobotsCache("CSV-Webcrawler/2.0", WithRobotsHTTPClient(srv.Client()))

	allowed, _ := cache.Allowed(context.Background(), srv.URL+"/kontakt")
	if allowed {
		t.Fatal("expected disallow")
	}
}

func TestRobotsCacheCrawlDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("User-agent: *\nAllow: /\nCrawl-delay: 2\n"))
	}))
	defer srv.Close()

	cache := NewRobotsCache("CSV-Webcrawler/2.0", WithRobotsHTTPClient(srv.Client()))

	allowed, delay := cache.Allowed(context.Background(), srv.URL+"/")
	if !allowed {
		t.Fatal("expected allow")
	}
	if delay != 2*time.Second {
		t.Fatalf("expected 2s crawl delay, got %s", delay)
	}
}

func TestRobotsCacheMissingRobotsIsPermissive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer srv.Close()

	cache := NewRobotsCache("CSV-Webcrawler/2.0", WithRobotsHTTPClient(srv.Client()))

	allowed, delay := cache.Allowed(context.Background(), srv.URL+"/anything")
	if !allowed || delay != 0 {
		t.Fatalf("expected permissive policy, got allowed=%v delay=%s", allowed, delay)
	}
}

func TestRobotsCacheUnreachableOriginIsPermissive(t *testing.T) {
	cache := NewRobotsCache("CSV-Webcrawler/2.0", WithRobotsHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))

	allowed, _ := cache.Allowed(context.Background(), "http://127.0.0.1:1/page")
	if !allowed {
		t.Fatal("expected permissive policy when robots.txt is unreachable")
	}
}

func TestRobotsCacheCachesPerOrigin(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer srv.Close()

	cache := NewRobotsCache("CSV-Webcrawler/2.0", WithRobotsHTTPClient(srv.Client()))

	for i := 0; i < 5; i++ {
		cache.Allowed(context.Background(), srv.URL+"/page")
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected one robots fetch, got %d", got)
	}

	if allowed, _ := cache.Allowed(context.Background(), srv.URL+"/private/area"); allowed {
		t.Fatal("expected /private to be disallowed")
	}
	if allowed, _ := cache.Allowed(context.Background(), srv.URL+"/public"); !allowed {
		t.Fatal("expected /public to be allowed")
	}
}

func TestRobotsCacheAgentSpecificGroup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("User-agent: CSV-Webcrawler\nDisallow: /\n\nUser-agent: *\nAllow: /\n"))
	}))
	defer srv.Close()

	cache := NewRobotsCache("CSV-Webcrawler/2.0", WithRobotsHTTPClient(srv.Client()))

	if allowed, _ := cache.Allowed(context.Background(), srv.URL+"/"); allowed {
		t.Fatal("expected agent-specific disallow to apply")
	}
}
