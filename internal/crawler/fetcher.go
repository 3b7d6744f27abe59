package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/octobees/contact-crawler/internal/monitoring"
)

const (
	maxBodyBytes      = 5 * 1024 * 1024
	retryBaseDelay    = 1000 * time.Millisecond
	retryMaxDelay     = 8000 * time.Millisecond
	retryJitterMaxMs  = 1000
	defaultAcceptLang = "sv-SE,sv;q=0.9,en;q=0.8"
)

// Fetcher performs polite HTTP GETs with browser-like headers, a hard
// per-request timeout and exponential backoff on server errors.
type Fetcher struct {
	client     HTTPClient
	botName    string
	timeout    time.Duration
	maxRetries int
	metrics    *monitoring.Metrics
	sleep      func(ctx context.Context, d time.Duration) error
}

// FetcherOption configures optional dependencies.
type FetcherOption func(*Fetcher)

// WithFetcherHTTPClient overrides the default HTTP client.
func WithFetcherHTTPClient(client HTTPClient) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithMetrics attaches the metrics surface.
func WithMetrics(metrics *monitoring.Metrics) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = metrics
	}
}

// WithSleep overrides the backoff sleep, used by tests to avoid real delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) FetcherOption {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// NewFetcher builds a fetcher identified by the given bot name.
func NewFetcher(botName string, timeout time.Duration, maxRetries int, opts ...FetcherOption) *Fetcher {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	f := &Fetcher{
		client:     &http.Client{},
		botName:    botName,
		timeout:    timeout,
		maxRetries: maxRetries,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchHTML retrieves the page body. Server errors are retried with
// exponential backoff plus jitter; client errors never are. Outcomes
// are mapped to the pipeline's failure kinds and counted per host.
func (f *Fetcher) FetchHTML(ctx context.Context, rawURL string) (string, error) {
	host := hostOf(rawURL)

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		html, retryable, err := f.fetchOnce(ctx, rawURL, host)
		if err == nil {
			return html, nil
		}
		lastErr = err
		if !retryable || attempt == f.maxRetries {
			break
		}

		delay := retryBaseDelay << attempt
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
		delay += time.Duration(rand.Intn(retryJitterMaxMs)) * time.Millisecond
		if err := f.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL, host string) (html string, retryable bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	f.setHeaders(req)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			f.metrics.Request(monitoring.StatusTimeout, host)
			return "", false, fmt.Errorf("%w after %s: %s", ErrTimeout, f.timeout, rawURL)
		}
		f.metrics.Request(monitoring.StatusError, host)
		return "", true, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		f.metrics.Request(monitoring.StatusBlocked, host)
		return "", false, fmt.Errorf("%w: status %d", ErrBlocked, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		f.metrics.Request(monitoring.StatusNotFound, host)
		return "", false, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	case resp.StatusCode >= 500:
		f.metrics.Request(monitoring.StatusError, host)
		return "", true, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		f.metrics.Request(monitoring.StatusError, host)
		return "", false, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		f.metrics.Request(monitoring.StatusNonHTML, host)
		return "", false, fmt.Errorf("%w: content-type %q", ErrNonHTML, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		f.metrics.Request(monitoring.StatusError, host)
		return "", true, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}

	f.metrics.Request(monitoring.StatusSuccess, host)
	f.metrics.Duration(time.Since(start).Seconds())
	return string(body), false, nil
}

func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.botName)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", defaultAcceptLang)
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
