package crawler

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	globalMinInterval = 50 * time.Millisecond
	hostBurstTokens   = 10
	hostBurstWindow   = 60 * time.Second
	taskRetries       = 2
	taskRetryDelay    = 2 * time.Second
)

// Limiter composes a global admission layer with per-host serialization.
// A task runs only when both layers admit it; the per-host layer is the
// inner one, held while the global slot is held. Host limiters are
// created lazily and never evicted.
type Limiter struct {
	global        *semaphore.Weighted
	globalSpacing *rate.Limiter
	minTime       time.Duration
	maxConcurrent int

	mu    sync.Mutex
	hosts map[string]*hostLimiter
}

type hostLimiter struct {
	slots   chan struct{}
	spacing *rate.Limiter
	burst   *rate.Limiter
}

// NewLimiter builds a limiter with the given global concurrency budget
// and per-host settings.
func NewLimiter(globalConcurrency int, perHostMinTime time.Duration, perHostMaxConcurrent int) *Limiter {
	if globalConcurrency < 1 {
		globalConcurrency = 1
	}
	if perHostMaxConcurrent < 1 {
		perHostMaxConcurrent = 1
	}
	return &Limiter{
		global:        semaphore.NewWeighted(int64(globalConcurrency)),
		globalSpacing: rate.NewLimiter(rate.Every(globalMinInterval), 1),
		minTime:       perHostMinTime,
		maxConcurrent: perHostMaxConcurrent,
		hosts:         make(map[string]*hostLimiter),
	}
}

// Do admits the task through both layers and runs it.
func (l *Limiter) Do(ctx context.Context, host string, task func() error) error {
	if err := l.globalSpacing.Wait(ctx); err != nil {
		return err
	}
	if err := l.global.Acquire(ctx, 1); err != nil {
		return err
	}
	defer l.global.Release(1)

	h := l.host(host)
	select {
	case h.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-h.slots }()

	if err := h.spacing.Wait(ctx); err != nil {
		return err
	}
	if err := h.burst.Wait(ctx); err != nil {
		return err
	}

	return task()
}

// DoWithRetry behaves like Do but re-admits and re-runs a task that
// failed with a transient error, up to two extra attempts with a fixed
// two second pause. Definitive outcomes (blocked, 404, captcha, non-HTML)
// are never retried here; the fetcher owns backoff for 5xx responses.
func (l *Limiter) DoWithRetry(ctx context.Context, host string, task func() error) error {
	var err error
	for attempt := 0; attempt <= taskRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(taskRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err = l.Do(ctx, host, task)
		if err == nil || !retryableTask(err) {
			return err
		}
	}
	return err
}

func retryableTask(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrFetch) || errors.Is(err, ErrTimeout)
}

// host returns the limiter for a host, creating it on first use.
func (l *Limiter) host(host string) *hostLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.hosts[host]; ok {
		return h
	}
	h := &hostLimiter{
		slots:   make(chan struct{}, l.maxConcurrent),
		spacing: rate.NewLimiter(rate.Every(l.minTime), 1),
		// 10 tokens refilling over a minute bounds request bursts per host.
		burst: rate.NewLimiter(rate.Limit(float64(hostBurstTokens)/hostBurstWindow.Seconds()), hostBurstTokens),
	}
	l.hosts[host] = h
	return h
}
