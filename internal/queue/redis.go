package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/octobees/contact-crawler/internal/entity"
)

const (
	jobListKey     = "crawl:jobs"
	jobKeyPrefix   = "crawl:job:"
	jobRetention   = 7 * 24 * time.Hour
	dequeueTimeout = 5 * time.Second

	maxAttempts = 3
	backoffBase = 2 * time.Second
)

// ErrJobNotFound is returned when a job ID has no stored payload, either
// because it never existed or its retention window passed.
var ErrJobNotFound = errors.New("job not found")

// Broker is the Redis-backed job queue shared by the API and the worker.
// The list at crawl:jobs carries job IDs; payload, status, progress and
// result live under per-job keys with a retention TTL.
type Broker struct {
	client *redis.Client
	sleep  func(ctx context.Context, d time.Duration) error
}

// BrokerOption configures optional dependencies.
type BrokerOption func(*Broker)

// WithRetrySleep overrides the requeue backoff sleep, used by tests.
func WithRetrySleep(sleep func(ctx context.Context, d time.Duration) error) BrokerOption {
	return func(b *Broker) {
		if sleep != nil {
			b.sleep = sleep
		}
	}
}

// NewBroker wraps the given Redis client.
func NewBroker(client *redis.Client, opts ...BrokerOption) *Broker {
	b := &Broker{
		client: client,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Snapshot is the API-facing view of one job.
type Snapshot struct {
	Status   string              `json:"status"`
	Progress *entity.JobProgress `json:"progress,omitempty"`
	Result   *entity.JobResult   `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Enqueue stores the job payload and pushes its ID onto the work list.
func (b *Broker) Enqueue(ctx context.Context, job *entity.Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	id := job.ID.String()
	pipe := b.client.TxPipeline()
	pipe.Set(ctx, payloadKey(id), payload, jobRetention)
	pipe.Set(ctx, statusKey(id), entity.JobStatusQueued, jobRetention)
	pipe.LPush(ctx, jobListKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue job %s: %w", id, err)
	}
	return nil
}

// Dequeue blocks for up to a few seconds waiting for a job ID, then loads
// its payload and marks it running. An empty queue returns (nil, nil) so
// the worker loop can poll without treating it as a failure.
func (b *Broker) Dequeue(ctx context.Context) (*entity.Job, error) {
	values, err := b.client.BRPop(ctx, dequeueTimeout, jobListKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	id := values[1]

	raw, err := b.client.Get(ctx, payloadKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			log.Printf("queue dropped job without payload jobId=%s", id)
			return nil, nil
		}
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}

	var job entity.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		log.Printf("queue dropped corrupt job jobId=%s err=%v", id, err)
		return nil, nil
	}

	if err := b.client.Set(ctx, statusKey(id), entity.JobStatusRunning, jobRetention).Err(); err != nil {
		log.Printf("status update failed jobId=%s err=%v", id, err)
	}
	return &job, nil
}

// SetProgress publishes the job's current progress.
func (b *Broker) SetProgress(ctx context.Context, jobID uuid.UUID, progress entity.JobProgress) error {
	raw, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	return b.client.Set(ctx, progressKey(jobID.String()), raw, jobRetention).Err()
}

// Complete stores the result envelope and marks the job completed.
func (b *Broker) Complete(ctx context.Context, jobID uuid.UUID, result *entity.JobResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	id := jobID.String()
	pipe := b.client.TxPipeline()
	pipe.Set(ctx, resultKey(id), raw, jobRetention)
	pipe.Set(ctx, statusKey(id), entity.JobStatusCompleted, jobRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	return nil
}

// Fail re-enqueues the job with an incremented attempt counter, backing
// off exponentially. Once the attempt budget is spent the job is marked
// failed with the final error.
func (b *Broker) Fail(ctx context.Context, job *entity.Job, reason string) error {
	id := job.ID.String()

	if job.Attempt+1 >= maxAttempts {
		pipe := b.client.TxPipeline()
		pipe.Set(ctx, statusKey(id), entity.JobStatusFailed, jobRetention)
		pipe.Set(ctx, errorKey(id), reason, jobRetention)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("fail job %s: %w", id, err)
		}
		log.Printf("job exhausted retries jobId=%s attempts=%d err=%s", id, job.Attempt+1, reason)
		return nil
	}

	retry := *job
	retry.Attempt++
	payload, err := json.Marshal(&retry)
	if err != nil {
		return fmt.Errorf("encode retry: %w", err)
	}

	if err := b.sleep(ctx, backoffBase<<job.Attempt); err != nil {
		return err
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, payloadKey(id), payload, jobRetention)
	pipe.Set(ctx, statusKey(id), entity.JobStatusQueued, jobRetention)
	pipe.LPush(ctx, jobListKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("requeue job %s: %w", id, err)
	}
	log.Printf("job requeued jobId=%s attempt=%d err=%s", id, retry.Attempt, reason)
	return nil
}

// Snapshot reads the job's status plus whatever progress, result and
// error data exists at this point of its lifecycle.
func (b *Broker) Snapshot(ctx context.Context, jobID uuid.UUID) (*Snapshot, error) {
	id := jobID.String()

	status, err := b.client.Get(ctx, statusKey(id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("load status %s: %w", id, err)
	}

	snap := &Snapshot{Status: status}

	if raw, err := b.client.Get(ctx, progressKey(id)).Bytes(); err == nil {
		var progress entity.JobProgress
		if err := json.Unmarshal(raw, &progress); err == nil {
			snap.Progress = &progress
		}
	}
	if raw, err := b.client.Get(ctx, resultKey(id)).Bytes(); err == nil {
		var result entity.JobResult
		if err := json.Unmarshal(raw, &result); err == nil {
			snap.Result = &result
		}
	}
	if msg, err := b.client.Get(ctx, errorKey(id)).Result(); err == nil {
		snap.Error = msg
	}
	return snap, nil
}

// Depth reports how many jobs are waiting.
func (b *Broker) Depth(ctx context.Context) (int64, error) {
	return b.client.LLen(ctx, jobListKey).Result()
}

// Ping verifies broker connectivity at startup.
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func payloadKey(id string) string  { return jobKeyPrefix + id }
func statusKey(id string) string   { return jobKeyPrefix + id + ":status" }
func progressKey(id string) string { return jobKeyPrefix + id + ":progress" }
func resultKey(id string) string   { return jobKeyPrefix + id + ":result" }
func errorKey(id string) string    { return jobKeyPrefix + id + ":error" }

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
