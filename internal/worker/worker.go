package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/octobees/contact-crawler/internal/audit"
	"github.com/octobees/contact-crawler/internal/entity"
	"github.com/octobees/contact-crawler/internal/monitoring"
	"github.com/octobees/contact-crawler/internal/repository"
	"github.com/octobees/contact-crawler/internal/service"
)

// Broker is the slice of the queue the worker consumes.
type Broker interface {
	Dequeue(ctx context.Context) (*entity.Job, error)
	SetProgress(ctx context.Context, jobID uuid.UUID, progress entity.JobProgress) error
	Complete(ctx context.Context, jobID uuid.UUID, result *entity.JobResult) error
	Fail(ctx context.Context, job *entity.Job, reason string) error
}

// Crawler visits one site and aggregates whatever it finds.
type Crawler interface {
	CrawlSite(ctx context.Context, site entity.Site, maxPages int) *entity.SiteResult
}

// RecordSink persists finished contact records. Persistence is optional;
// the job result envelope carries the records either way.
type RecordSink interface {
	UpsertRecords(ctx context.Context, records []entity.ContactRecord) (repository.UpsertResult, error)
}

// Runner consumes enrichment jobs from the broker and drives the
// per-site crawls. Sites within one job run concurrently up to the
// job's configured concurrency; jobs themselves run one at a time.
type Runner struct {
	broker  Broker
	crawler Crawler

	records RecordSink
	auditor *audit.Logger
	metrics *monitoring.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// RunnerOption configures optional dependencies.
type RunnerOption func(*Runner)

// WithRecordSink attaches the persistence layer.
func WithRecordSink(sink RecordSink) RunnerOption {
	return func(r *Runner) {
		r.records = sink
	}
}

// WithAuditLog attaches the compliance audit log.
func WithAuditLog(logger *audit.Logger) RunnerOption {
	return func(r *Runner) {
		r.auditor = logger
	}
}

// WithRunnerMetrics attaches the metrics surface.
func WithRunnerMetrics(metrics *monitoring.Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = metrics
	}
}

// WithRunnerSleep overrides the error backoff sleep, used by tests.
func WithRunnerSleep(sleep func(ctx context.Context, d time.Duration) error) RunnerOption {
	return func(r *Runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// NewRunner wires a job consumer.
func NewRunner(broker Broker, crawler Crawler, opts ...RunnerOption) *Runner {
	r := &Runner{
		broker:  broker,
		crawler: crawler,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls the broker until the context is canceled. Dequeue errors
// back off briefly instead of terminating the loop; a dead Redis should
// stall the worker, not kill it.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		job, err := r.broker.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("dequeue failed err=%v", err)
			if serr := r.sleep(ctx, 2*time.Second); serr != nil {
				return serr
			}
			continue
		}
		if job == nil {
			continue
		}

		r.Process(ctx, job)
	}
}

// Process runs one job end to end. Interrupted jobs go back to the
// broker so a restarted worker picks them up.
func (r *Runner) Process(ctx context.Context, job *entity.Job) {
	r.metrics.JobStarted()
	defer r.metrics.JobFinished()

	log.Printf("job started jobId=%s sites=%d attempt=%d", job.ID, len(job.Sites), job.Attempt)

	result, err := r.crawlJob(ctx, job)
	if err != nil {
		r.requeue(job, err)
		return
	}

	if r.records != nil && len(result.Records) > 0 {
		if upserted, err := r.records.UpsertRecords(ctx, result.Records); err != nil {
			log.Printf("record persistence failed jobId=%s err=%v", job.ID, err)
		} else {
			log.Printf("records persisted jobId=%s inserted=%d updated=%d", job.ID, upserted.Inserted, upserted.Updated)
		}
	}

	if err := r.broker.Complete(ctx, job.ID, result); err != nil {
		r.requeue(job, fmt.Errorf("store result: %w", err))
		return
	}

	log.Printf("job completed jobId=%s records=%d errors=%d", job.ID, result.Stats.TotalRecords, result.Stats.TotalErrors)
}

// crawlJob fans the job's sites out over a weighted semaphore and folds
// the per-site outcomes back in site order, so the same job always
// yields the same envelope.
func (r *Runner) crawlJob(ctx context.Context, job *entity.Job) (*entity.JobResult, error) {
	concurrency := job.Config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	siteRecords := make([][]entity.ContactRecord, len(job.Sites))
	siteErrors := make([]entity.HostErrors, len(job.Sites))

	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex
	processed := 0
	found := 0

	for i, site := range job.Sites {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return nil, err
		}

		wg.Add(1)
		go func(idx int, site entity.Site) {
			defer wg.Done()
			defer sem.Release(1)

			siteResult := r.crawler.CrawlSite(ctx, site, job.Config.MaxPages)
			records := service.BuildRecords(siteResult)

			emails := make([]string, 0, len(siteResult.Emails))
			for email := range siteResult.Emails {
				emails = append(emails, email)
			}
			log.Printf("site crawled jobId=%s host=%s emails=%v phones=%v errors=%d",
				job.ID, site.Host, service.MaskEmails(emails), service.MaskPhones(siteResult.Phones), len(siteResult.Errors))

			r.auditor.Crawl(job.ID, site.Host, len(records), job.Config.User)

			mu.Lock()
			siteRecords[idx] = records
			if len(siteResult.Errors) > 0 {
				siteErrors[idx] = entity.HostErrors{Host: site.Host, Errors: siteResult.Errors}
			}
			processed++
			found += len(records)
			progress := entity.JobProgress{
				Percentage: processed * 100 / len(job.Sites),
				Current:    site.Host,
				Processed:  processed,
				Total:      len(job.Sites),
				Found:      found,
			}
			mu.Unlock()

			if err := r.broker.SetProgress(ctx, job.ID, progress); err != nil {
				log.Printf("progress update failed jobId=%s err=%v", job.ID, err)
			}
		}(i, site)
	}

	wg.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return assembleResult(len(job.Sites), siteRecords, siteErrors), nil
}

// requeue hands an interrupted or undeliverable job back to the broker
// on a fresh context, since the worker's own context may be gone.
func (r *Runner) requeue(job *entity.Job, cause error) {
	failCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.broker.Fail(failCtx, job, cause.Error()); err != nil {
		log.Printf("job requeue failed jobId=%s err=%v", job.ID, err)
	}
}

func assembleResult(totalSites int, siteRecords [][]entity.ContactRecord, siteErrors []entity.HostErrors) *entity.JobResult {
	result := &entity.JobResult{
		Records: []entity.ContactRecord{},
		Errors:  []entity.HostErrors{},
	}

	for _, records := range siteRecords {
		result.Records = append(result.Records, records...)
	}
	totalErrors := 0
	for _, hostErrs := range siteErrors {
		if len(hostErrs.Errors) == 0 {
			continue
		}
		result.Errors = append(result.Errors, hostErrs)
		totalErrors += len(hostErrs.Errors)
	}

	result.Stats = entity.JobStats{
		TotalSites:   totalSites,
		TotalRecords: len(result.Records),
		TotalErrors:  totalErrors,
	}
	if totalSites > 0 {
		result.Stats.AvgRecordsPerSite = float64(len(result.Records)) / float64(totalSites)
	}
	return result
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
