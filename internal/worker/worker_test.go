package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/octobees/contact-crawler/internal/entity"
	"github.com/octobees/contact-crawler/internal/repository"
)

func testJob(sites ...entity.Site) *entity.Job {
	return &entity.Job{
		ID:    uuid.New(),
		Sites: sites,
		Config: entity.CrawlOptions{
			MaxPages:    5,
			Concurrency: 2,
			User:        "ops@octobees.com",
		},
	}
}

func siteResultWithEmail(site entity.Site, email string) *entity.SiteResult {
	result := entity.NewSiteResult(site)
	result.Emails[email] = &entity.EmailInfo{
		EmailType:     entity.EmailTypeRole,
		Confidence:    0.90,
		Sources:       []string{"mailto"},
		DiscoveryPath: "mailto",
	}
	result.SourcePages = []string{site.RootURL}
	return result
}

func TestRunnerProcessCompletesJob(t *testing.T) {
	acme := entity.Site{RootURL: "https://acme.se", Host: "acme.se"}
	nordia := entity.Site{RootURL: "https://nordia.se", Host: "nordia.se"}
	job := testJob(acme, nordia)

	broker := &stubRunnerBroker{}
	crawler := &stubCrawler{results: map[string]*entity.SiteResult{
		"acme.se":   siteResultWithEmail(acme, "info@acme.se"),
		"nordia.se": entity.NewSiteResult(nordia),
	}}
	sink := &stubSink{}

	runner := NewRunner(broker, crawler, WithRecordSink(sink))
	runner.Process(context.Background(), job)

	if broker.failed != nil {
		t.Fatalf("job should not fail: %s", broker.failReason)
	}
	if broker.completed == nil {
		t.Fatal("expected job completion")
	}
	if got := broker.completed.Stats; got.TotalSites != 2 || got.TotalRecords != 1 || got.TotalErrors != 0 {
		t.Fatalf("unexpected stats: %+v", got)
	}
	if broker.completed.Stats.AvgRecordsPerSite != 0.5 {
		t.Fatalf("unexpected average: %v", broker.completed.Stats.AvgRecordsPerSite)
	}
	if len(broker.completed.Records) != 1 || broker.completed.Records[0].Email != "info@acme.se" {
		t.Fatalf("unexpected records: %+v", broker.completed.Records)
	}

	if len(broker.progress) != 2 {
		t.Fatalf("expected one progress update per site, got %d", len(broker.progress))
	}
	var sawFinal bool
	for _, p := range broker.progress {
		if p.Percentage == 100 && p.Processed == 2 && p.Total == 2 {
			sawFinal = true
		}
	}
	if !sawFinal {
		t.Fatalf("expected a 100%% progress update, got %+v", broker.progress)
	}

	if len(sink.received) != 1 || sink.received[0].Domain != "acme.se" {
		t.Fatalf("expected persisted records, got %+v", sink.received)
	}
}

func TestRunnerProcessKeepsRecordsInSiteOrder(t *testing.T) {
	sites := []entity.Site{
		{RootURL: "https://a.se", Host: "a.se"},
		{RootURL: "https://b.se", Host: "b.se"},
		{RootURL: "https://c.se", Host: "c.se"},
	}
	job := testJob(sites...)
	job.Config.Concurrency = 3

	crawler := &stubCrawler{results: map[string]*entity.SiteResult{}, delay: 5 * time.Millisecond}
	for _, site := range sites {
		crawler.results[site.Host] = siteResultWithEmail(site, "info@"+site.Host)
	}

	broker := &stubRunnerBroker{}
	NewRunner(broker, crawler).Process(context.Background(), job)

	if broker.completed == nil {
		t.Fatal("expected job completion")
	}
	if len(broker.completed.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(broker.completed.Records))
	}
	for i, site := range sites {
		if broker.completed.Records[i].Domain != site.Host {
			t.Fatalf("record %d out of order: %+v", i, broker.completed.Records[i])
		}
	}
}

func TestRunnerProcessAggregatesHostErrors(t *testing.T) {
	acme := entity.Site{RootURL: "https://acme.se", Host: "acme.se"}
	job := testJob(acme)

	failing := entity.NewSiteResult(acme)
	failing.AddError("https://acme.se/kontakt", "fetch failed: status 500")
	failing.AddError("", "Terms of Service may disallow automated access")

	broker := &stubRunnerBroker{}
	crawler := &stubCrawler{results: map[string]*entity.SiteResult{"acme.se": failing}}
	NewRunner(broker, crawler).Process(context.Background(), job)

	if broker.completed == nil {
		t.Fatal("expected completion with partial result")
	}
	if len(broker.completed.Errors) != 1 || broker.completed.Errors[0].Host != "acme.se" {
		t.Fatalf("unexpected host errors: %+v", broker.completed.Errors)
	}
	if broker.completed.Stats.TotalErrors != 2 {
		t.Fatalf("expected 2 errors counted, got %d", broker.completed.Stats.TotalErrors)
	}
}

func TestRunnerProcessRequeuesWhenCompleteFails(t *testing.T) {
	acme := entity.Site{RootURL: "https://acme.se", Host: "acme.se"}
	job := testJob(acme)

	broker := &stubRunnerBroker{completeErr: errors.New("redis gone")}
	crawler := &stubCrawler{results: map[string]*entity.SiteResult{"acme.se": entity.NewSiteResult(acme)}}
	NewRunner(broker, crawler).Process(context.Background(), job)

	if broker.failed == nil {
		t.Fatal("expected job to be handed back to the broker")
	}
	if broker.failed.ID != job.ID {
		t.Fatalf("wrong job requeued: %s", broker.failed.ID)
	}
}

func TestRunnerProcessRequeuesOnCanceledContext(t *testing.T) {
	acme := entity.Site{RootURL: "https://acme.se", Host: "acme.se"}
	job := testJob(acme)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	broker := &stubRunnerBroker{}
	crawler := &stubCrawler{results: map[string]*entity.SiteResult{"acme.se": entity.NewSiteResult(acme)}}
	NewRunner(broker, crawler).Process(ctx, job)

	if broker.completed != nil {
		t.Fatal("canceled job must not complete")
	}
	if broker.failed == nil {
		t.Fatal("expected job to be requeued for the next worker")
	}
}

func TestRunnerProcessToleratesSinkFailure(t *testing.T) {
	acme := entity.Site{RootURL: "https://acme.se", Host: "acme.se"}
	job := testJob(acme)

	broker := &stubRunnerBroker{}
	crawler := &stubCrawler{results: map[string]*entity.SiteResult{
		"acme.se": siteResultWithEmail(acme, "info@acme.se"),
	}}
	sink := &stubSink{err: errors.New("relation does not exist")}

	NewRunner(broker, crawler, WithRecordSink(sink)).Process(context.Background(), job)

	if broker.completed == nil {
		t.Fatal("persistence failure must not fail the job")
	}
	if len(broker.completed.Records) != 1 {
		t.Fatalf("records must survive in the envelope: %+v", broker.completed.Records)
	}
}

func TestRunnerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	broker := &stubRunnerBroker{onDequeue: func(calls int) {
		if calls >= 2 {
			cancel()
		}
	}}

	runner := NewRunner(broker, &stubCrawler{})
	err := runner.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if broker.dequeues < 2 {
		t.Fatalf("expected the loop to poll, got %d dequeues", broker.dequeues)
	}
}

type stubRunnerBroker struct {
	mu sync.Mutex

	dequeues  int
	onDequeue func(calls int)

	progress    []entity.JobProgress
	completed   *entity.JobResult
	completeErr error
	failed      *entity.Job
	failReason  string
}

func (s *stubRunnerBroker) Dequeue(ctx context.Context) (*entity.Job, error) {
	s.mu.Lock()
	s.dequeues++
	calls := s.dequeues
	s.mu.Unlock()
	if s.onDequeue != nil {
		s.onDequeue(calls)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, nil
}

func (s *stubRunnerBroker) SetProgress(_ context.Context, _ uuid.UUID, progress entity.JobProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, progress)
	return nil
}

func (s *stubRunnerBroker) Complete(_ context.Context, _ uuid.UUID, result *entity.JobResult) error {
	if s.completeErr != nil {
		return s.completeErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = result
	return nil
}

func (s *stubRunnerBroker) Fail(_ context.Context, job *entity.Job, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = job
	s.failReason = reason
	return nil
}

type stubCrawler struct {
	results map[string]*entity.SiteResult
	delay   time.Duration
}

func (s *stubCrawler) CrawlSite(_ context.Context, site entity.Site, _ int) *entity.SiteResult {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if result, ok := s.results[site.Host]; ok {
		return result
	}
	return entity.NewSiteResult(site)
}

type stubSink struct {
	mu       sync.Mutex
	received []entity.ContactRecord
	err      error
}

func (s *stubSink) UpsertRecords(_ context.Context, records []entity.ContactRecord) (repository.UpsertResult, error) {
	if s.err != nil {
		return repository.UpsertResult{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, records...)
	return repository.UpsertResult{Inserted: len(records), Total: len(records)}, nil
}
