package crawler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/octobees/contact-crawler/internal/entity"
	"github.com/octobees/contact-crawler/internal/monitoring"
	"github.com/octobees/contact-crawler/internal/service"
)

// Candidate paths tried per site, in order, after the root page.
// The crawl targets the Swedish market, hence the locale mix.
var candidatePaths = []string{
	"/kontakt",
	"/kontakta-oss",
	"/om",
	"/om-oss",
	"/about",
	"/contact",
}

// PageCache memoizes per-URL crawl results. Implementations must treat
// failures as soft: a broken cache never fails a crawl.
type PageCache interface {
	Get(ctx context.Context, url string) (*entity.PageResult, bool)
	Set(ctx context.Context, url string, page *entity.PageResult)
}

// SiteCrawler runs the per-site fetch/parse/extract/aggregate state
// machine. Pages within one site are visited sequentially; instances
// are safe for concurrent use across sites.
type SiteCrawler struct {
	gate       *SafeURLGate
	robots     *RobotsCache
	limiter    *Limiter
	fetcher    *Fetcher
	classifier *service.EmailClassifier
	dnc        *service.DNCList
	tos        *service.TOSList

	cache           PageCache
	metrics         *monitoring.Metrics
	betweenRequests time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
}

// SiteCrawlerOption configures optional dependencies.
type SiteCrawlerOption func(*SiteCrawler)

// WithPageCache attaches the response cache.
func WithPageCache(cache PageCache) SiteCrawlerOption {
	return func(c *SiteCrawler) {
		c.cache = cache
	}
}

// WithSiteMetrics attaches the metrics surface.
func WithSiteMetrics(metrics *monitoring.Metrics) SiteCrawlerOption {
	return func(c *SiteCrawler) {
		c.metrics = metrics
	}
}

// WithBetweenRequests overrides the politeness pause between page visits.
func WithBetweenRequests(d time.Duration) SiteCrawlerOption {
	return func(c *SiteCrawler) {
		c.betweenRequests = d
	}
}

// WithCrawlSleep overrides the sleep function, used by tests.
func WithCrawlSleep(sleep func(ctx context.Context, d time.Duration) error) SiteCrawlerOption {
	return func(c *SiteCrawler) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// NewSiteCrawler wires the pipeline stages together.
func NewSiteCrawler(
	gate *SafeURLGate,
	robots *RobotsCache,
	limiter *Limiter,
	fetcher *Fetcher,
	classifier *service.EmailClassifier,
	dnc *service.DNCList,
	tos *service.TOSList,
	opts ...SiteCrawlerOption,
) *SiteCrawler {
	c := &SiteCrawler{
		gate:            gate,
		robots:          robots,
		limiter:         limiter,
		fetcher:         fetcher,
		classifier:      classifier,
		dnc:             dnc,
		tos:             tos,
		betweenRequests: 150 * time.Millisecond,
		sleep:           sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CrawlSite visits up to maxPages candidate pages and aggregates their
// extractions. Per-page failures are recorded and skipped; the method
// always returns a result, possibly empty.
func (c *SiteCrawler) CrawlSite(ctx context.Context, site entity.Site, maxPages int) *entity.SiteResult {
	result := entity.NewSiteResult(site)

	if c.dnc.Has(site.Host) {
		result.AddError("", "Domain on Do-Not-Contact list")
		return result
	}
	if reason, hit := c.tos.Match(site.Host); hit {
		result.AddError("", reason)
	}

	for _, pageURL := range CandidateURLs(site.RootURL, maxPages) {
		if ctx.Err() != nil {
			break
		}
		if err := c.sleep(ctx, c.betweenRequests); err != nil {
			break
		}

		page, err := c.crawlURL(ctx, pageURL, site.Host)
		if err != nil {
			// A robots disallow is compliance, not a failure.
			if !errors.Is(err, ErrRobotsDisallow) {
				result.AddError(pageURL, err.Error())
				log.Printf("page crawl failed host=%s url=%s err=%v", site.Host, pageURL, err)
			}
			continue
		}
		if page == nil {
			continue
		}
		c.merge(ctx, result, pageURL, page, site.Host)
	}

	return result
}

// CandidateURLs builds the ordered page list for a site, truncated to
// maxPages. The root page always comes first.
func CandidateURLs(rootURL string, maxPages int) []string {
	if maxPages < 1 {
		maxPages = 1
	}
	root := rootURL
	for len(root) > 0 && root[len(root)-1] == '/' {
		root = root[:len(root)-1]
	}

	urls := make([]string, 0, maxPages)
	urls = append(urls, rootURL)
	for _, path := range candidatePaths {
		if len(urls) >= maxPages {
			break
		}
		urls = append(urls, root+path)
	}
	return urls
}

// crawlURL runs one URL through the full gate sequence. It returns nil
// on any gate rejection or fetch failure.
func (c *SiteCrawler) crawlURL(ctx context.Context, pageURL, host string) (*entity.PageResult, error) {
	if c.cache != nil {
		if page, hit := c.cache.Get(ctx, pageURL); hit {
			return page, nil
		}
	}

	if err := c.gate.Check(ctx, pageURL); err != nil {
		return nil, err
	}

	allowed, crawlDelay := c.robots.Allowed(ctx, pageURL)
	if !allowed {
		c.metrics.Request(monitoring.StatusRobotsBlocked, host)
		c.metrics.Robots(host)
		return nil, ErrRobotsDisallow
	}
	if crawlDelay > 0 {
		pause := crawlDelay
		if pause < c.betweenRequests {
			pause = c.betweenRequests
		}
		if err := c.sleep(ctx, pause); err != nil {
			return nil, err
		}
	}

	var html string
	err := c.limiter.DoWithRetry(ctx, host, func() error {
		fetched, ferr := c.fetcher.FetchHTML(ctx, pageURL)
		if ferr != nil {
			return ferr
		}
		html = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}

	if vendor, found := DetectCaptcha(html); found {
		c.metrics.Request(monitoring.StatusCaptcha, host)
		return nil, &CaptchaError{Vendor: vendor}
	}

	extraction := Extract(pageURL, html)
	page := &entity.PageResult{
		Emails:  service.CleanEmails(extraction.Emails),
		Phones:  service.NormalizePhones(extraction.PhoneCandidates),
		Socials: extraction.Socials,
	}

	if c.cache != nil {
		c.cache.Set(ctx, pageURL, page)
	}
	return page, nil
}

// merge folds one page's result into the site aggregate. Emails are
// classified once, on first sighting; later sightings only append their
// source. Social fields keep the first non-empty value.
func (c *SiteCrawler) merge(ctx context.Context, result *entity.SiteResult, pageURL string, page *entity.PageResult, host string) {
	result.SourcePages = append(result.SourcePages, pageURL)

	for _, evidence := range page.Emails {
		if info, known := result.Emails[evidence.Email]; known {
			info.Sources = appendSource(info.Sources, evidence.Source)
			continue
		}
		cls := c.classifier.Classify(ctx, evidence.Email, host)
		result.Emails[evidence.Email] = &entity.EmailInfo{
			EmailType:     cls.EmailType,
			Confidence:    cls.Confidence,
			Sources:       []string{evidence.Source},
			DiscoveryPath: evidence.Source,
		}
		c.metrics.Contact(monitoring.ContactEmail)
	}

	for _, phone := range page.Phones {
		before := len(result.Phones)
		result.AddPhone(phone)
		if len(result.Phones) > before {
			c.metrics.Contact(monitoring.ContactPhone)
		}
	}

	beforeSocials := result.Socials
	result.Socials.Merge(page.Socials)
	if result.Socials != beforeSocials {
		c.metrics.Contact(monitoring.ContactSocial)
	}
}

func appendSource(sources []string, source string) []string {
	for _, known := range sources {
		if known == source {
			return sources
		}
	}
	return append(sources, source)
}
