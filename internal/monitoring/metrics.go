package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcome labels for the crawl_requests_total counter.
const (
	StatusSuccess       = "success"
	StatusError         = "error"
	StatusTimeout       = "timeout"
	StatusBlocked       = "blocked"
	StatusNotFound      = "404"
	StatusNonHTML       = "non-html"
	StatusRobotsBlocked = "robots-blocked"
	StatusCaptcha       = "captcha"
)

// Contact type labels for the contacts_found_total counter.
const (
	ContactEmail  = "email"
	ContactPhone  = "phone"
	ContactSocial = "social"
)

// Metrics holds all Prometheus instruments for the crawl pipeline.
type Metrics struct {
	CrawlRequests *prometheus.CounterVec
	CrawlDuration prometheus.Histogram
	ActiveJobs    prometheus.Gauge
	ContactsFound *prometheus.CounterVec
	RobotsBlocked *prometheus.CounterVec
}

// NewMetrics registers all instruments against the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CrawlRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crawl_requests_total",
			Help: "Page fetch attempts by outcome and host",
		}, []string{"status", "host"}),
		CrawlDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawl_duration_seconds",
			Help:    "Page fetch duration",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		ActiveJobs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crawl_active_jobs",
			Help: "Enrichment jobs currently being processed",
		}),
		ContactsFound: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "contacts_found_total",
			Help: "Discovered contact items by type",
		}, []string{"type"}),
		RobotsBlocked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "robots_blocked_total",
			Help: "URLs skipped because robots.txt disallows them",
		}, []string{"host"}),
	}
}

// Request increments the fetch outcome counter; nil receivers are no-ops
// so the pipeline can run without a metrics registry in tests.
func (m *Metrics) Request(status, host string) {
	if m == nil {
		return
	}
	m.CrawlRequests.WithLabelValues(status, host).Inc()
}

// Duration records one fetch duration in seconds.
func (m *Metrics) Duration(seconds float64) {
	if m == nil {
		return
	}
	m.CrawlDuration.Observe(seconds)
}

// Robots increments the robots-blocked counter for a host.
func (m *Metrics) Robots(host string) {
	if m == nil {
		return
	}
	m.RobotsBlocked.WithLabelValues(host).Inc()
}

// JobStarted bumps the active jobs gauge.
func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.ActiveJobs.Inc()
}

// JobFinished lowers the active jobs gauge.
func (m *Metrics) JobFinished() {
	if m == nil {
		return
	}
	m.ActiveJobs.Dec()
}

// Contact increments the discovered-contacts counter.
func (m *Metrics) Contact(kind string) {
	if m == nil {
		return
	}
	m.ContactsFound.WithLabelValues(kind).Inc()
}
