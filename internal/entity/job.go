package entity

import "github.com/google/uuid"

// Job lifecycle states as reported to API clients.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// CrawlOptions configures one enrichment job.
type CrawlOptions struct {
	MaxPages    int    `json:"max_pages"`
	Concurrency int    `json:"concurrency"`
	Tags        string `json:"tags,omitempty"`
	User        string `json:"user,omitempty"`
}

// Job is the unit of work consumed from the broker.
type Job struct {
	ID      uuid.UUID    `json:"job_id"`
	Sites   []Site       `json:"sites"`
	Config  CrawlOptions `json:"config"`
	Attempt int          `json:"attempt"`
}

// JobProgress is published to the broker at least once per site.
type JobProgress struct {
	Percentage int    `json:"percentage"`
	Current    string `json:"current,omitempty"`
	Processed  int    `json:"processed"`
	Total      int    `json:"total"`
	Found      int    `json:"found"`
}

// HostErrors groups a site's failure entries under its host for the job envelope.
type HostErrors struct {
	Host   string      `json:"host"`
	Errors []SiteError `json:"errors"`
}

// JobStats summarises a completed job.
type JobStats struct {
	TotalSites        int     `json:"total_sites"`
	TotalRecords      int     `json:"total_records"`
	TotalErrors       int     `json:"total_errors"`
	AvgRecordsPerSite float64 `json:"avg_records_per_site"`
}

// JobResult is the envelope every job resolves with, partial results included.
type JobResult struct {
	Records []ContactRecord `json:"records"`
	Errors  []HostErrors    `json:"errors"`
	Stats   JobStats        `json:"stats"`
}
