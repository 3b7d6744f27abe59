package dto

import (
	"github.com/octobees/contact-crawler/internal/entity"
	"github.com/octobees/contact-crawler/internal/ingest"
	"github.com/octobees/contact-crawler/internal/queue"
)

// CreateJobRequest is the JSON alternative to a multipart CSV upload.
type CreateJobRequest struct {
	Sites  []SiteInput `json:"sites"`
	Config ConfigInput `json:"config"`
}

// SiteInput is one crawl target as submitted by the client.
type SiteInput struct {
	Website     string `json:"website"`
	CompanyName string `json:"company_name,omitempty"`
}

// ConfigInput carries the per-job crawl options; out-of-range values are
// clamped server-side rather than rejected.
type ConfigInput struct {
	MaxPages    int    `json:"max_pages,omitempty"`
	Concurrency int    `json:"concurrency,omitempty"`
	Tags        string `json:"tags,omitempty"`
}

// CreateJobResponse acknowledges an enqueued job.
type CreateJobResponse struct {
	JobID           string               `json:"job_id"`
	Sites           int                  `json:"sites"`
	Rejected        []ingest.RejectedRow `json:"rejected,omitempty"`
	ValidationNotes []string             `json:"validation_notes,omitempty"`
}

// JobStatusResponse reports a job's lifecycle state and, when available,
// its progress and final result envelope.
type JobStatusResponse struct {
	JobID    string              `json:"job_id"`
	Status   string              `json:"status"`
	Progress *entity.JobProgress `json:"progress,omitempty"`
	Result   *entity.JobResult   `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// NewJobStatusResponse maps a broker snapshot onto the API shape.
func NewJobStatusResponse(jobID string, snap *queue.Snapshot) JobStatusResponse {
	return JobStatusResponse{
		JobID:    jobID,
		Status:   snap.Status,
		Progress: snap.Progress,
		Result:   snap.Result,
		Error:    snap.Error,
	}
}
