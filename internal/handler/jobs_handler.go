package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-crawler/internal/config"
	"github.com/octobees/contact-crawler/internal/dto"
	"github.com/octobees/contact-crawler/internal/entity"
	"github.com/octobees/contact-crawler/internal/ingest"
	middlewarepkg "github.com/octobees/contact-crawler/internal/middleware"
	"github.com/octobees/contact-crawler/internal/queue"
)

const maxJobSites = 500

// JobBroker is the slice of the queue the API needs.
type JobBroker interface {
	Enqueue(ctx context.Context, job *entity.Job) error
	Snapshot(ctx context.Context, jobID uuid.UUID) (*queue.Snapshot, error)
}

// JobsHandler exposes enrichment job submission and status endpoints.
type JobsHandler struct {
	broker JobBroker
}

// NewJobsHandler constructs a JobsHandler.
func NewJobsHandler(broker JobBroker) *JobsHandler {
	return &JobsHandler{broker: broker}
}

// Create handles POST /jobs requests. The site list arrives either as a
// multipart CSV upload under "file" or as a JSON payload.
func (h *JobsHandler) Create(c echo.Context) error {
	sites, rejected, opts, err := h.readSubmission(c)
	if err != nil {
		var validationErr *ingest.CSVValidationError
		if errors.As(err, &validationErr) {
			return Error(c, http.StatusBadRequest, validationErr.Error())
		}
		return Error(c, http.StatusBadRequest, err.Error())
	}
	if len(sites) == 0 {
		return Error(c, http.StatusBadRequest, "no crawlable sites in submission")
	}
	if len(sites) > maxJobSites {
		return Error(c, http.StatusBadRequest, "too many sites in one job")
	}

	clamped, notes := config.ClampOptions(opts)
	if email, ok := c.Get(middlewarepkg.ContextKeyUserEmail).(string); ok {
		clamped.User = email
	}

	job := &entity.Job{
		ID:     uuid.New(),
		Sites:  sites,
		Config: clamped,
	}
	if err := h.broker.Enqueue(c.Request().Context(), job); err != nil {
		return Error(c, http.StatusServiceUnavailable, "unable to enqueue job")
	}

	return Success(c, http.StatusAccepted, "job queued", dto.CreateJobResponse{
		JobID:           job.ID.String(),
		Sites:           len(sites),
		Rejected:        rejected,
		ValidationNotes: notes,
	})
}

// Status handles GET /jobs/:id requests.
func (h *JobsHandler) Status(c echo.Context) error {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, "invalid job id")
	}

	snap, err := h.broker.Snapshot(c.Request().Context(), jobID)
	if err != nil {
		if errors.Is(err, queue.ErrJobNotFound) {
			return Error(c, http.StatusNotFound, "job not found")
		}
		return Error(c, http.StatusInternalServerError, "unable to load job")
	}

	return Success(c, http.StatusOK, "job status", dto.NewJobStatusResponse(jobID.String(), snap))
}

func (h *JobsHandler) readSubmission(c echo.Context) ([]entity.Site, []ingest.RejectedRow, entity.CrawlOptions, error) {
	var opts entity.CrawlOptions

	if fileHeader, err := c.FormFile("file"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			return nil, nil, opts, errors.New("unable to open file")
		}
		defer file.Close()

		sites, rejected, err := ingest.ParseSites(file)
		if err != nil {
			return nil, nil, opts, err
		}
		opts.MaxPages = intFormValue(c, "max_pages")
		opts.Concurrency = intFormValue(c, "concurrency")
		opts.Tags = c.FormValue("tags")
		return sites, rejected, opts, nil
	}

	var req dto.CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return nil, nil, opts, errors.New("invalid payload")
	}

	var sites []entity.Site
	var rejected []ingest.RejectedRow
	seen := make(map[string]struct{})
	for i, input := range req.Sites {
		site, reason := ingest.NormalizeSite(input.Website)
		if reason != "" {
			rejected = append(rejected, ingest.RejectedRow{Row: i + 1, Website: input.Website, Reason: reason})
			continue
		}
		site.CompanyName = input.CompanyName
		if _, dup := seen[site.Host]; dup {
			continue
		}
		seen[site.Host] = struct{}{}
		sites = append(sites, site)
	}

	opts = entity.CrawlOptions{
		MaxPages:    req.Config.MaxPages,
		Concurrency: req.Config.Concurrency,
		Tags:        req.Config.Tags,
	}
	return sites, rejected, opts, nil
}

func intFormValue(c echo.Context, name string) int {
	parsed, err := strconv.Atoi(c.FormValue(name))
	if err != nil {
		return 0
	}
	return parsed
}
