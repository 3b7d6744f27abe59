package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-crawler/internal/dto"
	"github.com/octobees/contact-crawler/internal/entity"
	"github.com/octobees/contact-crawler/internal/queue"
)

func TestJobsHandlerCreateFromJSON(t *testing.T) {
	broker := &stubBroker{}
	h := NewJobsHandler(broker)

	body := `{"sites":[{"website":"acme.se","company_name":"Acme AB"},{"website":"https://www.facebook.com/acme"}],"config":{"max_pages":50}}`
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	if broker.enqueued == nil {
		t.Fatal("expected a job on the broker")
	}
	if len(broker.enqueued.Sites) != 1 || broker.enqueued.Sites[0].Host != "acme.se" {
		t.Fatalf("unexpected sites: %+v", broker.enqueued.Sites)
	}
	if broker.enqueued.Sites[0].CompanyName != "Acme AB" {
		t.Fatalf("company name lost: %+v", broker.enqueued.Sites[0])
	}
	if broker.enqueued.Config.MaxPages != 10 {
		t.Fatalf("expected max_pages clamped to 10, got %d", broker.enqueued.Config.MaxPages)
	}

	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	raw, _ := json.Marshal(resp.Data)
	var created dto.CreateJobResponse
	if err := json.Unmarshal(raw, &created); err != nil {
		t.Fatalf("invalid data payload: %v", err)
	}
	if created.JobID != broker.enqueued.ID.String() {
		t.Fatalf("job id mismatch: %s", created.JobID)
	}
	if len(created.Rejected) != 1 || !strings.Contains(created.Rejected[0].Reason, "facebook") {
		t.Fatalf("expected facebook rejection, got %+v", created.Rejected)
	}
	if len(created.ValidationNotes) != 1 {
		t.Fatalf("expected a clamping note, got %v", created.ValidationNotes)
	}
}

func TestJobsHandlerCreateFromCSV(t *testing.T) {
	broker := &stubBroker{}
	h := NewJobsHandler(broker)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "sites.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("company,website\nAcme AB,https://acme.se\n"))
	writer.WriteField("max_pages", "3")
	writer.Close()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/jobs", &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if broker.enqueued == nil || len(broker.enqueued.Sites) != 1 {
		t.Fatalf("expected one site, got %+v", broker.enqueued)
	}
	if broker.enqueued.Config.MaxPages != 3 {
		t.Fatalf("expected max_pages 3 from form field, got %d", broker.enqueued.Config.MaxPages)
	}
}

func TestJobsHandlerCreateRejectsEmptySubmission(t *testing.T) {
	h := NewJobsHandler(&stubBroker{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"sites":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestJobsHandlerCreateBrokerDown(t *testing.T) {
	h := NewJobsHandler(&stubBroker{enqueueErr: errors.New("redis down")})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(`{"sites":[{"website":"acme.se"}]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Create(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestJobsHandlerStatus(t *testing.T) {
	jobID := uuid.New()
	broker := &stubBroker{
		snapshots: map[uuid.UUID]*queue.Snapshot{
			jobID: {Status: entity.JobStatusRunning, Progress: &entity.JobProgress{Percentage: 40}},
		},
	}
	h := NewJobsHandler(broker)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/jobs/"+jobID.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/jobs/:id")
	c.SetParamNames("id")
	c.SetParamValues(jobID.String())

	if err := h.Status(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"running"`) {
		t.Fatalf("expected running status in body: %s", rec.Body.String())
	}
}

func TestJobsHandlerStatusErrors(t *testing.T) {
	h := NewJobsHandler(&stubBroker{})
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/jobs/:id")
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	if err := h.Status(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/jobs/"+uuid.NewString(), nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetPath("/jobs/:id")
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())
	if err := h.Status(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", rec.Code)
	}
}

type stubBroker struct {
	enqueued   *entity.Job
	enqueueErr error
	snapshots  map[uuid.UUID]*queue.Snapshot
}

func (s *stubBroker) Enqueue(_ context.Context, job *entity.Job) error {
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.enqueued = job
	return nil
}

func (s *stubBroker) Snapshot(_ context.Context, jobID uuid.UUID) (*queue.Snapshot, error) {
	if snap, ok := s.snapshots[jobID]; ok {
		return snap, nil
	}
	return nil, queue.ErrJobNotFound
}
