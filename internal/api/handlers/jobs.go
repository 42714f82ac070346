package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/export"
	"github.com/dvloznov/finance-ledger/internal/jobs"
	"github.com/rs/zerolog"
)

// JobPublisher enqueues background jobs.
type JobPublisher interface {
	Publish(ctx context.Context, job *jobs.LedgerJob) error
}

// JobReader reads job state.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*jobs.LedgerJob, error)
	ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.LedgerJob, error)
}

// JobsHandler handles endpoints that start and inspect background jobs.
type JobsHandler struct {
	publisher     JobPublisher
	store         JobReader
	notionEnabled bool
	log           zerolog.Logger
}

// NewJobsHandler creates a new jobs handler. notionEnabled reports whether
// Notion sync jobs can run.
func NewJobsHandler(publisher JobPublisher, store JobReader, notionEnabled bool, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{publisher: publisher, store: store, notionEnabled: notionEnabled, log: log}
}

type exportRequest struct {
	Format    string `json:"format"`
	AccountID string `json:"accountId"`
	Category  string `json:"category"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type notionSyncRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	DryRun    bool   `json:"dryRun"`
}

// CreateExport handles POST /api/exports
func (h *JobsHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}
	from, to, err := dateRange(req.StartDate, req.EndDate)
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	job := &jobs.LedgerJob{
		Type:    jobs.JobTypeExportTransactions,
		OwnerID: owner,
		Export: &jobs.ExportParams{
			Format:    string(format),
			AccountID: req.AccountID,
			Category:  req.Category,
			StartDate: from,
			EndDate:   to,
		},
	}
	h.publish(w, r, job)
}

// StartNotionSync handles POST /api/notion-sync
func (h *JobsHandler) StartNotionSync(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	if !h.notionEnabled {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Notion sync is not configured")
		return
	}

	var req notionSyncRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			middleware.WriteServiceError(w, h.log, err)
			return
		}
	}
	from, to, err := dateRange(req.StartDate, req.EndDate)
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}

	job := &jobs.LedgerJob{
		Type:    jobs.JobTypeSyncNotion,
		OwnerID: owner,
		Sync: &jobs.NotionSyncParams{
			StartDate: from,
			EndDate:   to,
			DryRun:    req.DryRun,
		},
	}
	h.publish(w, r, job)
}

func (h *JobsHandler) publish(w http.ResponseWriter, r *http.Request, job *jobs.LedgerJob) {
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("job_type", string(job.Type)).Msg("Failed to publish job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Job queue unavailable")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("job_type", string(job.Type)).
		Str("owner_id", job.OwnerID).
		Msg("Job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.JobID,
		"status": job.Status,
	})
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := jobs.JobFilter{
		OwnerID: owner,
		Type:    jobs.JobType(query.Get("type")),
		Status:  jobs.JobStatus(query.Get("status")),
		Limit:   50,
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}
	if list == nil {
		list = []*jobs.LedgerJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	job, err := h.store.GetJob(r.Context(), r.PathValue("id"))
	if errors.Is(err, jobs.ErrJobNotFound) || (err == nil && job.OwnerID != owner) {
		// Other users' jobs are reported as missing.
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		middleware.WriteServiceError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}
