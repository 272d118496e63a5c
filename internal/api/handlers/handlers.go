package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/bank-recon/internal/api/middleware"
	infra "github.com/dvloznov/bank-recon/internal/infra/bigquery"
	"github.com/dvloznov/bank-recon/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ReconciliationsHandler handles reconciliation run endpoints.
type ReconciliationsHandler struct {
	repo         infra.RunRepository
	publisher    jobs.Publisher
	reportBucket string
	log          zerolog.Logger
}

// NewReconciliationsHandler creates a new reconciliations handler.
func NewReconciliationsHandler(repo infra.RunRepository, publisher jobs.Publisher, reportBucket string, log zerolog.Logger) *ReconciliationsHandler {
	return &ReconciliationsHandler{
		repo:         repo,
		publisher:    publisher,
		reportBucket: reportBucket,
		log:          log,
	}
}

// EnqueueRun handles POST /api/reconciliations
func (h *ReconciliationsHandler) EnqueueRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CashbookURI  string `json:"cashbook_uri"`
		BankURI      string `json:"bank_uri"`
		ReportBucket string `json:"report_bucket"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.CashbookURI == "" || req.BankURI == "" {
		middleware.WriteError(w, http.StatusBadRequest, "cashbook_uri and bank_uri are required")
		return
	}

	reportBucket := req.ReportBucket
	if reportBucket == "" {
		reportBucket = h.reportBucket
	}

	ctx := r.Context()

	job := &jobs.ReconcileJob{
		CashbookURI:  req.CashbookURI,
		BankURI:      req.BankURI,
		ReportBucket: reportBucket,
	}

	if err := h.publisher.PublishReconcile(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue reconciliation job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue reconciliation job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("cashbook_uri", req.CashbookURI).
		Str("bank_uri", req.BankURI).
		Msg("Reconciliation job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// ListRuns handles GET /api/reconciliations
func (h *ReconciliationsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil {
			limit = n
		}
	}

	runs, err := h.repo.ListRuns(ctx, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list reconciliation runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list reconciliation runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// LedgersHandler handles ledger file upload endpoints.
type LedgersHandler struct {
	bucket string
	log    zerolog.Logger
}

// NewLedgersHandler creates a new ledgers handler.
func NewLedgersHandler(bucket string, log zerolog.Logger) *LedgersHandler {
	return &LedgersHandler{
		bucket: bucket,
		log:    log,
	}
}

// CreateUploadURL handles POST /api/ledgers/upload-url
func (h *LedgersHandler) CreateUploadURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Filename == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Filename is required")
		return
	}

	// Generate unique object name
	objectName := fmt.Sprintf("ledgers/%s/%s", time.Now().Format("2006/01/02"), uuid.New().String()+"-"+req.Filename)
	gcsURI := fmt.Sprintf("gs://%s/%s", h.bucket, objectName)
	ledgerID := uuid.New().String()

	// For local development with user credentials, return direct upload URL
	// In production with service accounts, this would use signed URLs
	uploadURL := fmt.Sprintf("/api/ledgers/upload/%s?object_name=%s&filename=%s", ledgerID, url.QueryEscape(objectName), url.QueryEscape(req.Filename))

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"upload_url":  uploadURL,
		"gcs_uri":     gcsURI,
		"object_name": objectName,
		"ledger_id":   ledgerID,
	})
}

// UploadLedger handles POST /api/ledgers/upload/:ledgerId
// Direct upload endpoint for local development with user credentials
func (h *LedgersHandler) UploadLedger(w http.ResponseWriter, r *http.Request, ledgerID string) {
	ctx := r.Context()

	// Get object name from query parameter (passed from CreateUploadURL)
	objectName := r.URL.Query().Get("object_name")
	if objectName == "" {
		middleware.WriteError(w, http.StatusBadRequest, "object_name is required")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeForName(r.URL.Query().Get("filename"))
	}

	gcsURI := fmt.Sprintf("gs://%s/%s", h.bucket, objectName)

	// Upload to GCS
	client, err := storage.NewClient(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to create storage client")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}
	defer client.Close()

	wc := client.Bucket(h.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	// Copy request body directly to GCS
	written, err := io.Copy(wc, r.Body)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to write to GCS")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	if err := wc.Close(); err != nil {
		h.log.Error().Err(err).Msg("Failed to close GCS writer")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	h.log.Info().
		Str("ledger_id", ledgerID).
		Str("gcs_uri", gcsURI).
		Int64("bytes", written).
		Msg("Ledger uploaded successfully")

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"ledger_id": ledgerID,
		"gcs_uri":   gcsURI,
		"status":    "uploaded",
	})
}

// contentTypeForName picks a content type from the uploaded filename.
func contentTypeForName(filename string) string {
	if idx := strings.Index(filename, "?"); idx > 0 {
		filename = filename[:idx]
	}
	switch strings.ToLower(filepath.Ext(filepath.Base(filename))) {
	case ".csv":
		return "text/csv"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		RunID:  query.Get("run_id"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
