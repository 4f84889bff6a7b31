package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/dvloznov/finchat/internal/api/middleware"
	"github.com/dvloznov/finchat/internal/export"
	"github.com/dvloznov/finchat/internal/gcs"
	"github.com/dvloznov/finchat/internal/jobs"
	"github.com/dvloznov/finchat/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ExportsHandler enqueues export jobs and hands out their files.
type ExportsHandler struct {
	store     store.Store
	publisher jobs.Publisher
	jobs      jobs.JobStore
	storage   gcs.StorageService
	urlExpiry time.Duration
	log       zerolog.Logger
}

// NewExportsHandler creates a new exports handler.
func NewExportsHandler(st store.Store, publisher jobs.Publisher, jobStore jobs.JobStore, storage gcs.StorageService, urlExpiry time.Duration, log zerolog.Logger) *ExportsHandler {
	return &ExportsHandler{
		store:     st,
		publisher: publisher,
		jobs:      jobStore,
		storage:   storage,
		urlExpiry: urlExpiry,
		log:       log,
	}
}

// CreateExport handles POST /api/accounts/{accountID}/exports
func (h *ExportsHandler) CreateExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")

	var req struct {
		Format string `json:"format"`
		From   string `json:"from"`
		To     string `json:"to"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}

	job := &jobs.Job{Type: jobs.JobTypeExport, AccountID: accountID, Format: string(format)}
	for _, b := range []struct {
		value string
		dst   **time.Time
	}{{req.From, &job.From}, {req.To, &job.To}} {
		if b.value == "" {
			continue
		}
		t, err := time.Parse(dateLayout, b.value)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid date format")
			return
		}
		*b.dst = &t
	}

	if _, err := h.store.GetAccount(ctx, accountID); err != nil {
		writeStoreError(w, h.log, err, "Failed to load account")
		return
	}

	if err := h.publisher.Publish(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue export job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue export job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("account_id", accountID).Msg("Export job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// Download handles GET /api/exports/{jobID}/download. It redirects to a
// signed URL when the storage can mint one and streams the file otherwise.
func (h *ExportsHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "jobID")

	job, err := h.jobs.GetJob(ctx, jobID)
	if err != nil || job.Type != jobs.JobTypeExport {
		middleware.WriteError(w, http.StatusNotFound, "Export not found")
		return
	}
	if job.Status != jobs.JobStatusCompleted || job.Result == "" {
		middleware.WriteJSON(w, http.StatusConflict, map[string]string{
			"error":  "Export not ready",
			"status": string(job.Status),
		})
		return
	}

	url, err := h.storage.SignedURL(ctx, job.Result, h.urlExpiry)
	if err == nil {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	if !errors.Is(err, gcs.ErrSigningUnsupported) {
		h.log.Warn().Err(err).Str("job_id", jobID).Msg("Failed to sign export URL, streaming instead")
	}

	data, err := h.storage.Download(ctx, job.Result)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to read export")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read export")
		return
	}

	format, _ := export.ParseFormat(job.Format)
	filename := gcs.Filename(job.Result)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(filename)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
