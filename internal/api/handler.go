package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"DocRelay/internal/delivery"
	"DocRelay/internal/models"
	"DocRelay/internal/pipeline"
)

type Store interface {
	delivery.DocumentSource
	InsertHistory(ctx context.Context, rec *models.DeliveryHistory) error
	MarkHistoryFailed(ctx context.Context, id string, errorMsg string) error
	StatusHistory(ctx context.Context, candidateID, projectID string) ([]models.StatusEntry, error)
}

// Handler serves the intake endpoints. It owns the send side of Jobs: call
// Close once the HTTP server has shut down, never close Jobs directly.
type Handler struct {
	Store Store
	Jobs  chan<- models.DeliveryJob
	Log   *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// Close stops intake and closes Jobs. Sends already in flight finish first.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.Jobs)
}

type forwardRequest struct {
	RecipientEmail string   `json:"recipientEmail"`
	CC             []string `json:"cc"`
	BCC            []string `json:"bcc"`
	CandidateID    string   `json:"candidateId"`
	ProjectID      string   `json:"projectId"`
	RoleCatalogID  string   `json:"roleCatalogId"`
	Notes          string   `json:"notes"`
	DocumentIDs    []string `json:"documentIds"`
}

func (r forwardRequest) validate() error {
	switch {
	case strings.TrimSpace(r.RecipientEmail) == "":
		return errors.New("recipientEmail is required")
	case r.CandidateID == "":
		return errors.New("candidateId is required")
	case r.ProjectID == "":
		return errors.New("projectId is required")
	case len(r.DocumentIDs) == 0:
		return errors.New("documentIds must not be empty")
	}
	return nil
}

// ForwardSingle records a pending delivery for the verified documents among
// documentIds and queues it.
func (h *Handler) ForwardSingle(w http.ResponseWriter, r *http.Request) {
	var req forwardRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	docs, err := delivery.NewResolver(h.Store).Resolve(ctx, models.CandidateSelection{
		CandidateID: req.CandidateID,
		SendType:    models.SendIndividual,
		DocumentIDs: req.DocumentIDs,
	}, req.ProjectID)
	if err != nil {
		h.Log.Error("document lookup failed", zap.Error(err))
		http.Error(w, "document lookup failed", http.StatusInternalServerError)
		return
	}
	if len(docs) == 0 {
		http.Error(w, "none of the requested documents are verified", http.StatusUnprocessableEntity)
		return
	}

	rec := &models.DeliveryHistory{
		RecipientEmail:  strings.TrimSpace(req.RecipientEmail),
		CCEmails:        req.CC,
		BCCEmails:       req.BCC,
		CandidateID:     req.CandidateID,
		ProjectID:       req.ProjectID,
		RoleCatalogID:   optional(req.RoleCatalogID),
		Notes:           optional(req.Notes),
		DocumentDetails: docs,
	}

	if err := h.Store.InsertHistory(ctx, rec); err != nil {
		h.Log.Error("insert delivery history failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	job, err := delivery.NewSingleForwardJob(uuid.NewString(), rec.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !h.enqueue(ctx, job) {
		// The record must not stay pending for a job that was never queued.
		if err := h.Store.MarkHistoryFailed(context.WithoutCancel(ctx), rec.ID, "delivery was not queued"); err != nil {
			h.Log.Error("failed to update failure status", zap.String("history_id", rec.ID), zap.Error(err))
		}
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"historyId": rec.ID,
		"jobId":     job.ID,
	})
}

// ForwardBulk queues a batch delivery.
func (h *Handler) ForwardBulk(w http.ResponseWriter, r *http.Request) {
	var payload models.BulkForwardPayload

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := delivery.ValidateBulk(payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(payload.Selections) == 0 {
		http.Error(w, "selections must not be empty", http.StatusBadRequest)
		return
	}

	job, err := delivery.NewBulkForwardJob(uuid.NewString(), payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if !h.enqueue(r.Context(), job) {
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"jobId":      job.ID,
		"candidates": len(payload.Selections),
	})
}

// Progress reports the candidate's current canonical status and completion
// percentage within a project.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	candidateID := r.PathValue("candidateId")
	projectID := r.PathValue("projectId")

	history, err := h.Store.StatusHistory(r.Context(), candidateID, projectID)
	if err != nil {
		h.Log.Error("status history lookup failed", zap.Error(err))
		http.Error(w, "status history lookup failed", http.StatusInternalServerError)
		return
	}

	current, pct := pipeline.Progress(history)
	progressKey, _ := pipeline.ToProgressKey(current)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"candidateId":   candidateID,
		"projectId":     projectID,
		"currentStatus": current,
		"progressKey":   progressKey,
		"progress":      pct,
	})
}

// enqueue hands job to the workers. It gives up when the handler is closed
// or ctx ends, which on shutdown is the server's base context.
func (h *Handler) enqueue(ctx context.Context, job models.DeliveryJob) bool {
	job.EnqueuedAt = time.Now().UTC()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		h.Log.Warn("enqueue refused, intake closed", zap.String("job_id", job.ID))
		return false
	}

	select {
	case h.Jobs <- job:
		h.Log.Info("job enqueued",
			zap.String("job_id", job.ID),
			zap.String("kind", string(job.Kind)),
		)
		return true
	case <-ctx.Done():
		h.Log.Warn("enqueue abandoned", zap.String("job_id", job.ID), zap.Error(ctx.Err()))
		return false
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
