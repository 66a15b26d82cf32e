package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/apexcrm/lead-console/internal/observability/metrics"
	"github.com/apexcrm/lead-console/pkg/logging"
)

// Notifier is told about newly captured leads. Implementations must not
// fail the capture path.
type Notifier interface {
	LeadCaptured(ctx context.Context, lead *Lead)
}

// Handler handles HTTP requests for leads
type Handler struct {
	repo     Repository
	logger   *logging.Logger
	metrics  *metrics.LeadMetrics
	notifier Notifier
}

// NewHandler creates a new leads handler
func NewHandler(repo Repository, logger *logging.Logger, m *metrics.LeadMetrics, notifier Notifier) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:     repo,
		logger:   logger,
		metrics:  m,
		notifier: notifier,
	}
}

// Create handles POST /leads requests.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var draft Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		h.logger.Error("failed to decode request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := draft.Validate(); err != nil {
		h.metrics.ObserveOp("create", "invalid")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	lead := &Lead{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(draft.Name),
		Email:     strings.TrimSpace(draft.Email),
		Phone:     strings.TrimSpace(draft.Phone),
		Status:    StatusNew,
		Source:    SourceManual,
		CreatedAt: time.Now().UTC(),
	}

	created, err := h.repo.Create(r.Context(), lead)
	if err != nil {
		h.logger.Error("failed to create lead", "error", err)
		h.metrics.ObserveOp("create", "error")
		http.Error(w, "failed to create lead", http.StatusInternalServerError)
		return
	}

	h.logger.Info("lead created", "id", created.ID, "source", created.Source)
	h.metrics.ObserveOp("create", "ok")
	if h.notifier != nil {
		h.notifier.LeadCaptured(r.Context(), created)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(created)
}

// List handles GET /leads requests. Leads come back newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list leads", "error", err)
		h.metrics.ObserveOp("list", "error")
		http.Error(w, "failed to list leads", http.StatusInternalServerError)
		return
	}
	if all == nil {
		all = []*Lead{}
	}

	h.metrics.ObserveOp("list", "ok")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(all)
}

// UpdateStatus handles PUT /leads/{id} requests with a partial status body.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing lead id", http.StatusBadRequest)
		return
	}

	var update StatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.repo.UpdateStatus(r.Context(), id, update.Status)
	switch {
	case errors.Is(err, ErrInvalidStatus):
		h.metrics.ObserveOp("update_status", "invalid")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrLeadNotFound):
		h.metrics.ObserveOp("update_status", "not_found")
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("failed to update lead status", "error", err, "id", id)
		h.metrics.ObserveOp("update_status", "error")
		http.Error(w, "failed to update lead", http.StatusInternalServerError)
		return
	}

	h.logger.Info("lead status updated", "id", id, "status", update.Status)
	h.metrics.ObserveOp("update_status", "ok")
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /leads/{id} requests.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing lead id", http.StatusBadRequest)
		return
	}

	err := h.repo.Delete(r.Context(), id)
	switch {
	case errors.Is(err, ErrLeadNotFound):
		h.metrics.ObserveOp("delete", "not_found")
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("failed to delete lead", "error", err, "id", id)
		h.metrics.ObserveOp("delete", "error")
		http.Error(w, "failed to delete lead", http.StatusInternalServerError)
		return
	}

	h.logger.Info("lead deleted", "id", id)
	h.metrics.ObserveOp("delete", "ok")

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Lead deleted successfully"})
}
