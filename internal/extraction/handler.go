package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/apexcrm/lead-console/internal/leads"
	"github.com/apexcrm/lead-console/internal/observability/metrics"
	"github.com/apexcrm/lead-console/pkg/logging"
)

const maxUploadBytes = 16 << 20 // 16 MiB

// Handler handles document-upload lead extraction.
type Handler struct {
	recognizer TextRecognizer
	repo       leads.Repository
	archive    *DocumentArchive
	notifier   leads.Notifier
	logger     *logging.Logger
	metrics    *metrics.LeadMetrics
	timeout    time.Duration
}

// NewHandler creates an extraction handler.
func NewHandler(recognizer TextRecognizer, repo leads.Repository, archive *DocumentArchive, notifier leads.Notifier, logger *logging.Logger, m *metrics.LeadMetrics, timeout time.Duration) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{
		recognizer: recognizer,
		repo:       repo,
		archive:    archive,
		notifier:   notifier,
		logger:     logger,
		metrics:    m,
		timeout:    timeout,
	}
}

// ExtractLead handles POST /extract-lead multipart uploads. Only
// application/pdf files are forwarded to the recognizer; everything else
// is rejected before any work happens.
func (h *Handler) ExtractLead(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer func() { _ = file.Close() }()

	if header.Header.Get("Content-Type") != MediaTypePDF {
		h.metrics.ObserveOp("extract", "unsupported")
		http.Error(w, ErrUnsupportedFileType.Error(), http.StatusUnsupportedMediaType)
		return
	}

	document, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read upload", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	text, err := h.recognizer.Recognize(ctx, document)
	if err != nil {
		h.logger.Error("document recognition failed", "error", err, "filename", header.Filename)
		h.metrics.ObserveOp("extract", "error")
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		http.Error(w, ErrExtractionFailed.Error(), status)
		return
	}

	fields := ExtractFields(text)
	lead := &leads.Lead{
		ID:        uuid.NewString(),
		Name:      fields.Name,
		Email:     fields.Email,
		Phone:     fields.Phone,
		Status:    leads.StatusNew,
		Source:    leads.SourceDocument,
		CreatedAt: time.Now().UTC(),
	}

	created, err := h.repo.Create(ctx, lead)
	if err != nil {
		h.logger.Error("failed to store extracted lead", "error", err)
		h.metrics.ObserveOp("extract", "error")
		http.Error(w, "failed to store lead", http.StatusInternalServerError)
		return
	}

	// Archive failures must not fail the capture.
	if h.archive.Enabled() {
		if err := h.archive.Store(ctx, created.ID, document); err != nil {
			h.logger.Error("failed to archive document", "error", err, "lead_id", created.ID)
		}
	}

	h.logger.Info("lead extracted from document", "id", created.ID, "filename", header.Filename)
	h.metrics.ObserveOp("extract", "ok")
	if h.notifier != nil {
		h.notifier.LeadCaptured(r.Context(), created)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(created)
}
