// Package chatapi exposes the lead assistant over HTTP: a server-sent
// events endpoint for streaming completions and transcript read/clear
// endpoints backed by Redis.
package chatapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/apexcrm/lead-console/internal/llm"
	"github.com/apexcrm/lead-console/internal/observability/metrics"
	"github.com/apexcrm/lead-console/internal/transcript"
	"github.com/apexcrm/lead-console/pkg/logging"
)

const (
	outcomeCompleted = "completed"
	outcomeCancelled = "cancelled"
	outcomeError     = "error"
)

// StreamRequest is the streaming completion request body. LeadID and
// Question are optional; when both are present the turn is persisted to
// the transcript store.
type StreamRequest struct {
	LeadID      string        `json:"lead_id,omitempty"`
	Question    string        `json:"question,omitempty"`
	Model       string        `json:"model,omitempty"`
	System      []string      `json:"system,omitempty"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int32         `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
}

// StreamEvent is one server-sent event payload.
type StreamEvent struct {
	Text  string          `json:"text,omitempty"`
	Done  bool            `json:"done,omitempty"`
	Error string          `json:"error,omitempty"`
	Usage *llm.TokenUsage `json:"usage,omitempty"`
}

// Handler serves the chat endpoints.
type Handler struct {
	stream     llm.StreamClient
	transcript *transcript.Store
	metrics    *metrics.ChatMetrics
	logger     *logging.Logger
	model      string
	timeout    time.Duration
}

// NewHandler creates a chat API handler. transcript may be nil to disable
// persistence.
func NewHandler(stream llm.StreamClient, ts *transcript.Store, m *metrics.ChatMetrics, logger *logging.Logger, model string, timeout time.Duration) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Handler{
		stream:     stream,
		transcript: ts,
		metrics:    m,
		logger:     logger,
		model:      model,
		timeout:    timeout,
	}
}

// HandleStream runs one streaming completion and writes each chunk as a
// server-sent event. Client disconnect cancels the upstream stream; the
// partial turn is not persisted.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	var req StreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages are required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	model := req.Model
	if model == "" {
		model = h.model
	}
	llmReq := llm.Request{
		Model:       model,
		System:      req.System,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	start := time.Now()
	chunks, err := h.stream.CompleteStream(ctx, llmReq)
	if err != nil {
		h.logger.Error("chat stream failed to start", "error", err)
		h.metrics.ObserveStream(outcomeError, time.Since(start).Seconds())
		http.Error(w, "upstream model unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var full strings.Builder
	for chunk := range chunks {
		select {
		case <-ctx.Done():
			h.metrics.ObserveStream(outcomeCancelled, time.Since(start).Seconds())
			return
		default:
		}

		if chunk.Error != nil {
			h.logger.Error("chat stream failed", "error", chunk.Error)
			writeEvent(w, flusher, StreamEvent{Error: "stream failed", Done: true})
			h.metrics.ObserveStream(outcomeError, time.Since(start).Seconds())
			return
		}
		if chunk.Text != "" {
			full.WriteString(chunk.Text)
			writeEvent(w, flusher, StreamEvent{Text: chunk.Text})
		}
		if chunk.Done {
			usage := chunk.Usage
			writeEvent(w, flusher, StreamEvent{Done: true, Usage: &usage})
			break
		}
	}

	h.metrics.ObserveStream(outcomeCompleted, time.Since(start).Seconds())
	h.persistTurn(r, req, full.String())
}

// persistTurn stores a completed question/answer pair. Best effort: a
// transcript write failure never fails the response.
func (h *Handler) persistTurn(r *http.Request, req StreamRequest, answer string) {
	if h.transcript == nil || req.LeadID == "" || strings.TrimSpace(req.Question) == "" {
		return
	}
	now := time.Now().UTC()
	pairs := []transcript.Message{
		{ID: uuid.NewString(), LeadID: req.LeadID, Sender: "user", Text: req.Question, Timestamp: now},
		{ID: uuid.NewString(), LeadID: req.LeadID, Sender: "assistant", Text: answer, Timestamp: now},
	}
	for _, msg := range pairs {
		if err := h.transcript.Append(r.Context(), req.LeadID, msg); err != nil {
			h.logger.Error("transcript append failed", "error", err, "lead_id", req.LeadID)
			return
		}
	}
}

// GetTranscript returns the stored transcript for a lead, oldest first.
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if leadID == "" {
		http.Error(w, "lead id is required", http.StatusBadRequest)
		return
	}
	if h.transcript == nil {
		http.Error(w, "transcripts disabled", http.StatusNotFound)
		return
	}

	msgs, err := h.transcript.List(r.Context(), leadID, 0)
	if err != nil {
		h.logger.Error("transcript list failed", "error", err, "lead_id", leadID)
		http.Error(w, "failed to load transcript", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"messages": msgs}); err != nil {
		h.logger.Error("failed to encode transcript", "error", err)
	}
}

// ClearTranscript deletes the stored transcript for a lead.
func (h *Handler) ClearTranscript(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if leadID == "" {
		http.Error(w, "lead id is required", http.StatusBadRequest)
		return
	}
	if h.transcript != nil {
		if err := h.transcript.Clear(r.Context(), leadID); err != nil {
			h.logger.Error("transcript clear failed", "error", err, "lead_id", leadID)
			http.Error(w, "failed to clear transcript", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev StreamEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	w.Write([]byte("data: "))
	w.Write(data)
	w.Write([]byte("\n\n"))
	flusher.Flush()
}
