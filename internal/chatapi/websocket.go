package chatapi

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/apexcrm/lead-console/internal/leads"
	"github.com/apexcrm/lead-console/internal/llm"
	"github.com/apexcrm/lead-console/internal/transcript"
)

// InboundMessage is what a websocket chat client sends.
type InboundMessage struct {
	Type   string `json:"type"` // "message", "ping"
	LeadID string `json:"lead_id"`
	Text   string `json:"text"`
}

// OutboundMessage is what we send back over the socket.
type OutboundMessage struct {
	Type     string               `json:"type"` // "chunk", "done", "error", "history", "pong"
	Text     string               `json:"text,omitempty"`
	Messages []transcript.Message `json:"messages,omitempty"`
}

// LeadReader looks a lead up for prompt context.
type LeadReader interface {
	GetByID(ctx context.Context, id string) (*leads.Lead, error)
}

// WSHandler serves the websocket chat surface. Each socket handles one
// lead conversation; a new inbound message while a stream is running is
// answered after the running one finishes, in order.
type WSHandler struct {
	inner *Handler
	reads LeadReader
}

// NewWSHandler creates a websocket chat handler.
func NewWSHandler(inner *Handler, reads LeadReader) *WSHandler {
	return &WSHandler{inner: inner, reads: reads}
}

// HandleWebSocket upgrades the connection and serves chat turns until the
// client disconnects.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *WSHandler) serveWS(conn *websocket.Conn, r *http.Request) {
	leadID := r.URL.Query().Get("lead")
	if leadID == "" {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "missing lead parameter"})
		return
	}

	lead, err := h.reads.GetByID(r.Context(), leadID)
	if err != nil {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "unknown lead"})
		return
	}

	if h.inner.transcript != nil {
		if msgs, err := h.inner.transcript.List(r.Context(), leadID, 50); err == nil && len(msgs) > 0 {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: msgs})
		}
	}

	h.inner.logger.Info("chat socket opened", "lead_id", leadID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			if err != io.EOF {
				h.inner.logger.Info("chat socket closed", "lead_id", leadID, "error", err)
			}
			return
		}

		switch msg.Type {
		case "ping":
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
		case "message":
			h.streamTurn(r.Context(), conn, lead, msg.Text)
		}
	}
}

// streamTurn runs one completion and forwards each chunk over the socket.
func (h *WSHandler) streamTurn(ctx context.Context, conn *websocket.Conn, lead *leads.Lead, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	req := llm.LeadPrompt(lead, text)
	req.Model = h.inner.model

	turnCtx, cancel := context.WithTimeout(ctx, h.inner.timeout)
	defer cancel()

	start := time.Now()
	chunks, err := h.inner.stream.CompleteStream(turnCtx, req)
	if err != nil {
		h.inner.logger.Error("chat stream failed to start", "error", err, "lead_id", lead.ID)
		h.inner.metrics.ObserveStream(outcomeError, time.Since(start).Seconds())
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "stream failed"})
		return
	}

	var full strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			h.inner.logger.Error("chat stream failed", "error", chunk.Error, "lead_id", lead.ID)
			h.inner.metrics.ObserveStream(outcomeError, time.Since(start).Seconds())
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "stream failed"})
			return
		}
		if chunk.Text != "" {
			full.WriteString(chunk.Text)
			if err := websocket.JSON.Send(conn, OutboundMessage{Type: "chunk", Text: chunk.Text}); err != nil {
				h.inner.metrics.ObserveStream(outcomeCancelled, time.Since(start).Seconds())
				return
			}
		}
		if chunk.Done {
			break
		}
	}

	h.inner.metrics.ObserveStream(outcomeCompleted, time.Since(start).Seconds())
	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "done"})

	if h.inner.transcript != nil {
		now := time.Now().UTC()
		turn := []transcript.Message{
			{ID: uuid.NewString(), LeadID: lead.ID, Sender: "user", Text: text, Timestamp: now},
			{ID: uuid.NewString(), LeadID: lead.ID, Sender: "assistant", Text: full.String(), Timestamp: now},
		}
		for _, m := range turn {
			if err := h.inner.transcript.Append(ctx, lead.ID, m); err != nil {
				h.inner.logger.Error("transcript append failed", "error", err, "lead_id", lead.ID)
				break
			}
		}
	}
}
