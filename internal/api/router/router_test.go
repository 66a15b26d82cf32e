package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apexcrm/lead-console/internal/chatapi"
	"github.com/apexcrm/lead-console/internal/leads"
	"github.com/apexcrm/lead-console/internal/llm"
	"github.com/apexcrm/lead-console/pkg/logging"
)

type stubStream struct{}

func (stubStream) CompleteStream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	out := make(chan llm.StreamChunk, 1)
	out <- llm.StreamChunk{Text: "ok", Done: true}
	close(out)
	return out, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := logging.New("error")
	repo := leads.NewInMemoryRepository()
	return New(&Config{
		Logger:       logger,
		LeadsHandler: leads.NewHandler(repo, logger, nil, nil),
		ChatHandler:  chatapi.NewHandler(stubStream{}, nil, nil, logger, "test-model", time.Minute),
	})
}

func TestRouter_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_LeadLifecycle(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/leads",
		strings.NewReader(`{"name":"Ana Ruiz","email":"ana@x.com"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created leads.Lead
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/leads/"+created.ID,
		strings.NewReader(`{"status":"Contacted"}`)))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leads", nil))
	var all []*leads.Lead
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Status != leads.StatusContacted {
		t.Fatalf("unexpected list: %+v", all)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/leads/"+created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_ChatStream(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat/stream",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", ct)
	}
}

func TestRouter_UnknownLead404(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/leads/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
