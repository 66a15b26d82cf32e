package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexcrm/lead-console/internal/llm"
	"github.com/apexcrm/lead-console/internal/transcript"
	"github.com/apexcrm/lead-console/pkg/logging"
)

type scriptedStream struct {
	chunks   []llm.StreamChunk
	startErr error
	lastReq  llm.Request
}

func (f *scriptedStream) CompleteStream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	f.lastReq = req
	if f.startErr != nil {
		return nil, f.startErr
	}
	out := make(chan llm.StreamChunk, len(f.chunks))
	for _, c := range f.chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func newTestHandler(t *testing.T, stream llm.StreamClient) (*Handler, *transcript.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ts := transcript.NewStore(client)
	return NewHandler(stream, ts, nil, logging.New("error"), "test-model", time.Minute), ts
}

func testRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/chat/stream", h.HandleStream)
	r.Get("/chat/transcript/{leadID}", h.GetTranscript)
	r.Delete("/chat/transcript/{leadID}", h.ClearTranscript)
	return r
}

func streamBody(t *testing.T, req StreamRequest) *strings.Reader {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	return strings.NewReader(string(data))
}

func decodeEvents(t *testing.T, body string) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func TestHandleStream_WritesChunksAsSSE(t *testing.T) {
	stream := &scriptedStream{chunks: []llm.StreamChunk{
		{Text: "Yes"},
		{Text: ", call"},
		{Text: " today."},
		{Done: true, Usage: llm.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}},
	}}
	h, _ := newTestHandler(t, stream)

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", streamBody(t, StreamRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Should I call her?"}},
	}))
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := decodeEvents(t, rec.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, "Yes", events[0].Text)
	assert.Equal(t, " today.", events[2].Text)
	assert.True(t, events[3].Done)
	require.NotNil(t, events[3].Usage)
	assert.Equal(t, int32(15), events[3].Usage.TotalTokens)
}

func TestHandleStream_DefaultsModel(t *testing.T) {
	stream := &scriptedStream{chunks: []llm.StreamChunk{{Done: true}}}
	h, _ := newTestHandler(t, stream)

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", streamBody(t, StreamRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	}))
	testRouter(h).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "test-model", stream.lastReq.Model)
}

func TestHandleStream_EmptyMessagesRejected(t *testing.T) {
	h, _ := newTestHandler(t, &scriptedStream{})

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", streamBody(t, StreamRequest{}))
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStream_StartFailureIsBadGateway(t *testing.T) {
	h, _ := newTestHandler(t, &scriptedStream{startErr: errors.New("provider down")})

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", streamBody(t, StreamRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	}))
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleStream_MidStreamErrorEvent(t *testing.T) {
	stream := &scriptedStream{chunks: []llm.StreamChunk{
		{Text: "Par"},
		{Error: errors.New("connection reset"), Done: true},
	}}
	h, _ := newTestHandler(t, stream)

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", streamBody(t, StreamRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	}))
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	events := decodeEvents(t, rec.Body.String())
	require.Len(t, events, 2)
	last := events[len(events)-1]
	assert.True(t, last.Done)
	assert.Equal(t, "stream failed", last.Error)
}

func TestHandleStream_PersistsTurnWithLeadID(t *testing.T) {
	stream := &scriptedStream{chunks: []llm.StreamChunk{
		{Text: "Yes."},
		{Done: true},
	}}
	h, ts := newTestHandler(t, stream)

	req := httptest.NewRequest(http.MethodPost, "/chat/stream", streamBody(t, StreamRequest{
		LeadID:   "lead-1",
		Question: "Should I call her?",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Should I call her?"}},
	}))
	testRouter(h).ServeHTTP(httptest.NewRecorder(), req)

	msgs, err := ts.List(context.Background(), "lead-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", msgs[0].Sender)
	assert.Equal(t, "Should I call her?", msgs[0].Text)
	assert.Equal(t, "assistant", msgs[1].Sender)
	assert.Equal(t, "Yes.", msgs[1].Text)
}

func TestTranscriptEndpoints(t *testing.T) {
	h, ts := newTestHandler(t, &scriptedStream{})
	router := testRouter(h)
	ctx := context.Background()

	require.NoError(t, ts.Append(ctx, "lead-1", transcript.Message{
		ID: "m1", LeadID: "lead-1", Sender: "user", Text: "hi", Timestamp: time.Now().UTC(),
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/transcript/lead-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Messages []transcript.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Messages, 1)
	assert.Equal(t, "hi", payload.Messages[0].Text)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/chat/transcript/lead-1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	msgs, err := ts.List(ctx, "lead-1", 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
