package leadapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apexcrm/lead-console/internal/chatapi"
	"github.com/apexcrm/lead-console/internal/llm"
	"github.com/apexcrm/lead-console/pkg/logging"
)

// StreamClient runs streaming completions against the chat API's
// server-sent events endpoint. It implements llm.StreamClient so the
// chat session controller can talk to a remote model through the API
// server instead of a provider SDK.
type StreamClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	userAgent  string
}

// NewStreamClient creates a streaming client. The HTTP client must not
// carry a global timeout; per-stream deadlines come from the context.
func NewStreamClient(cfg Config) (*StreamClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("leadapi: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &StreamClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

// CompleteStream opens the SSE stream and forwards events as chunks. The
// returned channel is closed after the final event; cancelling ctx closes
// the underlying response body and stops delivery.
func (s *StreamClient) CompleteStream(ctx context.Context, req llm.Request) (<-chan llm.StreamChunk, error) {
	payload := chatapi.StreamRequest{
		LeadID:      req.LeadID,
		Question:    req.Question,
		Model:       req.Model,
		System:      req.System,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("leadapi: marshal stream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("leadapi: build stream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("leadapi: open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("leadapi: stream rejected: %s (status=%d)", strings.TrimSpace(string(data)), resp.StatusCode)
	}

	// Buffered so the final error chunk can be delivered even when the
	// consumer has already stopped ranging over the channel.
	out := make(chan llm.StreamChunk, 32)
	go s.readEvents(ctx, resp.Body, out)
	return out, nil
}

func (s *StreamClient) readEvents(ctx context.Context, body io.ReadCloser, out chan<- llm.StreamChunk) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sawDone := false
	start := time.Now()

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var ev chatapi.StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			s.logger.Warn("malformed stream event skipped", "error", err)
			continue
		}

		chunk := llm.StreamChunk{Text: ev.Text, Done: ev.Done}
		if ev.Error != "" {
			chunk.Error = errors.New(ev.Error)
		}
		if ev.Usage != nil {
			chunk.Usage = *ev.Usage
		}

		select {
		case out <- chunk:
		case <-ctx.Done():
			out <- llm.StreamChunk{Error: ctx.Err(), Done: true}
			return
		}
		if chunk.Done || chunk.Error != nil {
			sawDone = true
			break
		}
	}

	if err := scanner.Err(); err != nil && !sawDone {
		// A cancelled session is not a failure; anything else, including
		// the stream deadline firing mid-read, must surface as an error
		// chunk so the transcript shows the turn did not complete.
		if cause := ctx.Err(); cause != nil {
			if errors.Is(cause, context.Canceled) {
				return
			}
			err = cause
		}
		out <- llm.StreamChunk{Error: fmt.Errorf("leadapi: stream interrupted: %w", err), Done: true}
		return
	}
	if !sawDone && ctx.Err() == nil {
		s.logger.Warn("stream ended without done event", "elapsed", time.Since(start))
	}
}
