// Package leadapi is the console-side HTTP client for the lead API. It
// implements the remote lead resource and document extraction resource
// the store controller talks to.
package leadapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/apexcrm/lead-console/internal/leads"
	"github.com/apexcrm/lead-console/pkg/logging"
)

const defaultUserAgent = "lead-console/0.1"

// ErrNotFound is returned when the server reports 404 for a lead.
var ErrNotFound = errors.New("leadapi: lead not found")

// Config controls how the lead API client behaves.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	UserAgent  string
}

// Client wraps the lead API REST endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("leadapi: base URL is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

// List fetches all leads, newest first.
func (c *Client) List(ctx context.Context) ([]*leads.Lead, error) {
	data, err := c.invoke(ctx, http.MethodGet, "/api/leads", nil, "")
	if err != nil {
		return nil, err
	}
	var out []*leads.Lead
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("leadapi: decode leads: %w", err)
	}
	return out, nil
}

// Create persists a new lead and returns the server-confirmed record. The
// server assigns the durable identifier; any id on the input is ignored.
func (c *Client) Create(ctx context.Context, lead *leads.Lead) (*leads.Lead, error) {
	if lead == nil {
		return nil, errors.New("leadapi: lead is required")
	}
	body, err := json.Marshal(leads.Draft{
		Name:  lead.Name,
		Email: lead.Email,
		Phone: lead.Phone,
	})
	if err != nil {
		return nil, fmt.Errorf("leadapi: marshal draft: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, "/api/leads", body, "application/json")
	if err != nil {
		return nil, err
	}
	var created leads.Lead
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("leadapi: decode created lead: %w", err)
	}
	return &created, nil
}

// UpdateStatus sets a lead's status.
func (c *Client) UpdateStatus(ctx context.Context, id, status string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("leadapi: lead id is required")
	}
	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return fmt.Errorf("leadapi: marshal status: %w", err)
	}
	_, err = c.invoke(ctx, http.MethodPut, "/api/leads/"+id, body, "application/json")
	return err
}

// Delete removes a lead.
func (c *Client) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("leadapi: lead id is required")
	}
	_, err := c.invoke(ctx, http.MethodDelete, "/api/leads/"+id, nil, "")
	return err
}

// Extract uploads a document and returns the lead the server extracted
// and persisted from it.
func (c *Client) Extract(ctx context.Context, document []byte, mediaType string) (*leads.Lead, error) {
	if len(document) == 0 {
		return nil, errors.New("leadapi: document is required")
	}
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="upload.pdf"`)
	header.Set("Content-Type", mediaType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("leadapi: create form part: %w", err)
	}
	if _, err := part.Write(document); err != nil {
		return nil, fmt.Errorf("leadapi: write document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("leadapi: close multipart writer: %w", err)
	}

	data, err := c.invoke(ctx, http.MethodPost, "/api/extract-lead", buf.Bytes(), writer.FormDataContentType())
	if err != nil {
		return nil, err
	}
	var created leads.Lead
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("leadapi: decode extracted lead: %w", err)
	}
	return &created, nil
}

func (c *Client) invoke(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("leadapi: build request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return nil, fmt.Errorf("leadapi: http error: %w", err)
			}
			lastErr = err
			c.logRetry(path, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("leadapi: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		apiErr := fmt.Errorf("leadapi: %s (status=%d)", strings.TrimSpace(string(data)), resp.StatusCode)
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode, nil) {
			lastErr = apiErr
			c.logRetry(path, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("leadapi: request failed without response")
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(path string, attempt int, status int, err error) {
	c.logger.Warn("lead api retry",
		"path", path,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status <= 599
}
