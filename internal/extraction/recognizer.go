package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apexcrm/lead-console/pkg/logging"
)

// HTTPRecognizerConfig controls how the remote OCR client behaves.
type HTTPRecognizerConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// HTTPRecognizer sends documents to a remote OCR service that responds
// with plain text.
type HTTPRecognizer struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewHTTPRecognizer creates a recognizer client with sane defaults.
func NewHTTPRecognizer(cfg HTTPRecognizerConfig) (*HTTPRecognizer, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("extraction: recognizer base URL is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &HTTPRecognizer{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Recognize posts the document to the OCR service and returns its text.
func (r *HTTPRecognizer) Recognize(ctx context.Context, document []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/recognize", bytes.NewReader(document))
	if err != nil {
		return "", fmt.Errorf("extraction: build recognize request: %w", err)
	}
	req.Header.Set("Content-Type", MediaTypePDF)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("extraction: recognize request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		r.logger.Error("recognizer returned non-200", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("extraction: recognizer status %d: %w", resp.StatusCode, ErrExtractionFailed)
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("extraction: read recognizer response: %w", err)
	}
	return string(text), nil
}
