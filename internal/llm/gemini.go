package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiClient implements Client and StreamClient using Google's Gemini API.
type GeminiClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("llm: failed to create gemini client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		modelID: modelID,
	}, nil
}

func (c *GeminiClient) model(req Request) (*genai.GenerativeModel, error) {
	model := c.client.GenerativeModel(c.modelID)

	if req.Temperature >= 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.TopP > 0 {
		model.SetTopP(float32(req.TopP))
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}

	if len(req.System) > 0 {
		systemText := strings.Join(req.System, "\n\n")
		if strings.TrimSpace(systemText) != "" {
			model.SystemInstruction = genai.NewUserContent(genai.Text(systemText))
		}
	}

	if len(req.Messages) == 0 {
		return nil, errors.New("llm: gemini requires at least one message")
	}
	return model, nil
}

func geminiParts(req Request) []genai.Part {
	var parts []genai.Part
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" || msg.Role == RoleSystem {
			continue
		}
		parts = append(parts, genai.Text(content))
	}
	return parts
}

// Complete sends a completion request to Gemini and returns the response.
func (c *GeminiClient) Complete(ctx context.Context, req Request) (Response, error) {
	model, err := c.model(req)
	if err != nil {
		return Response{}, err
	}

	resp, err := model.GenerateContent(ctx, geminiParts(req)...)
	if err != nil {
		return Response{}, fmt.Errorf("llm: gemini completion failed: %w", err)
	}

	text, stopReason, err := geminiExtractText(resp)
	if err != nil {
		return Response{}, err
	}

	result := Response{
		Text:       strings.TrimSpace(text),
		StopReason: stopReason,
	}
	if resp.UsageMetadata != nil {
		result.Usage = TokenUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}

// CompleteStream implements streaming completions via Gemini's streaming
// generation API.
func (c *GeminiClient) CompleteStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	model, err := c.model(req)
	if err != nil {
		return nil, err
	}

	iter := model.GenerateContentStream(ctx, geminiParts(req)...)
	chunks := make(chan StreamChunk, 32)

	go func() {
		defer close(chunks)

		var usage TokenUsage
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				chunks <- StreamChunk{Done: true, Usage: usage}
				return
			}
			if err != nil {
				chunks <- StreamChunk{Error: fmt.Errorf("llm: gemini stream failed: %w", err), Done: true}
				return
			}

			if resp.UsageMetadata != nil {
				usage = TokenUsage{
					InputTokens:  resp.UsageMetadata.PromptTokenCount,
					OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
					TotalTokens:  resp.UsageMetadata.TotalTokenCount,
				}
			}

			text, _, err := geminiExtractText(resp)
			if err != nil {
				continue
			}
			if text == "" {
				continue
			}

			select {
			case chunks <- StreamChunk{Text: text}:
			case <-ctx.Done():
				chunks <- StreamChunk{Error: ctx.Err(), Done: true}
				return
			}
		}
	}()

	return chunks, nil
}

func geminiExtractText(resp *genai.GenerateContentResponse) (string, string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", "", errors.New("llm: gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", "", errors.New("llm: gemini returned empty content")
	}

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	return builder.String(), candidate.FinishReason.String(), nil
}

// Close releases resources held by the Gemini client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
