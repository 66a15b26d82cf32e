package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is an internal message representation that can include system prompts.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type Request struct {
	Model       string
	System      []string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
	TopP        float32

	// LeadID and Question identify the chat turn for transports that
	// persist transcripts. Provider clients ignore them.
	LeadID   string
	Question string
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// StreamChunk is one increment of a streaming completion. Text carries a
// partial delta; Done marks the final chunk; Error is set at most once, on
// the final chunk.
type StreamChunk struct {
	Text  string
	Done  bool
	Error error
	Usage TokenUsage
}

type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// StreamClient produces incremental completions. The returned channel is
// closed after the Done chunk; cancelling ctx stops delivery.
type StreamClient interface {
	CompleteStream(ctx context.Context, req Request) (<-chan StreamChunk, error)
}
