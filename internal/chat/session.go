// Package chat holds the client-side chat session controller. A Session
// owns the transcript for one lead and runs at most one model stream at a
// time.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apexcrm/lead-console/internal/leads"
	"github.com/apexcrm/lead-console/internal/llm"
	"github.com/apexcrm/lead-console/pkg/logging"
)

const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// FailureNotice replaces the assistant message when a stream fails.
const FailureNotice = "Sorry, something went wrong. Please try again."

// Message is one transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionConfig configures a Session.
type SessionConfig struct {
	Stream  llm.StreamClient
	Model   string
	Logger  *logging.Logger
	Timeout time.Duration

	// OnUpdate, when set, receives a copy of the transcript after every
	// change: greeting, sent message, each streamed chunk, teardown.
	OnUpdate func(messages []Message)
}

// Session is the chat session controller for a single lead. Open resets
// the transcript, Send runs one streaming model turn, Close tears the
// session down. Opening, closing, or reopening while a stream is in
// flight cancels it; chunks from a cancelled stream never reach the
// transcript.
type Session struct {
	stream   llm.StreamClient
	model    string
	logger   *logging.Logger
	timeout  time.Duration
	onUpdate func(messages []Message)

	mu         sync.Mutex
	lead       *leads.Lead
	messages   []Message
	loading    bool
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewSession creates a chat session controller.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Stream == nil {
		panic("chat: stream client required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Session{
		stream:   cfg.Stream,
		model:    cfg.Model,
		logger:   logger,
		timeout:  timeout,
		onUpdate: cfg.OnUpdate,
	}
}

// Open binds the session to a lead and resets the transcript to a single
// greeting. Any in-flight stream is cancelled first.
func (s *Session) Open(lead *leads.Lead) {
	s.mu.Lock()
	s.teardownLocked()
	s.lead = lead
	s.messages = []Message{{
		ID:        uuid.NewString(),
		Sender:    SenderAssistant,
		Text:      fmt.Sprintf("Hi! Ask me anything about %s.", lead.Name),
		CreatedAt: time.Now().UTC(),
	}}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// Close tears the session down: cancels any in-flight stream, clears the
// transcript and the bound lead. Safe to call repeatedly.
func (s *Session) Close() {
	s.mu.Lock()
	s.teardownLocked()
	s.lead = nil
	s.messages = nil
	s.mu.Unlock()

	s.publish(nil)
}

// teardownLocked bumps the generation so in-flight chunks are dropped,
// cancels the stream context, and clears the loading state.
func (s *Session) teardownLocked() {
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.loading = false
	s.done = nil
}

// Send runs one model turn: appends the user message, appends an empty
// assistant message, and streams the completion into it chunk by chunk.
// Blank input and input sent while a previous turn is still streaming are
// ignored. On stream failure the assistant message becomes FailureNotice;
// on cancellation the partial text already received stays in place.
func (s *Session) Send(ctx context.Context, text string) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	if text == "" || s.loading || s.lead == nil {
		s.mu.Unlock()
		return
	}

	req := llm.LeadPrompt(s.lead, text)
	req.Model = s.model

	now := time.Now().UTC()
	s.messages = append(s.messages,
		Message{ID: uuid.NewString(), Sender: SenderUser, Text: text, CreatedAt: now},
		Message{ID: uuid.NewString(), Sender: SenderAssistant, Text: "", CreatedAt: now},
	)
	placeholder := s.messages[len(s.messages)-1].ID

	s.loading = true
	gen := s.generation
	streamCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	go s.consume(streamCtx, gen, req, placeholder, done)
}

// consume pumps one stream into the placeholder message. Every transcript
// write re-checks the generation under the lock, so a session that was
// closed or reopened mid-stream drops the remaining chunks.
func (s *Session) consume(ctx context.Context, gen uint64, req llm.Request, placeholder string, done chan struct{}) {
	defer close(done)

	chunks, err := s.stream.CompleteStream(ctx, req)
	if err != nil {
		s.logger.Error("chat stream failed to start", "error", err)
		s.finish(gen, placeholder, err)
		return
	}

	var streamErr error
	for chunk := range chunks {
		if chunk.Error != nil {
			streamErr = chunk.Error
			break
		}
		if chunk.Text != "" && !s.appendChunk(gen, placeholder, chunk.Text) {
			return
		}
		if chunk.Done {
			break
		}
	}
	s.finish(gen, placeholder, streamErr)
}

// appendChunk appends delta text to the placeholder message. Returns
// false when the generation has moved on and the stream should stop.
func (s *Session) appendChunk(gen uint64, placeholder, delta string) bool {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return false
	}
	for i := range s.messages {
		if s.messages[i].ID == placeholder {
			s.messages[i].Text += delta
			break
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return true
}

// finish clears the loading state and, on a real stream error, replaces
// the assistant message with the failure notice. Cancellation is not a
// failure: whatever partial text arrived stays in the transcript.
func (s *Session) finish(gen uint64, placeholder string, streamErr error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	if streamErr != nil && !errors.Is(streamErr, context.Canceled) {
		s.logger.Error("chat stream failed", "error", streamErr)
		for i := range s.messages {
			if s.messages[i].ID == placeholder {
				s.messages[i].Text = FailureNotice
				break
			}
		}
	}
	s.loading = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.done = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// snapshotLocked copies the transcript. Caller holds the mutex.
func (s *Session) snapshotLocked() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// publish hands a transcript copy to the update callback, if any. Called
// without the mutex held so the callback may read session state.
func (s *Session) publish(snap []Message) {
	if s.onUpdate != nil {
		s.onUpdate(snap)
	}
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Loading reports whether a stream is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Lead returns the lead the session is bound to, or nil when closed.
func (s *Session) Lead() *leads.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lead
}

// Wait blocks until the in-flight stream, if any, has finished. Intended
// for synchronous callers such as the terminal client.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
