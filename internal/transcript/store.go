package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	keyPrefix  = "chat_transcript:"
	defaultTTL = 7 * 24 * time.Hour
)

// Message is one persisted chat transcript entry.
type Message struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Sender    string    `json:"sender"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists chat transcripts in Redis, one list per lead.
type Store struct {
	redis       *redis.Client
	tracer      trace.Tracer
	maxMessages int64
}

// NewStore creates a transcript store. Returns nil when no Redis client is
// configured; a nil store is safe to call and does nothing.
func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		return nil
	}
	return &Store{
		redis:       redisClient,
		tracer:      otel.Tracer("leadconsole.internal.transcript"),
		maxMessages: 200,
	}
}

// Append adds one message to a lead's transcript.
func (s *Store) Append(ctx context.Context, leadID string, msg Message) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if leadID == "" {
		return errors.New("transcript: leadID required")
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	msg.LeadID = leadID

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transcript: marshal message: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "transcript.append")
	defer span.End()

	key := transcriptKey(leadID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, defaultTTL)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, key, -s.maxMessages, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("transcript: append message: %w", err)
	}
	return nil
}

// List returns up to limit most recent messages for a lead, oldest first.
func (s *Store) List(ctx context.Context, leadID string, limit int64) ([]Message, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if leadID == "" {
		return nil, errors.New("transcript: leadID required")
	}
	if limit <= 0 {
		limit = s.maxMessages
	}

	ctx, span := s.tracer.Start(ctx, "transcript.list")
	defer span.End()

	raw, err := s.redis.LRange(ctx, transcriptKey(leadID), -limit, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("transcript: list messages: %w", err)
	}

	out := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Clear removes a lead's transcript.
func (s *Store) Clear(ctx context.Context, leadID string) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if leadID == "" {
		return errors.New("transcript: leadID required")
	}

	ctx, span := s.tracer.Start(ctx, "transcript.clear")
	defer span.End()

	if err := s.redis.Del(ctx, transcriptKey(leadID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("transcript: clear: %w", err)
	}
	return nil
}

func transcriptKey(leadID string) string {
	return keyPrefix + leadID
}
