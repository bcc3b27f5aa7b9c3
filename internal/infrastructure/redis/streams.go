package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Stream entry fields written by StreamPublisher.
const (
	FieldMessageID   = "message_id"
	FieldKey         = "key"
	FieldPayload     = "payload"
	FieldPublishedAt = "published_at"
)

// StreamPublisher delivers notifications as Redis stream entries, one stream per topic.
// XADD returning an entry id is the acknowledgement.
type StreamPublisher struct {
	client *redis.Client
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, maxLen: maxLen}
}

func (p *StreamPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{
			FieldMessageID:   uuid.NewString(),
			FieldKey:         key,
			FieldPayload:     string(payload),
			FieldPublishedAt: time.Now().UnixMilli(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", topic, err)
	}
	return nil
}

func (p *StreamPublisher) Close() error {
	return nil
}
