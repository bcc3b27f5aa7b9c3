package dispatch

import (
	"context"
	"strconv"

	"github.com/ultimathule1/Event-Manager/internal/domain/outbox"
)

// NotificationProcessor publishes SEND_CREATE_NOTIFICATION_REQUEST payloads as-is,
// keyed by event id so one event's messages share a partition.
type NotificationProcessor struct {
	publisher Publisher
	topic     string
}

func NewNotificationProcessor(publisher Publisher, topic string) *NotificationProcessor {
	return &NotificationProcessor{
		publisher: publisher,
		topic:     topic,
	}
}

func (p *NotificationProcessor) Process(ctx context.Context, task *outbox.Task) error {
	payload, err := outbox.DecodeNotificationPayload(task.Payload)
	if err != nil {
		return err
	}
	return p.publisher.Publish(ctx, p.topic, strconv.FormatInt(payload.EventID, 10), task.Payload)
}
