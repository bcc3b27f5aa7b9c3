package broker

import "context"

// Publisher delivers one message and returns once the broker acknowledged it.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}
