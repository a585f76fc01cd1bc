package queue

import "context"

// Job handles one message type.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, msg Message) error
}

// Keyed payloads are deduplicated while a message with the same key is
// pending or retrying.
type Keyed interface {
	QueueKey() string
}
