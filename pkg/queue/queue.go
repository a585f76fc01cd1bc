package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrDuplicate is returned by Enqueue when a keyed payload is already queued.
var ErrDuplicate = errors.New("job already queued")

// Config controls workers and retries.
type Config struct {
	Workers       int
	RetryLimit    int
	RetryDelay    time.Duration // first retry; doubles per attempt
	MaxRetryDelay time.Duration
	JobTimeout    time.Duration
	PollInterval  time.Duration // retry promotion and depth sampling
	DeadLimit     int64         // dead letters kept, oldest trimmed
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.MaxRetryDelay < c.RetryDelay {
		c.MaxRetryDelay = 10 * c.RetryDelay
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.DeadLimit <= 0 {
		c.DeadLimit = 1000
	}
}

// Message is the stored envelope. Payload stays raw JSON until a job decodes it.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	LastError  string          `json:"lastError,omitempty"`
}

// Decode unmarshals the payload of msg into T.
func Decode[T any](msg Message) (T, error) {
	var v T
	if len(msg.Payload) == 0 {
		return v, fmt.Errorf("decode %s: empty payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	return v, nil
}

// Stats is a point-in-time view of queue depth.
type Stats struct {
	Pending  int64 `json:"pending"`
	Retrying int64 `json:"retrying"`
	Dead     int64 `json:"dead"`
}

// retryDelay doubles base per attempt up to max.
func retryDelay(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}
