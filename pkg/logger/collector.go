package logger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Publisher ships a batch of aggregated entries to a topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush period, default 30s
	CountThreshold int           // distinct entries that force a flush, default 100
	Topic          string
	Publisher      Publisher
	PublishTimeout time.Duration // default 10s
	// QueueSize bounds batches waiting on the publisher; extra batches are dropped.
	QueueSize int
}

// AggregatedLogEntry is one distinct level/caller/message with its repeat count.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector folds repeated warnings and errors into counted entries and
// publishes them in windows. Fields are sampled from the first occurrence.
type LogCollector struct {
	cfg CollectionConfig

	mu      sync.Mutex
	window  map[string]*AggregatedLogEntry
	dropped int

	batches chan []AggregatedLogEntry
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewLogCollector(cfg *CollectionConfig) *LogCollector {
	c := &LogCollector{
		cfg:    *cfg,
		window: make(map[string]*AggregatedLogEntry),
		stop:   make(chan struct{}),
	}
	if c.cfg.TimeInterval <= 0 {
		c.cfg.TimeInterval = 30 * time.Second
	}
	if c.cfg.CountThreshold <= 0 {
		c.cfg.CountThreshold = 100
	}
	if c.cfg.PublishTimeout <= 0 {
		c.cfg.PublishTimeout = 10 * time.Second
	}
	if c.cfg.QueueSize <= 0 {
		c.cfg.QueueSize = 8
	}
	c.batches = make(chan []AggregatedLogEntry, c.cfg.QueueSize)

	c.wg.Add(2)
	go c.ticker()
	go c.sender()
	return c
}

// Add records one occurrence.
func (c *LogCollector) Add(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := level + "|" + caller + "|" + message

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.window[key]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	c.window[key] = &AggregatedLogEntry{
		Level:     level,
		Message:   message,
		Fields:    fields,
		Caller:    caller,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	if len(c.window) >= c.cfg.CountThreshold {
		c.rotateLocked()
	}
}

// Dropped reports how many batches were discarded because the publisher lagged.
func (c *LogCollector) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// rotateLocked hands the current window to the sender, busiest entries first.
func (c *LogCollector) rotateLocked() {
	if len(c.window) == 0 {
		return
	}
	batch := make([]AggregatedLogEntry, 0, len(c.window))
	for _, e := range c.window {
		batch = append(batch, *e)
	}
	c.window = make(map[string]*AggregatedLogEntry)
	sort.Slice(batch, func(i, j int) bool {
		if batch[i].Count != batch[j].Count {
			return batch[i].Count > batch[j].Count
		}
		return batch[i].FirstSeen.Before(batch[j].FirstSeen)
	})

	select {
	case c.batches <- batch:
	default:
		c.dropped++
	}
}

func (c *LogCollector) ticker() {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.TimeInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.mu.Lock()
			c.rotateLocked()
			c.mu.Unlock()
		case <-c.stop:
			c.mu.Lock()
			c.rotateLocked()
			c.mu.Unlock()
			close(c.batches)
			return
		}
	}
}

func (c *LogCollector) sender() {
	defer c.wg.Done()
	for batch := range c.batches {
		if c.cfg.Publisher == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublishTimeout)
		if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
			// the logger cannot log its own shipping failures
			fmt.Fprintf(os.Stderr, "logger: publish %d aggregated entries: %v\n", len(batch), err)
		}
		cancel()
	}
}

// Close flushes the open window and waits until every queued batch is published.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.stop) })
	c.wg.Wait()
}
