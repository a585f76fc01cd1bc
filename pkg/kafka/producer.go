package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

type Header = kafka.Header

// Producer publishes JSON values. In async mode Publish returns once the
// record is buffered and delivery results are counted when batches complete.
type Producer struct {
	w     *kafka.Writer
	codec string
	async bool
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	codec, _ := compressionCodec(cfg.Compression)
	pm := producerMetricsOnce()

	p := &Producer{codec: strings.ToLower(cfg.Compression), async: cfg.Async}
	if p.codec == "" {
		p.codec = "none"
	}
	p.w = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     balancer(cfg.KeyedPartitioning),
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  codec,
		MaxAttempts:  cfg.MaxAttempts,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.Linger,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		Async:        cfg.Async,
		Transport:    &kafka.Transport{ClientID: cfg.ClientID},
	}
	if cfg.Async {
		p.w.Completion = func(msgs []kafka.Message, err error) {
			for _, m := range msgs {
				pm.delivered(m.Topic, p.codec, len(m.Value), err)
			}
		}
	}
	return p, nil
}

func balancer(keyed bool) kafka.Balancer {
	if keyed {
		return &kafka.Hash{}
	}
	return &kafka.LeastBytes{}
}

// Publish sends one record. []byte and string values go out as is, anything
// else is JSON encoded.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...Header) error {
	body, err := encode(value)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.w.WriteMessages(ctx, kafka.Message{Topic: topic, Key: key, Value: body, Headers: headers, Time: start})

	pm := producerMetricsOnce()
	pm.latency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	if !p.async || err != nil {
		pm.delivered(topic, p.codec, len(body), err)
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishMessage sends an unkeyed record; it satisfies the log collector's publisher.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, nil, payload)
}

// Stats snapshots the writer counters since the previous call.
func (p *Producer) Stats() kafka.WriterStats {
	return p.w.Stats()
}

// Close flushes buffered records.
func (p *Producer) Close() error {
	if p.w == nil {
		return nil
	}
	return p.w.Close()
}

func encode(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return b, nil
}

type producerMetrics struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	pmOnce      sync.Once
	prodMetrics *producerMetrics
)

func producerMetricsOnce() *producerMetrics {
	pmOnce.Do(func() {
		prodMetrics = &producerMetrics{
			messages: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "eventedge_kafka_producer_messages_total",
				Help: "Records handed to Kafka by result.",
			}, []string{"topic", "compression", "result"}),
			bytes: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "eventedge_kafka_producer_bytes_total",
				Help: "Payload bytes delivered to Kafka.",
			}, []string{"topic", "compression"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "eventedge_kafka_producer_publish_seconds",
				Help:    "Time spent in WriteMessages.",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
		}
	})
	return prodMetrics
}

func (m *producerMetrics) delivered(topic, codec string, n int, err error) {
	if err != nil {
		m.messages.WithLabelValues(topic, codec, "error").Inc()
		return
	}
	m.messages.WithLabelValues(topic, codec, "ok").Inc()
	m.bytes.WithLabelValues(topic, codec).Add(float64(n))
}
