package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"EventEdge/internal/domain/models"
	domrepo "EventEdge/internal/domain/repository"
	xhttp "EventEdge/pkg/http"
	pkgkafka "EventEdge/pkg/kafka"
)

// KafkaEventsHandler consumes classified events and runs them through the pipeline.
type KafkaEventsHandler struct {
	topic   string
	uc      *DecisionUseCase
	metrics domrepo.Metrics
}

func NewKafkaEventsHandler(topic string, uc *DecisionUseCase, metrics domrepo.Metrics) *KafkaEventsHandler {
	return &KafkaEventsHandler{topic: topic, uc: uc, metrics: metrics}
}

func (h *KafkaEventsHandler) Topic() string { return h.topic }

// Handle decodes a models.ClassifiedEvent. Malformed events are marked
// permanent so the consumer parks them in the DLQ without retrying.
func (h *KafkaEventsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.ClassifiedEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode event: %w", err))
	}
	if ev.Read == nil {
		h.metrics.RecordError("consumer_missing_read")
		return pkgkafka.Permanent(ErrMissingRead)
	}
	if err := xhttp.Validate(ctx, &ev); err != nil {
		h.metrics.RecordError("consumer_validate")
		return pkgkafka.Permanent(fmt.Errorf("validate event %s: %w", ev.Event.ID, err))
	}
	if ev.Event.PublishedAt != nil {
		// E2E latency from publication to now (approx)
		h.metrics.RecordLatency("ingest_e2e", time.Since(*ev.Event.PublishedAt).Seconds())
	}

	_, err := h.uc.Process(ctx, ev)
	return err
}

var _ pkgkafka.MessageHandler = (*KafkaEventsHandler)(nil)
