package repository

import (
	"context"
	"strconv"

	"EventEdge/internal/domain/models"
	"EventEdge/internal/domain/repository"
	pkgkafka "EventEdge/pkg/kafka"
)

// KafkaDecisionPublisher implements DecisionPublisher for Kafka, keyed by ticker
// so decisions for one instrument stay ordered within a partition.
type KafkaDecisionPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaDecisionPublisher creates Kafka publisher.
func NewKafkaDecisionPublisher(producer *pkgkafka.Producer, topic string) repository.DecisionPublisher {
	return &KafkaDecisionPublisher{producer: producer, topic: topic}
}

func (p *KafkaDecisionPublisher) Publish(ctx context.Context, rec *models.DecisionRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(rec.Ticker), decisionMessage(rec), decisionHeaders(ctx, rec)...)
}

// decisionHeaders carries the model version and, when the decision came off
// the events topic, the inbound trace id.
func decisionHeaders(ctx context.Context, rec *models.DecisionRecord) []pkgkafka.Header {
	hs := []pkgkafka.Header{{Key: "model_version", Value: []byte(strconv.Itoa(rec.Result.Meta.ModelVersion))}}
	if id := pkgkafka.TraceIDFrom(ctx); id != "" {
		hs = append(hs, pkgkafka.Header{Key: pkgkafka.TraceHeader, Value: []byte(id)})
	}
	return hs
}

// decisionMessage is the wire shape published downstream.
func decisionMessage(rec *models.DecisionRecord) map[string]interface{} {
	msg := map[string]interface{}{
		"eventId":      rec.EventID,
		"ticker":       rec.Ticker,
		"signal":       rec.Result.Signal,
		"avoidCode":    rec.Result.AvoidCode,
		"overall":      rec.Result.Confidence.Overall,
		"grade":        rec.Result.Confidence.Grade,
		"positionPct":  rec.Result.SizingHint.SuggestedPositionPct,
		"modelVersion": rec.Result.Meta.ModelVersion,
		"evaluatedAt":  rec.Result.Meta.EvaluatedAt,
	}
	if rec.Trigger != "" {
		msg["trigger"] = rec.Trigger
	}
	return msg
}

func (p *KafkaDecisionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
