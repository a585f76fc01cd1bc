package repository

import (
	"context"
	"errors"
	"time"

	"EventEdge/internal/domain/models"
)

// DecisionStore persists decisions keyed by event id.
type DecisionStore interface {
	Init(ctx context.Context) error // ensure tables
	Save(ctx context.Context, rec *models.DecisionRecord) error
	Get(ctx context.Context, eventID string) (*models.DecisionRecord, error)
	// ListStale returns event ids whose stored model version is below modelVersion.
	ListStale(ctx context.Context, modelVersion int, limit int) ([]string, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// DecisionPublisher fans decisions out to downstream consumers.
type DecisionPublisher interface {
	Publish(ctx context.Context, rec *models.DecisionRecord) error
	Close() error
}

// CandleStore reads bars of the target instrument.
type CandleStore interface {
	// LatestCandles returns up to n bars in ascending order that had closed
	// by asOf, so a replayed or rescored event never sees later prices.
	LatestCandles(ctx context.Context, symbol string, tf Timeframe, n int, asOf time.Time) ([]models.Candle, error)
}

// Metrics records pipeline counters. Labels are plain strings so the
// Prometheus recorder in pkg/metrics stays domain-agnostic.
type Metrics interface {
	RecordDecision(signal, avoidCode, grade string)
	RecordOverall(overall int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")
