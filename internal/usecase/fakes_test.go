package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"EventEdge/internal/domain/models"
	domrepo "EventEdge/internal/domain/repository"
	"EventEdge/pkg/queue"
)

type fakeStore struct {
	mu      sync.Mutex
	recs    map[string]models.DecisionRecord
	saveErr error
	saves   int
}

func newFakeStore() *fakeStore { return &fakeStore{recs: map[string]models.DecisionRecord{}} }

func (s *fakeStore) Init(context.Context) error { return nil }
func (s *fakeStore) Save(_ context.Context, rec *models.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.recs[rec.EventID] = *rec
	return nil
}
func (s *fakeStore) Get(_ context.Context, id string) (*models.DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	return &rec, nil
}
func (s *fakeStore) ListStale(_ context.Context, v int, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, rec := range s.recs {
		if rec.Result.Meta.ModelVersion < v && len(out) < limit {
			out = append(out, id)
		}
	}
	return out, nil
}
func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { return nil }

type fakePublisher struct {
	published []string
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, rec *models.DecisionRecord) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, rec.EventID)
	return nil
}
func (p *fakePublisher) Close() error { return nil }

type fakeCandles struct {
	candles []models.Candle
	err     error
	calls   int
	asOf    time.Time
	n       int
}

func (f *fakeCandles) LatestCandles(_ context.Context, _ string, _ domrepo.Timeframe, n int, asOf time.Time) ([]models.Candle, error) {
	f.calls++
	f.n, f.asOf = n, asOf
	return f.candles, f.err
}

type fakeMetrics struct {
	mu        sync.Mutex
	decisions int
	errors    []string
}

func (m *fakeMetrics) RecordDecision(string, string, string) {
	m.mu.Lock()
	m.decisions++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordOverall(int) {}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors = append(m.errors, kind)
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordLatency(string, float64) {}

type fakeHub struct{ tickers []string }

func (h *fakeHub) Broadcast(ticker string, _ any) { h.tickers = append(h.tickers, ticker) }

type fakeQueue struct {
	payloads []RescorePayload
	queued   map[string]bool
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	if q.err != nil {
		return q.err
	}
	if msgType != RescoreJobType {
		return errors.New("unexpected type " + msgType)
	}
	p := payload.(RescorePayload)
	if q.queued == nil {
		q.queued = map[string]bool{}
	}
	if q.queued[p.QueueKey()] {
		return queue.ErrDuplicate
	}
	q.queued[p.QueueKey()] = true
	q.payloads = append(q.payloads, p)
	return nil
}

type countingCache struct {
	m    map[string][]byte
	gets int
	sets int
}

func (c *countingCache) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	c.gets++
	b, ok := c.m[key]
	return b, ok, nil
}
func (c *countingCache) SetBytes(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.sets++
	c.m[key] = value
	return nil
}
