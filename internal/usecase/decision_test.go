package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EventEdge/internal/domain/models"
	"EventEdge/internal/services/scoring"
)

var fixedNow = time.Date(2024, 7, 1, 15, 4, 30, 0, time.UTC)

type fixture struct {
	uc      *DecisionUseCase
	store   *fakeStore
	pub     *fakePublisher
	candles *fakeCandles
	metrics *fakeMetrics
	hub     *fakeHub
	queue   *fakeQueue
}

func newFixture(t *testing.T, version int, cfg DecisionConfig) *fixture {
	t.Helper()
	engine, err := scoring.New(scoring.Config{ModelVersion: version})
	require.NoError(t, err)
	f := &fixture{
		store:   newFakeStore(),
		pub:     &fakePublisher{},
		candles: &fakeCandles{},
		metrics: &fakeMetrics{},
		hub:     &fakeHub{},
		queue:   &fakeQueue{},
	}
	f.uc = NewDecisionUseCase(engine, f.store, f.pub, f.candles, f.metrics, cfg)
	f.uc.now = func() time.Time { return fixedNow }
	f.uc.SetHub(f.hub)
	f.uc.SetQueue(f.queue)
	return f
}

func f64(v float64) *float64 { return &v }

func longRead() *models.QualitativeRead {
	return &models.QualitativeRead{Direction: models.DirectionLong, Ambiguity: f64(0.1)}
}

func calmRisk() *models.MarketRiskStats {
	return &models.MarketRiskStats{AtrPct: f64(3), GapPct: f64(1.5)}
}

func dailyBars(n int) []models.Candle {
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{
			Bucket: fixedNow.AddDate(0, 0, i-n),
			Symbol: "NVDA",
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100,
		}
	}
	return out
}

func TestAnalyzeRequiresRead(t *testing.T) {
	f := newFixture(t, 1, DecisionConfig{})
	_, err := f.uc.Analyze(context.Background(), AnalyzeParams{Event: models.EventMeta{Ticker: "NVDA"}})
	assert.ErrorIs(t, err, ErrMissingRead)
}

func TestAnalyzeDoesNotPersist(t *testing.T) {
	f := newFixture(t, 4, DecisionConfig{})
	res, err := f.uc.Analyze(context.Background(), AnalyzeParams{
		Event: models.EventMeta{Ticker: "NVDA", IndependentUpdatesCount: 1},
		Read:  longRead(),
		Risk:  calmRisk(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.SignalBuy, res.Signal)
	assert.Equal(t, 4, res.Meta.ModelVersion)
	assert.Equal(t, fixedNow.Truncate(time.Minute), res.Meta.EvaluatedAt)
	assert.Zero(t, f.store.saves)
	assert.Empty(t, f.pub.published)
	assert.Empty(t, f.hub.tickers)
	assert.Equal(t, 1, f.metrics.decisions)
}

func TestAnalyzeUsesCache(t *testing.T) {
	f := newFixture(t, 1, DecisionConfig{CacheTTL: time.Minute})
	cache := &countingCache{m: map[string][]byte{}}
	f.uc.SetCache(cache)

	p := AnalyzeParams{Event: models.EventMeta{Ticker: "NVDA"}, Read: longRead(), Risk: calmRisk(), AsOf: fixedNow}
	first, err := f.uc.Analyze(context.Background(), p)
	require.NoError(t, err)
	second, err := f.uc.Analyze(context.Background(), p)
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, 1, f.metrics.decisions, "second call is served from cache")

	for k := range cache.m {
		assert.Regexp(t, `^decision:v1:[0-9a-f]{64}$`, k)
	}
}

func TestAnalyzeCacheKeyChangesWithModelVersion(t *testing.T) {
	in := models.DecisionInput{Read: longRead(), EvaluatedAt: fixedNow}
	k1, err := newFixture(t, 1, DecisionConfig{}).uc.cacheKey(in)
	require.NoError(t, err)
	k2, err := newFixture(t, 2, DecisionConfig{}).uc.cacheKey(in)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestAnalyzeEnrichesRiskFromCandles(t *testing.T) {
	f := newFixture(t, 1, DecisionConfig{EnrichRisk: true})
	f.candles.candles = dailyBars(40)

	asOf := time.Date(2024, 6, 3, 14, 0, 0, 0, time.UTC)
	res, err := f.uc.Analyze(context.Background(), AnalyzeParams{
		Event: models.EventMeta{Ticker: "NVDA"},
		Read:  longRead(),
		AsOf:  asOf,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.candles.calls)
	assert.Equal(t, asOf, f.candles.asOf)
	// ATR 2% and no gap from the bars
	assert.Equal(t, 100, res.Confidence.Components.RegimeVol)
	assert.Equal(t, 100, res.Confidence.Components.GapRisk)
	assert.Equal(t, scoring.StopBasisATR, res.SizingHint.StopBasis)
}

func TestAnalyzeEnrichmentFailureFallsBack(t *testing.T) {
	f := newFixture(t, 1, DecisionConfig{EnrichRisk: true})
	f.candles.err = errors.New("clickhouse down")

	res, err := f.uc.Analyze(context.Background(), AnalyzeParams{
		Event: models.EventMeta{Ticker: "NVDA"},
		Read:  longRead(),
	})
	require.NoError(t, err)
	assert.Equal(t, 60, res.Confidence.Components.RegimeVol)
	assert.Equal(t, 65, res.Confidence.Components.GapRisk)
	assert.Contains(t, f.metrics.errors, "enrich_candles")
}

func TestProcessPersistsPublishesAndBroadcasts(t *testing.T) {
	f := newFixture(t, 2, DecisionConfig{})
	rec, err := f.uc.Process(context.Background(), models.ClassifiedEvent{
		Event:   models.EventMeta{ID: "evt-1", Ticker: "AMD", IndependentUpdatesCount: 2},
		Trigger: "NVDA",
		Read:    longRead(),
		Risk:    calmRisk(),
	})
	require.NoError(t, err)

	assert.Equal(t, "evt-1", rec.EventID)
	assert.Equal(t, fixedNow, rec.Input.EvaluatedAt)
	assert.Equal(t, 2, rec.Result.Meta.ModelVersion)
	assert.Equal(t, 1, f.store.saves)
	assert.Equal(t, []string{"evt-1"}, f.pub.published)
	assert.Equal(t, []string{"AMD"}, f.hub.tickers)

	stored, err := f.uc.Get(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, rec.Result.Signal, stored.Result.Signal)
}

func TestProcessValidation(t *testing.T) {
	f := newFixture(t, 1, DecisionConfig{})
	_, err := f.uc.Process(context.Background(), models.ClassifiedEvent{Read: longRead()})
	assert.ErrorIs(t, err, ErrMissingEvent)

	_, err = f.uc.Process(context.Background(), models.ClassifiedEvent{Event: models.EventMeta{ID: "x"}})
	assert.ErrorIs(t, err, ErrMissingRead)
	assert.Zero(t, f.store.saves)
}

func TestProcessStoreFailure(t *testing.T) {
	f := newFixture(t, 1, DecisionConfig{})
	f.store.saveErr = errors.New("boom")
	_, err := f.uc.Process(context.Background(), models.ClassifiedEvent{
		Event: models.EventMeta{ID: "evt-2"},
		Read:  longRead(),
	})
	require.Error(t, err)
	assert.Contains(t, f.metrics.errors, "store_save")
	assert.Empty(t, f.pub.published)
	assert.Empty(t, f.hub.tickers)
}

func TestGetNotFound(t *testing.T) {
	f := newFixture(t, 1, DecisionConfig{})
	_, err := f.uc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRescoreKeepsEvaluationTime(t *testing.T) {
	old := newFixture(t, 1, DecisionConfig{})
	rec, err := old.uc.Process(context.Background(), models.ClassifiedEvent{
		Event: models.EventMeta{ID: "evt-3", Ticker: "TSLA"},
		Read:  longRead(),
	})
	require.NoError(t, err)

	f := newFixture(t, 2, DecisionConfig{})
	f.uc.store = old.store
	f.uc.now = func() time.Time { return fixedNow.Add(72 * time.Hour) }

	got, err := f.uc.Rescore(context.Background(), "evt-3")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Result.Meta.ModelVersion)
	assert.Equal(t, rec.Input.EvaluatedAt, got.Result.Meta.EvaluatedAt)
	assert.Equal(t, rec.Result.Confidence, got.Result.Confidence)
}

func TestRequestRescore(t *testing.T) {
	f := newFixture(t, 1, DecisionConfig{})
	_, err := f.uc.RequestRescore(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.uc.Process(context.Background(), models.ClassifiedEvent{Event: models.EventMeta{ID: "evt-4"}, Read: longRead()})
	require.NoError(t, err)

	id, err := f.uc.RequestRescore(context.Background(), "evt-4")
	require.NoError(t, err)
	require.Len(t, f.queue.payloads, 1)
	assert.Equal(t, RescorePayload{EventID: "evt-4", RequestID: id}, f.queue.payloads[0])

	// a second request while the first is queued is folded into it
	_, err = f.uc.RequestRescore(context.Background(), "evt-4")
	require.NoError(t, err)
	assert.Len(t, f.queue.payloads, 1)

	f.queue.err = errors.New("redis down")
	f.queue.queued = nil
	_, err = f.uc.RequestRescore(context.Background(), "evt-4")
	assert.Error(t, err)
}

func TestRequestRescoreWithoutQueueRunsInline(t *testing.T) {
	f := newFixture(t, 1, DecisionConfig{})
	f.uc.jobs = nil
	_, err := f.uc.Process(context.Background(), models.ClassifiedEvent{Event: models.EventMeta{ID: "evt-5"}, Read: longRead()})
	require.NoError(t, err)

	_, err = f.uc.RequestRescore(context.Background(), "evt-5")
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.saves)
}

func TestEnqueueStale(t *testing.T) {
	old := newFixture(t, 1, DecisionConfig{})
	for _, id := range []string{"a", "b", "c"} {
		_, err := old.uc.Process(context.Background(), models.ClassifiedEvent{Event: models.EventMeta{ID: id}, Read: longRead()})
		require.NoError(t, err)
	}

	f := newFixture(t, 2, DecisionConfig{})
	f.uc.store = old.store
	n, err := f.uc.EnqueueStale(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, f.queue.payloads, 2)

	n, err = f.uc.EnqueueStale(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "events already queued are skipped")

	n, err = old.uc.EnqueueStale(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is stale for the current version")
}

func TestModelInfo(t *testing.T) {
	m := newFixture(t, 7, DecisionConfig{}).uc.Model()
	assert.Equal(t, 7, m.ModelVersion)
	assert.Equal(t, 100, m.EchoWeights.Sum())
	assert.Equal(t, 100, m.NoEchoWeights.Sum())
}
