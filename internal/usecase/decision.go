package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"EventEdge/internal/domain/models"
	domrepo "EventEdge/internal/domain/repository"
	domsvc "EventEdge/internal/domain/service"
	icache "EventEdge/internal/service/cache"
	svcmetrics "EventEdge/internal/service/metrics"
	"EventEdge/internal/services/features"
	"EventEdge/internal/services/scoring"
	applogger "EventEdge/pkg/logger"
	"EventEdge/pkg/queue"
)

var (
	ErrMissingRead  = errors.New("qualitative read is required")
	ErrMissingEvent = errors.New("event id is required")
	ErrNotFound     = errors.New("decision not found")
)

// Broadcaster pushes processed decisions to live subscribers.
type Broadcaster interface {
	Broadcast(ticker string, data any)
}

// Enqueuer schedules background jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

type DecisionConfig struct {
	CacheTTL        time.Duration
	EnrichRisk      bool
	CandleTimeframe domrepo.Timeframe
	ATRPeriod       int
	EnrichTimeout   time.Duration
}

// DecisionUseCase wires the scoring engine to storage, transport and caches.
type DecisionUseCase struct {
	engine    domsvc.DecisionEngine
	store     domrepo.DecisionStore
	publisher domrepo.DecisionPublisher
	candles   domrepo.CandleStore
	metrics   domrepo.Metrics
	cfg       DecisionConfig

	cache icache.BytesCache
	hub   Broadcaster
	jobs  Enqueuer
	l     *applogger.Logger
	now   func() time.Time
}

func NewDecisionUseCase(engine domsvc.DecisionEngine, store domrepo.DecisionStore, publisher domrepo.DecisionPublisher,
	candles domrepo.CandleStore, m domrepo.Metrics, cfg DecisionConfig) *DecisionUseCase {
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = features.DefaultATRPeriod
	}
	if !domrepo.IsValidTimeframe(cfg.CandleTimeframe) {
		cfg.CandleTimeframe = domrepo.DefaultTimeframe()
	}
	if cfg.EnrichTimeout <= 0 {
		cfg.EnrichTimeout = 3 * time.Second
	}
	svcmetrics.Register()
	return &DecisionUseCase{
		engine:    engine,
		store:     store,
		publisher: publisher,
		candles:   candles,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (uc *DecisionUseCase) SetCache(c icache.BytesCache) { uc.cache = c }
func (uc *DecisionUseCase) SetHub(h Broadcaster)         { uc.hub = h }
func (uc *DecisionUseCase) SetQueue(q Enqueuer)          { uc.jobs = q }

// SetLogger injects a structured logger.
func (uc *DecisionUseCase) SetLogger(l *applogger.Logger) { uc.l = l }

// ModelVersion is the version stamped on every new decision.
func (uc *DecisionUseCase) ModelVersion() int { return uc.engine.ModelVersion() }

type AnalyzeParams struct {
	Event   models.EventMeta
	History *models.HistoricalPatternContext
	Read    *models.QualitativeRead
	Risk    *models.MarketRiskStats
	// AsOf pins the evaluation clock. Zero means now, truncated to the minute.
	AsOf time.Time
}

// Analyze builds a decision without persisting it. Results are cached per
// model version and input.
func (uc *DecisionUseCase) Analyze(ctx context.Context, p AnalyzeParams) (*models.DecisionResult, error) {
	start := uc.now()
	defer func() { uc.metrics.RecordLatency("analyze", time.Since(start).Seconds()) }()

	if p.Read == nil {
		return nil, ErrMissingRead
	}
	at := p.AsOf
	if at.IsZero() {
		at = uc.now().UTC().Truncate(time.Minute)
	}
	in := models.DecisionInput{
		Event:       p.Event,
		History:     p.History,
		Read:        p.Read,
		Risk:        p.Risk,
		EvaluatedAt: at.UTC(),
	}
	if in.Risk == nil {
		in.Risk = uc.enrich(ctx, in.Event.Ticker, in.EvaluatedAt)
	}

	key, err := uc.cacheKey(in)
	if err != nil {
		return nil, err
	}
	if res, ok := uc.cached(ctx, key); ok {
		return res, nil
	}

	res := uc.engine.Build(in)
	uc.record(res)
	uc.fillCache(ctx, key, &res)
	return &res, nil
}

// Process is the pipeline path: build, persist, publish and broadcast.
func (uc *DecisionUseCase) Process(ctx context.Context, ev models.ClassifiedEvent) (*models.DecisionRecord, error) {
	start := uc.now()
	defer func() { uc.metrics.RecordLatency("process", time.Since(start).Seconds()) }()

	if ev.Event.ID == "" {
		return nil, ErrMissingEvent
	}
	if ev.Read == nil {
		return nil, ErrMissingRead
	}
	in := models.DecisionInput{
		Event:       ev.Event,
		History:     ev.History,
		Read:        ev.Read,
		Risk:        ev.Risk,
		EvaluatedAt: uc.now().UTC(),
	}
	if in.Risk == nil {
		in.Risk = uc.enrich(ctx, in.Event.Ticker, in.EvaluatedAt)
	}

	rec := &models.DecisionRecord{
		EventID:   ev.Event.ID,
		Ticker:    ev.Event.Ticker,
		Trigger:   ev.Trigger,
		Input:     in,
		Result:    uc.engine.Build(in),
		CreatedAt: in.EvaluatedAt,
	}
	uc.record(rec.Result)
	if err := uc.persist(ctx, rec); err != nil {
		return nil, err
	}
	if uc.l != nil {
		uc.l.Info("decision processed",
			applogger.String("event_id", rec.EventID),
			applogger.String("ticker", rec.Ticker),
			applogger.String("signal", string(rec.Result.Signal)),
			applogger.Int("overall", rec.Result.Confidence.Overall),
		)
	}
	return rec, nil
}

// Get returns a stored decision.
func (uc *DecisionUseCase) Get(ctx context.Context, eventID string) (*models.DecisionRecord, error) {
	rec, err := uc.store.Get(ctx, eventID)
	if errors.Is(err, domrepo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		uc.metrics.RecordError("store_get")
		return nil, fmt.Errorf("get decision %s: %w", eventID, err)
	}
	return rec, nil
}

// Rescore rebuilds a stored decision with the current model. The original
// evaluation time is kept so only the model changes.
func (uc *DecisionUseCase) Rescore(ctx context.Context, eventID string) (*models.DecisionRecord, error) {
	rec, err := uc.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	prev := rec.Result.Meta.ModelVersion
	rec.Result = uc.engine.Build(rec.Input)
	uc.record(rec.Result)
	if err := uc.persist(ctx, rec); err != nil {
		return nil, err
	}
	if uc.l != nil {
		uc.l.Info("decision rescored",
			applogger.String("event_id", eventID),
			applogger.Int("from_version", prev),
			applogger.Int("to_version", rec.Result.Meta.ModelVersion),
			applogger.String("signal", string(rec.Result.Signal)),
		)
	}
	return rec, nil
}

// RequestRescore schedules a rescore and returns the job id. Without a queue
// the rescore runs inline.
func (uc *DecisionUseCase) RequestRescore(ctx context.Context, eventID string) (string, error) {
	if _, err := uc.Get(ctx, eventID); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if uc.jobs == nil {
		if _, err := uc.Rescore(ctx, eventID); err != nil {
			return "", err
		}
		return id, nil
	}
	err := uc.jobs.Enqueue(ctx, RescoreJobType, RescorePayload{EventID: eventID, RequestID: id})
	if errors.Is(err, queue.ErrDuplicate) {
		return id, nil
	}
	if err != nil {
		uc.metrics.RecordError("enqueue_rescore")
		return "", fmt.Errorf("enqueue rescore: %w", err)
	}
	return id, nil
}

// EnqueueStale schedules rescoring for decisions built by an older model.
// Events already waiting in the queue are skipped and not counted.
func (uc *DecisionUseCase) EnqueueStale(ctx context.Context, limit int) (int, error) {
	if uc.jobs == nil {
		return 0, nil
	}
	ids, err := uc.store.ListStale(ctx, uc.engine.ModelVersion(), limit)
	if err != nil {
		uc.metrics.RecordError("list_stale")
		return 0, fmt.Errorf("list stale: %w", err)
	}
	n := 0
	for _, id := range ids {
		err := uc.jobs.Enqueue(ctx, RescoreJobType, RescorePayload{EventID: id, RequestID: uuid.NewString()})
		if errors.Is(err, queue.ErrDuplicate) {
			continue
		}
		if err != nil {
			uc.metrics.RecordError("enqueue_rescore")
			return n, fmt.Errorf("enqueue rescore %s: %w", id, err)
		}
		n++
	}
	return n, nil
}

// ModelInfo describes the active scoring model.
type ModelInfo struct {
	ModelVersion  int             `json:"modelVersion"`
	EchoWeights   scoring.Weights `json:"echoWeights"`
	NoEchoWeights scoring.Weights `json:"noEchoWeights"`
}

func (uc *DecisionUseCase) Model() ModelInfo {
	return ModelInfo{
		ModelVersion:  uc.engine.ModelVersion(),
		EchoWeights:   scoring.EchoWeights,
		NoEchoWeights: scoring.NoEchoWeights,
	}
}

func (uc *DecisionUseCase) persist(ctx context.Context, rec *models.DecisionRecord) error {
	if err := uc.store.Save(ctx, rec); err != nil {
		uc.metrics.RecordError("store_save")
		return fmt.Errorf("save decision %s: %w", rec.EventID, err)
	}
	if uc.publisher != nil {
		if err := uc.publisher.Publish(ctx, rec); err != nil {
			uc.metrics.RecordError("publish")
			return fmt.Errorf("publish decision %s: %w", rec.EventID, err)
		}
	}
	if uc.hub != nil {
		uc.hub.Broadcast(rec.Ticker, rec)
	}
	return nil
}

// enrich derives risk stats from bars closed by asOf. Failures degrade to
// the scorer fallbacks.
func (uc *DecisionUseCase) enrich(ctx context.Context, ticker string, asOf time.Time) *models.MarketRiskStats {
	if !uc.cfg.EnrichRisk || uc.candles == nil || ticker == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, uc.cfg.EnrichTimeout)
	defer cancel()

	cs, err := uc.candles.LatestCandles(ctx, ticker, uc.cfg.CandleTimeframe, uc.cfg.ATRPeriod*2+1, asOf)
	if err != nil {
		uc.metrics.RecordError("enrich_candles")
		if uc.l != nil {
			uc.l.Warn("risk enrichment failed", applogger.String("ticker", ticker), applogger.Error(err))
		}
		return nil
	}
	return features.RiskStatsFromCandles(cs, uc.cfg.ATRPeriod)
}

func (uc *DecisionUseCase) record(res models.DecisionResult) {
	code := ""
	if res.AvoidCode != nil {
		code = *res.AvoidCode
	}
	uc.metrics.RecordDecision(string(res.Signal), code, string(res.Confidence.Grade))
	uc.metrics.RecordOverall(res.Confidence.Overall)
}

func (uc *DecisionUseCase) cacheKey(in models.DecisionInput) (string, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal input: %w", err)
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("decision:v%d:%s", uc.engine.ModelVersion(), hex.EncodeToString(sum[:])), nil
}

func (uc *DecisionUseCase) cached(ctx context.Context, key string) (*models.DecisionResult, bool) {
	if uc.cache == nil {
		return nil, false
	}
	b, ok, err := uc.cache.GetBytes(ctx, key)
	if err != nil {
		if uc.l != nil {
			uc.l.Warn("decision cache_get_error", applogger.Error(err))
		}
		return nil, false
	}
	if !ok {
		svcmetrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	svcmetrics.CacheLookups.WithLabelValues("hit").Inc()
	var res models.DecisionResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, false
	}
	return &res, true
}

func (uc *DecisionUseCase) fillCache(ctx context.Context, key string, res *models.DecisionResult) {
	if uc.cache == nil || uc.cfg.CacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := uc.cache.SetBytes(ctx, key, b, uc.cfg.CacheTTL); err != nil && uc.l != nil {
		uc.l.Warn("decision cache_set_error", applogger.Error(err))
	}
}
