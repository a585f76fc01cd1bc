package models

import "time"

// Signal is the final trade decision.
type Signal string

const (
	SignalBuy   Signal = "BUY"
	SignalSell  Signal = "SELL"
	SignalWait  Signal = "WAIT"
	SignalAvoid Signal = "AVOID"
)

// IsActionable reports whether the signal opens a position.
func (s Signal) IsActionable() bool { return s == SignalBuy || s == SignalSell }

// Avoid/wait reason codes attached to a DecisionResult.
const (
	AvoidLowConfidence = "AVOID_LOW_CONFIDENCE"
	AvoidNoEdge        = "AVOID_NO_EDGE"
	AvoidConflict      = "AVOID_CONFLICT"
	AvoidTooVolatile   = "AVOID_TOO_VOLATILE"
	AvoidGapRisk       = "AVOID_GAP_RISK"
	AvoidNoDirection   = "AVOID_NO_DIRECTION"
	WaitForLevel       = "WAIT_FOR_LEVEL"
)

// Direction is the qualitative directional read of an event.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
	DirectionNone  Direction = "NONE"
)

// Alignment of a historical pattern relative to the target instrument.
type Alignment string

const (
	AlignmentTailwind Alignment = "tailwind"
	AlignmentHeadwind Alignment = "headwind"
	AlignmentNeutral  Alignment = "neutral"
)

// Grade summarizes the overall confidence score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// HistoricalPatternContext is the prior statistical relationship between a trigger and a target.
type HistoricalPatternContext struct {
	Accuracy    float64   `json:"accuracy" validate:"gte=0,lte=100"`
	Correlation float64   `json:"correlation"`
	AverageMove float64   `json:"averageMove"`
	SampleSize  int       `json:"sampleSize" validate:"gte=0"`
	Alignment   Alignment `json:"alignment,omitempty" validate:"omitempty,oneof=tailwind headwind neutral"`
}

// AccuracyDecimal returns the 0..100 accuracy as a 0..1 fraction.
func (h HistoricalPatternContext) AccuracyDecimal() float64 {
	return h.Accuracy / 100
}

// Entry describes how the read suggests entering the trade.
type Entry struct {
	Type  string  `json:"type,omitempty"`
	Level float64 `json:"level,omitempty"`
}

// Invalidation is the price level that invalidates the read.
type Invalidation struct {
	Level float64 `json:"level,omitempty"`
}

// QualitativeRead is the output of an external language-model classification of one event.
type QualitativeRead struct {
	Direction    Direction    `json:"direction" validate:"omitempty,oneof=LONG SHORT NONE"`
	Ambiguity    *float64     `json:"ambiguity,omitempty"`
	Hedged       bool         `json:"hedged"`
	Entry        Entry        `json:"entry"`
	Invalidation Invalidation `json:"invalidation"`
}

// MarketRiskStats holds short-term volatility and gap metrics for the target.
type MarketRiskStats struct {
	AtrPct *float64 `json:"atrPct,omitempty"`
	GapPct *float64 `json:"gapPct,omitempty"`
}

// EventMeta is metadata of the triggering event.
type EventMeta struct {
	ID                      string     `json:"id,omitempty"`
	Ticker                  string     `json:"ticker,omitempty"`
	PublishedAt             *time.Time `json:"publishedAt,omitempty"`
	IndependentUpdatesCount int        `json:"independentUpdatesCount" validate:"gte=0"`
}

// DecisionInput bundles everything the engine reads for one decision.
// EvaluatedAt is the clock the freshness score is measured against.
type DecisionInput struct {
	Event       EventMeta                 `json:"event"`
	History     *HistoricalPatternContext `json:"history,omitempty"`
	Read        *QualitativeRead          `json:"read,omitempty"`
	Risk        *MarketRiskStats          `json:"risk,omitempty"`
	EvaluatedAt time.Time                 `json:"evaluatedAt"`
}

// ComponentScores are the five scorer outputs, each 0..100.
type ComponentScores struct {
	EchoEdge     int `json:"echoEdge"`
	EventClarity int `json:"eventClarity"`
	RegimeVol    int `json:"regimeVol"`
	GapRisk      int `json:"gapRisk"`
	Freshness    int `json:"freshness"`
}

// ConfidenceBreakdown is the explainable confidence result.
type ConfidenceBreakdown struct {
	Overall    int             `json:"overall"`
	Grade      Grade           `json:"grade"`
	EchoUsed   bool            `json:"echoUsed"`
	Components ComponentScores `json:"components"`
	Notes      []Note          `json:"notes"`
}

// SizingHint is a bounded position-sizing recommendation.
type SizingHint struct {
	RiskPerTradePct      float64 `json:"riskPerTradePct"`
	SuggestedPositionPct float64 `json:"suggestedPositionPct"`
	StopDistancePct      float64 `json:"stopDistancePct"`
	MaxPositionPct       float64 `json:"maxPositionPct"`
	StopBasis            string  `json:"stopBasis"`
	Notes                []Note  `json:"notes"`
}

// DecisionMeta carries versioning information for cache invalidation.
type DecisionMeta struct {
	ModelVersion int       `json:"modelVersion"`
	EvaluatedAt  time.Time `json:"evaluatedAt"`
}

// DecisionResult is the top-level engine output.
type DecisionResult struct {
	Signal     Signal              `json:"signal"`
	AvoidCode  *string             `json:"avoidCode"`
	Explain    []Note              `json:"explain"`
	Confidence ConfidenceBreakdown `json:"confidence"`
	SizingHint SizingHint          `json:"sizingHint"`
	Meta       DecisionMeta        `json:"meta"`
}

// ClassifiedEvent is the envelope the ingestion pipeline receives after classification.
type ClassifiedEvent struct {
	Event   EventMeta                 `json:"event"`
	Trigger string                    `json:"trigger,omitempty"`
	History *HistoricalPatternContext `json:"history,omitempty" validate:"omitempty"`
	Read    *QualitativeRead          `json:"read" validate:"required"`
	Risk    *MarketRiskStats          `json:"risk,omitempty"`
}

// DecisionRecord is a persisted decision keyed by event id.
type DecisionRecord struct {
	EventID   string         `json:"eventId"`
	Ticker    string         `json:"ticker"`
	Trigger   string         `json:"trigger,omitempty"`
	Input     DecisionInput  `json:"input"`
	Result    DecisionResult `json:"result"`
	CreatedAt time.Time      `json:"createdAt"`
}
