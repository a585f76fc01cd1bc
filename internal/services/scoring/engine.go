package scoring

import (
	"fmt"

	"EventEdge/internal/domain/models"
)

// Config is process-wide engine configuration, fixed at startup.
type Config struct {
	ModelVersion int
}

// Engine turns a DecisionInput into a DecisionResult. It holds no mutable
// state and is safe for concurrent use.
type Engine struct {
	modelVersion int
	rules        []Rule
}

// New validates cfg and builds an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.ModelVersion < 1 {
		return nil, fmt.Errorf("scoring: model version must be >= 1, got %d", cfg.ModelVersion)
	}
	return &Engine{modelVersion: cfg.ModelVersion, rules: Rules()}, nil
}

// ModelVersion returns the configured model version.
func (e *Engine) ModelVersion() int { return e.modelVersion }

// Build scores the input, runs the rule cascade and sizes the result.
// Freshness is measured against in.EvaluatedAt, which callers must set; the
// engine never reads the wall clock.
func (e *Engine) Build(in models.DecisionInput) models.DecisionResult {
	now := in.EvaluatedAt

	echo := ScoreEchoEdge(in.History)
	clarity := ScoreEventClarity(in.Read)
	regime := ScoreRegimeVol(in.Risk)
	gap := ScoreGapRisk(in.Risk)
	fresh := ScoreFreshness(in.Event, now)

	components := models.ComponentScores{
		EchoEdge:     echo.Score,
		EventClarity: clarity.Score,
		RegimeVol:    regime.Score,
		GapRisk:      gap.Score,
		Freshness:    fresh.Score,
	}
	overall, grade := Aggregate(components, echo.Used)

	notes := make([]models.Note, 0, 8)
	for _, r := range []ComponentResult{echo, clarity, regime, gap, fresh} {
		notes = append(notes, r.Notes...)
	}

	outcome, _ := Evaluate(e.rules, RuleInput{
		Components: components,
		Overall:    overall,
		History:    in.History,
		Read:       in.Read,
	})

	var avoidCode *string
	if outcome.AvoidCode != "" {
		code := outcome.AvoidCode
		avoidCode = &code
	}
	explain := outcome.Explain
	if explain == nil {
		explain = []models.Note{}
	}

	return models.DecisionResult{
		Signal:    outcome.Signal,
		AvoidCode: avoidCode,
		Explain:   explain,
		Confidence: models.ConfidenceBreakdown{
			Overall:    overall,
			Grade:      grade,
			EchoUsed:   echo.Used,
			Components: components,
			Notes:      notes,
		},
		SizingHint: Size(outcome.Signal, grade, in.Read, in.Risk),
		Meta: models.DecisionMeta{
			ModelVersion: e.modelVersion,
			EvaluatedAt:  now,
		},
	}
}
