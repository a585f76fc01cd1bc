package scoring

import "EventEdge/internal/domain/models"

const (
	minOverall         = 55
	waitOverallCeiling = 70
	minAccuracy        = 0.55
	conflictThreshold  = 75
	minRegimeVol       = 35
	minGapRisk         = 35
	gapSettleThreshold = 50
	gapSettleClarity   = 70
	entryTypeWait      = "wait"
)

// RuleInput is everything a rule may look at.
type RuleInput struct {
	Components models.ComponentScores
	Overall    int
	History    *models.HistoricalPatternContext
	Read       *models.QualitativeRead
}

// Outcome is the terminal result of a matching rule.
type Outcome struct {
	Signal    models.Signal
	AvoidCode string
	Explain   []models.Note
}

// Rule is one step of the cascade. Eval returns ok=false to fall through.
type Rule struct {
	Name string
	Eval func(in RuleInput) (Outcome, bool)
}

func avoid(code string, notes ...models.Note) (Outcome, bool) {
	return Outcome{Signal: models.SignalAvoid, AvoidCode: code, Explain: notes}, true
}

func wait(notes ...models.Note) (Outcome, bool) {
	return Outcome{Signal: models.SignalWait, AvoidCode: models.WaitForLevel, Explain: notes}, true
}

func pass() (Outcome, bool) { return Outcome{}, false }

// Rules returns the override cascade in evaluation order. Order is part of the contract.
func Rules() []Rule {
	return []Rule{
		{Name: "low_confidence", Eval: lowConfidence},
		{Name: "no_edge", Eval: noEdge},
		{Name: "direction_conflict", Eval: directionConflict},
		{Name: "too_volatile", Eval: tooVolatile},
		{Name: "gap_risk", Eval: gapRisk},
		{Name: "wait_for_level", Eval: waitForLevel},
		{Name: "wait_gap_settle", Eval: waitGapSettle},
	}
}

func lowConfidence(in RuleInput) (Outcome, bool) {
	if in.Overall >= minOverall {
		return pass()
	}
	return avoid(models.AvoidLowConfidence,
		models.NewNote(models.NoteLowConfidence, "overall", in.Overall, "threshold", minOverall))
}

func noEdge(in RuleInput) (Outcome, bool) {
	h := in.History
	if h == nil {
		return pass()
	}
	if h.SampleSize < minimumSampleSize {
		return avoid(models.AvoidNoEdge,
			models.NewNote(models.NoteInsufficientSample, "sampleSize", h.SampleSize, "minimum", minimumSampleSize))
	}
	if acc := h.AccuracyDecimal(); acc < minAccuracy {
		return avoid(models.AvoidNoEdge,
			models.NewNote(models.NoteLowAccuracy, "accuracyPct", round1(acc*100), "minimumPct", round1(minAccuracy*100)))
	}
	return pass()
}

func directionConflict(in RuleInput) (Outcome, bool) {
	if in.History == nil || in.Read == nil {
		return pass()
	}
	read := in.Read.Direction
	hist := historyDirection(in.History.Alignment)
	if read == "" || read == models.DirectionNone || hist == models.DirectionNone || hist == read {
		return pass()
	}
	if in.Components.EchoEdge <= conflictThreshold || in.Components.EventClarity <= conflictThreshold {
		return pass()
	}
	return avoid(models.AvoidConflict,
		models.NewNote(models.NoteDirectionConflict, "history", string(hist), "read", string(read)))
}

func tooVolatile(in RuleInput) (Outcome, bool) {
	if in.Components.RegimeVol >= minRegimeVol {
		return pass()
	}
	return avoid(models.AvoidTooVolatile,
		models.NewNote(models.NoteTooVolatile, "regimeVol", in.Components.RegimeVol, "threshold", minRegimeVol))
}

func gapRisk(in RuleInput) (Outcome, bool) {
	if in.Components.GapRisk >= minGapRisk {
		return pass()
	}
	return avoid(models.AvoidGapRisk,
		models.NewNote(models.NoteGapRiskTooHigh, "gapRisk", in.Components.GapRisk, "threshold", minGapRisk))
}

func waitForLevel(in RuleInput) (Outcome, bool) {
	if in.Overall < minOverall || in.Overall >= waitOverallCeiling || in.Read == nil {
		return pass()
	}
	e := in.Read.Entry
	if e.Type != entryTypeWait && e.Level <= 0 {
		return pass()
	}
	return wait(models.NewNote(models.NoteWaitForEntry, "entryType", e.Type, "entryLevel", e.Level))
}

func waitGapSettle(in RuleInput) (Outcome, bool) {
	if in.Components.GapRisk >= gapSettleThreshold || in.Components.EventClarity <= gapSettleClarity {
		return pass()
	}
	return wait(models.NewNote(models.NoteWaitGapSettle, "gapRisk", in.Components.GapRisk))
}

// directional is the fallback when no override fires.
func directional(in RuleInput) Outcome {
	var dir models.Direction
	if in.Read != nil {
		dir = in.Read.Direction
	}
	switch dir {
	case models.DirectionLong:
		return Outcome{Signal: models.SignalBuy,
			Explain: []models.Note{models.NewNote(models.NoteDirectionalRead, "direction", string(dir))}}
	case models.DirectionShort:
		return Outcome{Signal: models.SignalSell,
			Explain: []models.Note{models.NewNote(models.NoteDirectionalRead, "direction", string(dir))}}
	}
	o, _ := avoid(models.AvoidNoDirection, models.NewNote(models.NoteNoDirection))
	return o
}

// historyDirection maps pattern alignment onto a trade direction.
func historyDirection(a models.Alignment) models.Direction {
	switch a {
	case models.AlignmentTailwind:
		return models.DirectionLong
	case models.AlignmentHeadwind:
		return models.DirectionShort
	}
	return models.DirectionNone
}

// Evaluate runs rules in order and returns the first match, or the directional fallback.
// The returned name is empty when no override fired.
func Evaluate(rules []Rule, in RuleInput) (Outcome, string) {
	for _, r := range rules {
		if o, ok := r.Eval(in); ok {
			return o, r.Name
		}
	}
	return directional(in), ""
}
