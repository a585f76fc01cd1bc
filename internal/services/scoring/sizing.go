package scoring

import (
	"math"

	"github.com/shopspring/decimal"

	"EventEdge/internal/domain/models"
)

const (
	defaultStopPct      = 3.0
	fallbackPositionPct = 3.0
	minPositionPct      = 1.0
	maxPositionPct      = 15.0
	positionMultiplier  = 10

	StopBasisLevels  = "levels"
	StopBasisATR     = "atr"
	StopBasisDefault = "default"
)

var riskByGrade = map[models.Grade]float64{
	models.GradeA: 1.0,
	models.GradeB: 0.5,
	models.GradeC: 0.25,
	models.GradeD: 0,
}

// RiskPerTrade returns the risk budget in percent of equity for a grade.
func RiskPerTrade(g models.Grade) float64 {
	return riskByGrade[g]
}

// StopDistance picks the stop distance in percent from the best available source.
func StopDistance(read *models.QualitativeRead, risk *models.MarketRiskStats) (float64, string, models.Note) {
	if read != nil && read.Entry.Level > 0 && read.Invalidation.Level > 0 {
		d := math.Abs(read.Invalidation.Level-read.Entry.Level) / read.Entry.Level * 100
		return d, StopBasisLevels, models.NewNote(models.NoteStopFromLevels,
			"entryLevel", read.Entry.Level,
			"invalidationLevel", read.Invalidation.Level,
			"stopPct", round2(d),
		)
	}
	if risk != nil && risk.AtrPct != nil && *risk.AtrPct > 0 {
		d := *risk.AtrPct
		return d, StopBasisATR, models.NewNote(models.NoteStopFromATR, "atrPct", round2(d))
	}
	return defaultStopPct, StopBasisDefault, models.NewNote(models.NoteStopDefault, "stopPct", defaultStopPct)
}

// Size builds the sizing hint for a decided signal.
func Size(signal models.Signal, grade models.Grade, read *models.QualitativeRead, risk *models.MarketRiskStats) models.SizingHint {
	riskPct := RiskPerTrade(grade)
	stop, basis, stopNote := StopDistance(read, risk)
	notes := []models.Note{stopNote}

	var position float64
	switch {
	case !signal.IsActionable():
		position = 0
		notes = append(notes, models.NewNote(models.NoteNoPosition, "signal", string(signal)))
	case stop > 0:
		position = clamp(riskPct/stop*positionMultiplier, minPositionPct, maxPositionPct)
	default:
		position = fallbackPositionPct
	}

	return models.SizingHint{
		RiskPerTradePct:      pct(riskPct),
		SuggestedPositionPct: pct(position),
		StopDistancePct:      pct(stop),
		MaxPositionPct:       maxPositionPct,
		StopBasis:            basis,
		Notes:                notes,
	}
}

// pct rounds a reported percentage to two decimals.
func pct(f float64) float64 {
	v, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return v
}
