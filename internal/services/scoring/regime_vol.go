package scoring

import "EventEdge/internal/domain/models"

const (
	regimeFallbackScore = 60
	regimeCalmATR       = 2.0
	regimeATRSpan       = 6.0
	regimeElevatedATR   = 5.0
)

// ScoreRegimeVol maps ATR% to a score: 2% → 100, 8% and above → 0.
func ScoreRegimeVol(s *models.MarketRiskStats) ComponentResult {
	if s == nil || s.AtrPct == nil {
		return ComponentResult{
			Score: regimeFallbackScore,
			Notes: []models.Note{models.NewNote(models.NoteNoVolatilityData)},
		}
	}

	atr := *s.AtrPct
	if atr < 0 {
		atr = 0
	}
	raw := 100 - clamp01((atr-regimeCalmATR)/regimeATRSpan)*100

	var notes []models.Note
	if atr >= regimeElevatedATR {
		notes = append(notes, models.NewNote(models.NoteVolatilityElevated, "atrPct", round2(atr)))
	}
	return ComponentResult{Score: toScore(raw), Used: true, Notes: notes}
}
