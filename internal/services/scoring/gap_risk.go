package scoring

import "EventEdge/internal/domain/models"

const (
	gapFallbackScore = 65
	gapCalmPct       = 1.0
	gapSpanPct       = 6.0
	gapElevatedPct   = 3.0
)

// ScoreGapRisk maps the overnight gap% to a score: 1% → 100, 7% and above → 0.
func ScoreGapRisk(s *models.MarketRiskStats) ComponentResult {
	if s == nil || s.GapPct == nil {
		return ComponentResult{
			Score: gapFallbackScore,
			Notes: []models.Note{models.NewNote(models.NoteNoGapData)},
		}
	}

	gap := *s.GapPct
	if gap < 0 {
		gap = 0
	}
	raw := 100 - clamp01((gap-gapCalmPct)/gapSpanPct)*100

	var notes []models.Note
	if gap >= gapElevatedPct {
		notes = append(notes, models.NewNote(models.NoteGapRiskElevated, "gapPct", round2(gap)))
	}
	return ComponentResult{Score: toScore(raw), Used: true, Notes: notes}
}
