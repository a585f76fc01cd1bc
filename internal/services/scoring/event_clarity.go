package scoring

import "EventEdge/internal/domain/models"

const (
	defaultAmbiguity    = 0.3
	hedgedPenalty       = 10
	highAmbiguityMarker = 0.6
)

// ScoreEventClarity scores how unambiguous the qualitative read is.
// A nil or partial read is treated as moderately ambiguous.
func ScoreEventClarity(r *models.QualitativeRead) ComponentResult {
	ambiguity := defaultAmbiguity
	hedged := false
	if r != nil {
		if r.Ambiguity != nil {
			ambiguity = clamp01(*r.Ambiguity)
		}
		hedged = r.Hedged
	}

	raw := (1 - ambiguity) * 100
	var notes []models.Note
	if hedged {
		raw -= hedgedPenalty
		notes = append(notes, models.NewNote(models.NoteHedgedLanguage, "penalty", hedgedPenalty))
	}
	if ambiguity >= highAmbiguityMarker {
		notes = append(notes, models.NewNote(models.NoteHighAmbiguity, "ambiguity", round2(ambiguity)))
	}

	return ComponentResult{Score: toScore(raw), Used: r != nil, Notes: notes}
}
