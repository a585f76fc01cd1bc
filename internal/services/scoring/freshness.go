package scoring

import (
	"math"
	"time"

	"EventEdge/internal/domain/models"
)

const (
	freshnessBase        = 60
	freshnessCap         = 90
	freshnessFloor       = 30
	freshnessMaxPenalty  = 20
	freshnessGraceHours  = 24
	freshnessStepHours   = 12
	freshnessStepPenalty = 5
)

// ScoreFreshness scores recency and corroboration of the triggering event.
// Age is measured against now, which callers must pin for reproducible results.
func ScoreFreshness(ev models.EventMeta, now time.Time) ComponentResult {
	updates := ev.IndependentUpdatesCount
	if updates <= 0 {
		updates = 1
	}

	score := freshnessBase
	bonus := 0
	switch {
	case updates >= 4:
		bonus = 20
	case updates >= 2:
		bonus = 10
	}
	score += bonus
	if score > freshnessCap {
		score = freshnessCap
	}

	var notes []models.Note
	if bonus > 0 {
		notes = append(notes, models.NewNote(models.NoteCorroborated, "updates", updates, "bonus", bonus))
	}

	if ev.PublishedAt == nil {
		notes = append(notes, models.NewNote(models.NoteNoPublishTime))
		return ComponentResult{Score: score, Notes: notes}
	}

	ageHours := now.Sub(*ev.PublishedAt).Hours()
	if ageHours > freshnessGraceHours {
		steps := math.Floor((ageHours - freshnessGraceHours) / freshnessStepHours)
		penalty := int(steps) * freshnessStepPenalty
		if penalty > freshnessMaxPenalty {
			penalty = freshnessMaxPenalty
		}
		if penalty > 0 {
			score -= penalty
			if score < freshnessFloor {
				score = freshnessFloor
			}
			notes = append(notes, models.NewNote(models.NoteStaleEvent,
				"ageHours", math.Round(ageHours),
				"penalty", penalty,
			))
		}
	}

	return ComponentResult{Score: score, Used: true, Notes: notes}
}
