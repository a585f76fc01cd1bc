package scoring

import (
	"math"

	"EventEdge/internal/domain/models"
)

const (
	echoNeutralScore = 50

	echoWeightAccuracy    = 0.45
	echoWeightCorrelation = 0.25
	echoWeightSample      = 0.20
	echoWeightMagnitude   = 0.10

	smallSamplePenalty   = 8
	tinySamplePenalty    = 15
	smallSampleThreshold = 20
	minimumSampleSize    = 10
)

// ComponentResult is the output of one scorer.
type ComponentResult struct {
	Score int
	Used  bool
	Notes []models.Note
}

// ScoreEchoEdge scores the strength and reliability of a historical pattern.
// A missing context is a neutral prior, not a penalty.
func ScoreEchoEdge(h *models.HistoricalPatternContext) ComponentResult {
	if h == nil {
		return ComponentResult{
			Score: echoNeutralScore,
			Notes: []models.Note{models.NewNote(models.NoteNoHistoricalData)},
		}
	}

	acc := h.AccuracyDecimal()
	accuracySub := clamp((acc-0.5)/0.3, 0, 1) * 100
	correlationSub := clamp(math.Abs(h.Correlation)/0.6, 0, 1) * 100
	sampleSub := clamp(float64(h.SampleSize-10)/40, 0, 1) * 100
	magnitudeSub := clamp((math.Abs(h.AverageMove)-0.5)/3.0, 0, 1) * 100

	raw := echoWeightAccuracy*accuracySub +
		echoWeightCorrelation*correlationSub +
		echoWeightSample*sampleSub +
		echoWeightMagnitude*magnitudeSub

	notes := []models.Note{models.NewNote(models.NoteEchoPattern,
		"accuracyPct", round1(acc*100),
		"sampleSize", h.SampleSize,
		"correlation", round2(h.Correlation),
	)}

	penalty := 0
	switch {
	case h.SampleSize < minimumSampleSize:
		penalty = tinySamplePenalty
	case h.SampleSize < smallSampleThreshold:
		penalty = smallSamplePenalty
	}
	if penalty > 0 {
		raw -= float64(penalty)
		notes = append(notes, models.NewNote(models.NoteSmallSamplePenalty,
			"sampleSize", h.SampleSize,
			"penalty", penalty,
		))
	}

	return ComponentResult{Score: toScore(raw), Used: true, Notes: notes}
}
