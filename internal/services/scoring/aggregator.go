package scoring

import "EventEdge/internal/domain/models"

// Weights are integer percentages so that every set sums to exactly 100.
type Weights struct {
	EchoEdge     int `json:"echoEdge"`
	EventClarity int `json:"eventClarity"`
	RegimeVol    int `json:"regimeVol"`
	GapRisk      int `json:"gapRisk"`
	Freshness    int `json:"freshness"`
}

// Sum returns the total weight in percent.
func (w Weights) Sum() int {
	return w.EchoEdge + w.EventClarity + w.RegimeVol + w.GapRisk + w.Freshness
}

var (
	// EchoWeights apply when a usable historical pattern was supplied.
	EchoWeights = Weights{EchoEdge: 40, EventClarity: 20, RegimeVol: 15, GapRisk: 15, Freshness: 10}
	// NoEchoWeights shift weight onto the qualitative and market components.
	NoEchoWeights = Weights{EchoEdge: 15, EventClarity: 30, RegimeVol: 20, GapRisk: 20, Freshness: 15}
)

// WeightsFor selects the weight set.
func WeightsFor(echoUsed bool) Weights {
	if echoUsed {
		return EchoWeights
	}
	return NoEchoWeights
}

// Grade thresholds, highest first.
var gradeSteps = []struct {
	min   int
	grade models.Grade
}{
	{85, models.GradeA},
	{70, models.GradeB},
	{55, models.GradeC},
}

// GradeFor maps an overall score to a letter grade.
func GradeFor(overall int) models.Grade {
	for _, s := range gradeSteps {
		if overall >= s.min {
			return s.grade
		}
	}
	return models.GradeD
}

// Aggregate combines component scores into the overall score.
func Aggregate(c models.ComponentScores, echoUsed bool) (int, models.Grade) {
	w := WeightsFor(echoUsed)
	total := w.EchoEdge*c.EchoEdge +
		w.EventClarity*c.EventClarity +
		w.RegimeVol*c.RegimeVol +
		w.GapRisk*c.GapRisk +
		w.Freshness*c.Freshness
	overall := toScore(float64(total) / 100)
	return overall, GradeFor(overall)
}
