package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EventEdge/internal/domain/models"
)

func f64(v float64) *float64 { return &v }

func codes(notes []models.Note) []models.NoteCode {
	out := make([]models.NoteCode, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Code)
	}
	return out
}

func TestScoreEchoEdge(t *testing.T) {
	t.Run("absent is neutral", func(t *testing.T) {
		r := ScoreEchoEdge(nil)
		assert.Equal(t, 50, r.Score)
		assert.False(t, r.Used)
		assert.Equal(t, []models.NoteCode{models.NoteNoHistoricalData}, codes(r.Notes))
	})

	t.Run("saturated pattern", func(t *testing.T) {
		r := ScoreEchoEdge(&models.HistoricalPatternContext{Accuracy: 80, Correlation: -0.6, AverageMove: 3.5, SampleSize: 50})
		assert.Equal(t, 100, r.Score)
		assert.True(t, r.Used)
		assert.Equal(t, []models.NoteCode{models.NoteEchoPattern}, codes(r.Notes))
	})

	t.Run("accuracy is always a percentage", func(t *testing.T) {
		low := ScoreEchoEdge(&models.HistoricalPatternContext{Accuracy: 1, Correlation: 0.3, AverageMove: 1, SampleSize: 30})
		high := ScoreEchoEdge(&models.HistoricalPatternContext{Accuracy: 70, Correlation: 0.3, AverageMove: 1, SampleSize: 30})
		assert.Less(t, low.Score, high.Score)
		assert.Equal(t, 1.0, low.Notes[0].Params["accuracyPct"])
	})

	t.Run("small sample penalty", func(t *testing.T) {
		h := &models.HistoricalPatternContext{Accuracy: 80, Correlation: 0.6, AverageMove: 3.5, SampleSize: 18}
		r := ScoreEchoEdge(h)
		// 0.45*100 + 0.25*100 + 0.20*20 + 0.10*100 - 8
		assert.Equal(t, 76, r.Score)
		require.Len(t, r.Notes, 2)
		assert.Equal(t, models.NoteSmallSamplePenalty, r.Notes[1].Code)
		assert.Equal(t, 8, r.Notes[1].Params["penalty"])
	})

	t.Run("tiny sample penalty floors at zero", func(t *testing.T) {
		r := ScoreEchoEdge(&models.HistoricalPatternContext{Accuracy: 40, SampleSize: 3})
		assert.Equal(t, 0, r.Score)
		assert.Equal(t, 15, r.Notes[1].Params["penalty"])
	})
}

func TestScoreEventClarity(t *testing.T) {
	tests := []struct {
		name  string
		read  *models.QualitativeRead
		score int
		notes []models.NoteCode
		used  bool
	}{
		{"missing read", nil, 70, nil, false},
		{"partial read", &models.QualitativeRead{Direction: models.DirectionLong}, 70, nil, true},
		{"clear", &models.QualitativeRead{Ambiguity: f64(0.1)}, 90, nil, true},
		{"hedged", &models.QualitativeRead{Ambiguity: f64(0.1), Hedged: true}, 80, []models.NoteCode{models.NoteHedgedLanguage}, true},
		{"ambiguous", &models.QualitativeRead{Ambiguity: f64(0.6)}, 40, []models.NoteCode{models.NoteHighAmbiguity}, true},
		{"hedged and opaque floors at zero", &models.QualitativeRead{Ambiguity: f64(1), Hedged: true}, 0,
			[]models.NoteCode{models.NoteHedgedLanguage, models.NoteHighAmbiguity}, true},
		{"out of range ambiguity clamps", &models.QualitativeRead{Ambiguity: f64(-2)}, 100, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ScoreEventClarity(tt.read)
			assert.Equal(t, tt.score, r.Score)
			assert.Equal(t, tt.used, r.Used)
			if tt.notes == nil {
				assert.Empty(t, r.Notes)
			} else {
				assert.Equal(t, tt.notes, codes(r.Notes))
			}
		})
	}
}

func TestScoreRegimeVol(t *testing.T) {
	r := ScoreRegimeVol(nil)
	assert.Equal(t, 60, r.Score)
	assert.False(t, r.Used)
	assert.Equal(t, []models.NoteCode{models.NoteNoVolatilityData}, codes(r.Notes))

	r = ScoreRegimeVol(&models.MarketRiskStats{GapPct: f64(2)})
	assert.Equal(t, 60, r.Score)

	for atr, want := range map[float64]int{0.5: 100, 2: 100, 3: 83, 5: 50, 8: 0, 20: 0} {
		assert.Equal(t, want, ScoreRegimeVol(&models.MarketRiskStats{AtrPct: f64(atr)}).Score, "atr %v", atr)
	}

	assert.Empty(t, ScoreRegimeVol(&models.MarketRiskStats{AtrPct: f64(4.9)}).Notes)
	assert.Equal(t, []models.NoteCode{models.NoteVolatilityElevated},
		codes(ScoreRegimeVol(&models.MarketRiskStats{AtrPct: f64(5)}).Notes))
}

func TestScoreGapRisk(t *testing.T) {
	r := ScoreGapRisk(nil)
	assert.Equal(t, 65, r.Score)
	assert.Equal(t, []models.NoteCode{models.NoteNoGapData}, codes(r.Notes))

	for gap, want := range map[float64]int{0: 100, 1: 100, 1.5: 92, 4: 50, 7: 0, 12: 0} {
		assert.Equal(t, want, ScoreGapRisk(&models.MarketRiskStats{GapPct: f64(gap)}).Score, "gap %v", gap)
	}

	assert.Empty(t, ScoreGapRisk(&models.MarketRiskStats{GapPct: f64(2.9)}).Notes)
	assert.Equal(t, []models.NoteCode{models.NoteGapRiskElevated},
		codes(ScoreGapRisk(&models.MarketRiskStats{GapPct: f64(3)}).Notes))
}

func TestScoreFreshness(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	ago := func(h float64) *time.Time {
		p := now.Add(-time.Duration(h * float64(time.Hour)))
		return &p
	}

	tests := []struct {
		name    string
		ev      models.EventMeta
		score   int
		penalty any
	}{
		{"default single update", models.EventMeta{IndependentUpdatesCount: 0, PublishedAt: ago(1)}, 60, nil},
		{"two updates", models.EventMeta{IndependentUpdatesCount: 2, PublishedAt: ago(1)}, 70, nil},
		{"four updates", models.EventMeta{IndependentUpdatesCount: 9, PublishedAt: ago(1)}, 80, nil},
		{"under one stale step", models.EventMeta{IndependentUpdatesCount: 4, PublishedAt: ago(30)}, 80, nil},
		{"two stale steps", models.EventMeta{IndependentUpdatesCount: 1, PublishedAt: ago(48)}, 50, 10},
		{"penalty capped", models.EventMeta{IndependentUpdatesCount: 1, PublishedAt: ago(200)}, 40, 20},
		{"no publish time", models.EventMeta{IndependentUpdatesCount: 1}, 60, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ScoreFreshness(tt.ev, now)
			assert.Equal(t, tt.score, r.Score)
			var stale *models.Note
			for i := range r.Notes {
				if r.Notes[i].Code == models.NoteStaleEvent {
					stale = &r.Notes[i]
				}
			}
			if tt.penalty == nil {
				assert.Nil(t, stale)
				return
			}
			require.NotNil(t, stale)
			assert.Equal(t, tt.penalty, stale.Params["penalty"])
		})
	}

	r := ScoreFreshness(models.EventMeta{}, now)
	assert.False(t, r.Used)
	assert.Contains(t, codes(r.Notes), models.NoteNoPublishTime)
}

func TestWeightsSumToOneHundred(t *testing.T) {
	assert.Equal(t, 100, EchoWeights.Sum())
	assert.Equal(t, 100, NoEchoWeights.Sum())
}

func TestGradeFor(t *testing.T) {
	assert.Equal(t, models.GradeA, GradeFor(85))
	assert.Equal(t, models.GradeB, GradeFor(84))
	assert.Equal(t, models.GradeB, GradeFor(70))
	assert.Equal(t, models.GradeC, GradeFor(69))
	assert.Equal(t, models.GradeC, GradeFor(55))
	assert.Equal(t, models.GradeD, GradeFor(54))
	assert.Equal(t, models.GradeD, GradeFor(0))

	rank := map[models.Grade]int{models.GradeD: 0, models.GradeC: 1, models.GradeB: 2, models.GradeA: 3}
	prev := rank[GradeFor(0)]
	for o := 1; o <= 100; o++ {
		cur := rank[GradeFor(o)]
		assert.GreaterOrEqual(t, cur, prev, "grade must not drop at %d", o)
		prev = cur
	}
}

func TestAggregate(t *testing.T) {
	c := models.ComponentScores{EchoEdge: 50, EventClarity: 90, RegimeVol: 83, GapRisk: 92, Freshness: 60}

	overall, grade := Aggregate(c, false)
	assert.Equal(t, 79, overall)
	assert.Equal(t, models.GradeB, grade)

	overall, grade = Aggregate(c, true)
	// 0.40*50 + 0.20*90 + 0.15*83 + 0.15*92 + 0.10*60 = 70.25
	assert.Equal(t, 70, overall)
	assert.Equal(t, models.GradeB, grade)

	all := models.ComponentScores{EchoEdge: 100, EventClarity: 100, RegimeVol: 100, GapRisk: 100, Freshness: 100}
	overall, grade = Aggregate(all, true)
	assert.Equal(t, 100, overall)
	assert.Equal(t, models.GradeA, grade)
}
