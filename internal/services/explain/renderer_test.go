package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"EventEdge/internal/domain/models"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer()
	require.NoError(t, err)
	return r
}

func TestEveryCodeHasBothLanguages(t *testing.T) {
	for code, m := range messages {
		assert.NotEmpty(t, m.en, code)
		assert.NotEmpty(t, m.vi, code)
	}
}

func TestRenderEnglish(t *testing.T) {
	r := newRenderer(t)
	out := r.Render([]models.Note{
		models.NewNote(models.NoteEchoPattern, "accuracyPct", 71.0, "sampleSize", 37, "correlation", 0.42),
		models.NewNote(models.NoteSmallSamplePenalty, "sampleSize", 12, "penalty", 8),
		models.NewNote(models.NoteNoGapData),
		models.NewNote(models.NoteDirectionConflict, "history", "SHORT", "read", "LONG"),
	}, "en")

	assert.Equal(t, []string{
		"Historical pattern: 71.0% accuracy over 37 samples, correlation 0.42",
		"Small sample (12 events), echo edge reduced by 8",
		"No gap data, using fallback gap score",
		"Historical pattern points SHORT but the read says LONG",
	}, out)
}

func TestRenderVietnamese(t *testing.T) {
	r := newRenderer(t)
	out := r.Render([]models.Note{
		models.NewNote(models.NoteNoDirection),
		models.NewNote(models.NoteLowConfidence, "overall", 41, "threshold", 55),
	}, "vi-VN")

	assert.Equal(t, []string{
		"Không có nhận định hướng, không giao dịch",
		"Độ tin cậy tổng 41 thấp hơn 55",
	}, out)
}

func TestRenderFallsBackToCode(t *testing.T) {
	r := newRenderer(t)
	out := r.Render([]models.Note{
		{Code: "SOMETHING_NEW"},
		models.NewNote(models.NoteTooVolatile, "regimeVol", 20),
	}, "")
	assert.Equal(t, []string{"SOMETHING_NEW", string(models.NoteTooVolatile)}, out)
}

func TestRenderDecodedParams(t *testing.T) {
	// params decoded from JSON arrive as float64
	r := newRenderer(t)
	out := r.Render([]models.Note{{
		Code:   models.NoteCorroborated,
		Params: map[string]any{"updates": float64(4), "bonus": float64(20)},
	}}, "en")
	assert.Equal(t, []string{"Corroborated by 4 independent updates (+20)"}, out)
}

func TestMatchLanguage(t *testing.T) {
	r := newRenderer(t)
	assert.Equal(t, language.English, r.MatchLanguage())
	assert.Equal(t, language.English, r.MatchLanguage("", "fr-FR"))
	assert.Equal(t, language.Vietnamese, r.MatchLanguage("vi"))
	assert.Equal(t, language.Vietnamese, r.MatchLanguage("", "vi-VN,vi;q=0.9,en;q=0.8"))
	assert.Equal(t, language.English, r.MatchLanguage("not a tag!!"))
}
