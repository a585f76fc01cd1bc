package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EventEdge/internal/domain/models"
	domrepo "EventEdge/internal/domain/repository"
	pkgkafka "EventEdge/pkg/kafka"
	applogger "EventEdge/pkg/logger"
)

func sampleRecord() *models.DecisionRecord {
	at := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	code := models.AvoidGapRisk
	return &models.DecisionRecord{
		EventID: "evt-9",
		Ticker:  "AMD",
		Trigger: "NVDA",
		Input: models.DecisionInput{
			Event:       models.EventMeta{ID: "evt-9", Ticker: "AMD", IndependentUpdatesCount: 2},
			Read:        &models.QualitativeRead{Direction: models.DirectionShort},
			EvaluatedAt: at,
		},
		Result: models.DecisionResult{
			Signal:    models.SignalAvoid,
			AvoidCode: &code,
			Explain:   []models.Note{models.NewNote(models.NoteGapRiskTooHigh, "gapRisk", 20, "threshold", 35)},
			Confidence: models.ConfidenceBreakdown{
				Overall: 61,
				Grade:   models.GradeC,
			},
			Meta: models.DecisionMeta{ModelVersion: 2, EvaluatedAt: at},
		},
		CreatedAt: at,
	}
}

func TestDecisionRowRoundTrip(t *testing.T) {
	rec := sampleRecord()
	row, err := toRow(rec)
	require.NoError(t, err)

	assert.Equal(t, "AVOID", row.Signal)
	assert.Equal(t, models.AvoidGapRisk, row.AvoidCode)
	assert.Equal(t, uint8(61), row.Overall)
	assert.Equal(t, "C", row.Grade)
	assert.Equal(t, uint32(2), row.ModelVersion)

	back, err := fromRow(row)
	require.NoError(t, err)
	assert.Equal(t, rec.EventID, back.EventID)
	assert.Equal(t, rec.Result.Signal, back.Result.Signal)
	require.NotNil(t, back.Result.AvoidCode)
	assert.Equal(t, models.AvoidGapRisk, *back.Result.AvoidCode)
	assert.Equal(t, models.DirectionShort, back.Input.Read.Direction)
	assert.True(t, rec.Input.EvaluatedAt.Equal(back.Input.EvaluatedAt))
}

func TestDecisionRowWithoutAvoidCode(t *testing.T) {
	rec := sampleRecord()
	rec.Result.AvoidCode = nil
	rec.Result.Signal = models.SignalSell
	row, err := toRow(rec)
	require.NoError(t, err)
	assert.Empty(t, row.AvoidCode)
}

func TestFromRowRejectsCorruptJSON(t *testing.T) {
	_, err := fromRow(decisionRow{EventID: "x", Input: "{", Result: "{}"})
	assert.Error(t, err)
}

func TestDecisionMessage(t *testing.T) {
	rec := sampleRecord()
	msg := decisionMessage(rec)
	assert.Equal(t, "evt-9", msg["eventId"])
	assert.Equal(t, "NVDA", msg["trigger"])
	assert.Equal(t, 2, msg["modelVersion"])

	rec.Trigger = ""
	_, ok := decisionMessage(rec)["trigger"]
	assert.False(t, ok)
}

func TestDecisionHeaders(t *testing.T) {
	rec := sampleRecord()
	hs := decisionHeaders(context.Background(), rec)
	require.Len(t, hs, 1)
	assert.Equal(t, "model_version", hs[0].Key)
	assert.Equal(t, "2", string(hs[0].Value))

	ctx := pkgkafka.WithTraceID(context.Background(), "tr-1")
	hs = decisionHeaders(ctx, rec)
	require.Len(t, hs, 2)
	assert.Equal(t, pkgkafka.TraceHeader, hs[1].Key)
	assert.Equal(t, "tr-1", string(hs[1].Value))
}

func TestLatestCandlesQuery(t *testing.T) {
	s := &CHCandleStore{database: "market"}
	asOf := time.Date(2024, 6, 3, 15, 45, 0, 0, time.UTC)
	q, args := s.latestQuery("AMD", domrepo.TF1d, 29, asOf)

	assert.Contains(t, q, "FROM market.candles_1d")
	assert.Contains(t, q, "ORDER BY bucket DESC")
	require.Len(t, args, 3)
	assert.Equal(t, "AMD", args[0])
	// the 3 June bar is still open at 15:45, so the newest usable bar is 2 June
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), args[1])
	assert.Equal(t, 29, args[2])
}

func TestLatestCandlesRejectsTimeframe(t *testing.T) {
	s := &CHCandleStore{database: "market", l: applogger.Nop()}
	_, err := s.LatestCandles(context.Background(), "AMD", "7s", 10, time.Time{})
	assert.Error(t, err)

	out, err := s.LatestCandles(context.Background(), "AMD", domrepo.TF1h, 0, time.Time{})
	assert.NoError(t, err)
	assert.Nil(t, out)
}
