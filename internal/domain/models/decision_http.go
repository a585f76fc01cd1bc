package models

import "time"

// Requests and views for the decision HTTP endpoints.

type AnalyzeRequest struct {
	Event   EventMeta                 `json:"event"`
	History *HistoricalPatternContext `json:"history,omitempty"`
	Read    *QualitativeRead          `json:"read" validate:"required"`
	Risk    *MarketRiskStats          `json:"risk,omitempty"`
	AsOf    string                    `json:"asOf,omitempty"`
}

type DecisionPathRequest struct {
	EventID string `param:"eventId" validate:"required,max=128"`
}

// RenderedNotes holds note text in the requested language, in note order.
type RenderedNotes struct {
	Explain    []string `json:"explain"`
	Confidence []string `json:"confidence"`
	Sizing     []string `json:"sizing"`
}

// DecisionView is a decision result with its notes rendered for display.
type DecisionView struct {
	DecisionResult
	Lang string        `json:"lang"`
	Text RenderedNotes `json:"text"`
}

type DecisionRecordView struct {
	EventID   string        `json:"eventId"`
	Ticker    string        `json:"ticker"`
	Trigger   string        `json:"trigger,omitempty"`
	Input     DecisionInput `json:"input"`
	Decision  DecisionView  `json:"decision"`
	CreatedAt time.Time     `json:"createdAt"`
}

type RescoreAccepted struct {
	EventID string `json:"eventId"`
	JobID   string `json:"jobId"`
}
