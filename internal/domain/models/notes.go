package models

// NoteCode identifies a parameterized explanation. Rendering to human text
// happens outside the scoring core.
type NoteCode string

const (
	NoteNoHistoricalData   NoteCode = "NO_HISTORICAL_DATA"
	NoteEchoPattern        NoteCode = "ECHO_PATTERN"
	NoteSmallSamplePenalty NoteCode = "SMALL_SAMPLE_PENALTY"

	NoteHedgedLanguage NoteCode = "HEDGED_LANGUAGE"
	NoteHighAmbiguity  NoteCode = "HIGH_AMBIGUITY"

	NoteNoVolatilityData   NoteCode = "NO_VOLATILITY_DATA"
	NoteVolatilityElevated NoteCode = "VOLATILITY_ELEVATED"

	NoteNoGapData       NoteCode = "NO_GAP_DATA"
	NoteGapRiskElevated NoteCode = "GAP_RISK_ELEVATED"

	NoteCorroborated  NoteCode = "CORROBORATED"
	NoteStaleEvent    NoteCode = "STALE_EVENT"
	NoteNoPublishTime NoteCode = "NO_PUBLISH_TIME"

	NoteLowConfidence      NoteCode = "LOW_CONFIDENCE"
	NoteInsufficientSample NoteCode = "INSUFFICIENT_SAMPLE"
	NoteLowAccuracy        NoteCode = "LOW_HISTORICAL_ACCURACY"
	NoteDirectionConflict  NoteCode = "DIRECTION_CONFLICT"
	NoteTooVolatile        NoteCode = "TOO_VOLATILE"
	NoteGapRiskTooHigh     NoteCode = "GAP_RISK_TOO_HIGH"
	NoteWaitForEntry       NoteCode = "WAIT_FOR_ENTRY"
	NoteWaitGapSettle      NoteCode = "WAIT_GAP_SETTLE"
	NoteDirectionalRead    NoteCode = "DIRECTIONAL_READ"
	NoteNoDirection        NoteCode = "NO_DIRECTION"

	NoteStopFromLevels NoteCode = "STOP_FROM_LEVELS"
	NoteStopFromATR    NoteCode = "STOP_FROM_ATR"
	NoteStopDefault    NoteCode = "STOP_DEFAULT"
	NoteNoPosition     NoteCode = "NO_POSITION"
)

// Note is one explanation entry.
type Note struct {
	Code   NoteCode       `json:"code"`
	Params map[string]any `json:"params,omitempty"`
}

// NewNote builds a note from alternating key/value pairs.
func NewNote(code NoteCode, kv ...any) Note {
	n := Note{Code: code}
	if len(kv) == 0 {
		return n
	}
	n.Params = make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		n.Params[k] = kv[i+1]
	}
	return n
}
