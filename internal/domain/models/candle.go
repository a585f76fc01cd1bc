package models

import (
	"math"
	"time"
)

// Candle is one OHLCV bar of the target instrument. Bucket is the bar's
// start time in UTC.
type Candle struct {
	Bucket time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// GapPct is the absolute distance between this bar's open and prev's close,
// in percent of prev's close. ok is false when either price is not positive.
func (c Candle) GapPct(prev Candle) (float64, bool) {
	if prev.Close <= 0 || c.Open <= 0 {
		return 0, false
	}
	return math.Abs(c.Open-prev.Close) / prev.Close * 100, true
}
