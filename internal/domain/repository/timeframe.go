package repository

import "time"

// Timeframe is a candle resolution; each has its own ClickHouse table.
type Timeframe string

const (
	TF1m Timeframe = "1m"
	TF1h Timeframe = "1h"
	TF1d Timeframe = "1d"
)

var bucketSizes = map[Timeframe]time.Duration{
	TF1m: time.Minute,
	TF1h: time.Hour,
	TF1d: 24 * time.Hour,
}

func IsValidTimeframe(tf Timeframe) bool {
	_, ok := bucketSizes[tf]
	return ok
}

// Duration is the bucket width, zero for an unknown timeframe.
func (tf Timeframe) Duration() time.Duration { return bucketSizes[tf] }

// LastClosed is the start of the newest bucket that had fully closed at t.
func (tf Timeframe) LastClosed(t time.Time) time.Time {
	d := tf.Duration()
	if d == 0 {
		return t
	}
	return t.UTC().Truncate(d).Add(-d)
}

// DefaultTimeframe is daily; ATR and overnight gaps are measured on daily bars.
func DefaultTimeframe() Timeframe { return TF1d }

// NormalizeTimeframe maps unknown or empty input to the default.
func NormalizeTimeframe(s string) Timeframe {
	if tf := Timeframe(s); IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}
