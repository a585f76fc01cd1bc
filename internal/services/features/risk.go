package features

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"EventEdge/internal/domain/models"
)

// DefaultATRPeriod is the classic Wilder period.
const DefaultATRPeriod = 14

// ATRPct returns the latest ATR as a percentage of the latest close.
// ok is false when there are not enough bars or the last close is not positive.
func ATRPct(candles []models.Candle, period int) (float64, bool) {
	if period <= 0 || len(candles) <= period {
		return 0, false
	}
	high := make([]float64, len(candles))
	low := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		high[i], low[i], closes[i] = c.High, c.Low, c.Close
	}
	atr := talib.Atr(high, low, closes, period)
	last := atr[len(atr)-1]
	lastClose := closes[len(closes)-1]
	if lastClose <= 0 || math.IsNaN(last) || last <= 0 {
		return 0, false
	}
	return last / lastClose * 100, true
}

// GapPct returns the mean absolute open-vs-previous-close gap, in percent,
// over the last window bars.
func GapPct(candles []models.Candle, window int) (float64, bool) {
	if len(candles) < 2 {
		return 0, false
	}
	start := 1
	if window > 0 && len(candles)-window > start {
		start = len(candles) - window
	}
	gaps := make([]float64, 0, len(candles)-start)
	for i := start; i < len(candles); i++ {
		if g, ok := candles[i].GapPct(candles[i-1]); ok {
			gaps = append(gaps, g)
		}
	}
	if len(gaps) == 0 {
		return 0, false
	}
	return stat.Mean(gaps, nil), true
}

// RiskStatsFromCandles derives MarketRiskStats from ascending candles.
// Metrics that cannot be computed stay nil so the scorers use their fallbacks.
func RiskStatsFromCandles(candles []models.Candle, period int) *models.MarketRiskStats {
	var stats models.MarketRiskStats
	if v, ok := ATRPct(candles, period); ok {
		stats.AtrPct = &v
	}
	if v, ok := GapPct(candles, period); ok {
		stats.GapPct = &v
	}
	if stats.AtrPct == nil && stats.GapPct == nil {
		return nil
	}
	return &stats
}
