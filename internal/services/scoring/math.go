package scoring

import "math"

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

// toScore rounds to the nearest integer and keeps the result inside 0..100.
func toScore(v float64) int {
	return int(math.Round(clamp(v, 0, 100)))
}

// round1 and round2 are used for note params only.
func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
