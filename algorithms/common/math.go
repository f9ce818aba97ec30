package common

import (
	"math"
)

// Finite returns v, or fallback when v is NaN or infinite
func Finite(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// IsFinite reports whether v is neither NaN nor infinite
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ZScore returns (x - mean) / sqrt(variance). The result is NaN or infinite
// when variance is zero; callers filter with Finite.
func ZScore(x, mean, variance float64) float64 {
	return (x - mean) / math.Sqrt(variance)
}
