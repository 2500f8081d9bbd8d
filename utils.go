package sltm

import (
	"math"
)

// roundTo rounds value to given number of decimals
func roundTo(value float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	return math.Round(value*scale) / scale
}

// relativeDifference returns |a-b| scaled by the largest magnitude (but not below one)
func relativeDifference(a, b float64) float64 {
	scale := math.Max(1.0, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) / scale
}
