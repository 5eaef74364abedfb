// Package floatutils provides utilities for working with float32s
package floatutils

import (
	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/stat"
)

// MinScalar replaces each element of values, in place, by the minimum
// of the element and bound.
func MinScalar(values []float32, bound float32) {
	for i, v := range values {
		values[i] = math32.Min(bound, v)
	}
}

// Exp replaces each element of values, in place, by its exponential
func Exp(values []float32) {
	for i, v := range values {
		values[i] = math32.Exp(v)
	}
}

// Min calculates and returns the minimum float32 in a list. NaNs
// propagate.
func Min(values ...float32) float32 {
	min := values[0]
	for _, val := range values {
		min = math32.Min(min, val)
	}
	return min
}

// Max calculates and returns the maximum float32 in a list. NaNs
// propagate.
func Max(values ...float32) float32 {
	max := values[0]
	for _, val := range values {
		max = math32.Max(max, val)
	}
	return max
}

// Mean calculates and returns the mean of a list of float32s. The mean
// is accumulated in float64 to avoid losing precision on long lists.
func Mean(values []float32) float32 {
	wide := make([]float64, len(values))
	for i, v := range values {
		wide[i] = float64(v)
	}
	return float32(stat.Mean(wide, nil))
}
