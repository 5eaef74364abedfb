package tensorutils

import (
	"fmt"

	"gorgonia.org/vecf32"
)

// MeanLastAxis reduces a row-major array of the given shape by
// averaging over its trailing axis. The result has shape shape[:n-1].
func MeanLastAxis(data []float32, shape []int) ([]float32, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("meanLastAxis: cannot reduce a scalar")
	}
	last := shape[len(shape)-1]
	if last == 0 {
		return nil, fmt.Errorf("meanLastAxis: trailing axis is empty")
	}
	if len(data)%last != 0 {
		return nil, fmt.Errorf("meanLastAxis: data of length %v does not "+
			"match trailing axis %v", len(data), last)
	}

	out := make([]float32, len(data)/last)
	for i := range out {
		out[i] = vecf32.Sum(data[i*last:(i+1)*last]) / float32(last)
	}
	return out, nil
}

// BroadcastLastAxis tiles each element of reduced n times along a new
// trailing axis, so that an array of shape [..., 1] becomes [..., n].
func BroadcastLastAxis(reduced []float32, n int) []float32 {
	out := make([]float32, len(reduced)*n)
	for i, v := range reduced {
		row := out[i*n : (i+1)*n]
		for j := range row {
			row[j] = v
		}
	}
	return out
}

// CollapseLastAxis replaces every element of data by the mean over
// its trailing axis, keeping the original shape. This is the
// reduce-then-broadcast used to share one quantity across all agents
// or heads at a timestep.
func CollapseLastAxis(data []float32, shape []int) ([]float32, error) {
	mean, err := MeanLastAxis(data, shape)
	if err != nil {
		return nil, fmt.Errorf("collapseLastAxis: %v", err)
	}
	return BroadcastLastAxis(mean, shape[len(shape)-1]), nil
}

// ExpandDims returns shape with a new trailing singleton axis
func ExpandDims(shape []int) []int {
	out := make([]int, len(shape), len(shape)+1)
	copy(out, shape)
	return append(out, 1)
}

// BroadcastTo explicitly broadcasts an array of shape from to shape to.
// The shapes must have equal rank, and every axis of from must either
// match the same axis of to or be 1.
func BroadcastTo(data []float32, from, to []int) ([]float32, error) {
	if len(from) != len(to) {
		return nil, fmt.Errorf("broadcastTo: illegal rank \n\twant(%v)"+
			"\n\thave(%v)", len(to), len(from))
	}
	for i := range from {
		if from[i] != to[i] && from[i] != 1 {
			return nil, fmt.Errorf("broadcastTo: cannot broadcast shape "+
				"%v to %v", from, to)
		}
	}
	if SameShape(from, to) {
		return Clone(data), nil
	}

	size := 1
	for _, d := range to {
		size *= d
	}
	fromStrides := strides(from)
	out := make([]float32, size)
	index := make([]int, len(to))
	for i := range out {
		// Unravel i into a multi-index of to, then ravel it into from
		rem := i
		for ax := len(to) - 1; ax >= 0; ax-- {
			index[ax] = rem % to[ax]
			rem /= to[ax]
		}
		src := 0
		for ax := range from {
			if from[ax] != 1 {
				src += index[ax] * fromStrides[ax]
			}
		}
		out[i] = data[src]
	}
	return out, nil
}

// strides returns the row-major strides of shape
func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}
