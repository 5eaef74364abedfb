// Package tensorutils implements utilities for working with time-major
// gorgonia tensors
package tensorutils

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Slice implements a struct that can be used for slicing tensors.
//
// Given a tensor T and a Slice S, T.Slice(..., S, ...) is equivalent to
// T[..., S.start:S.end:S.step, ...]
type Slice struct {
	start, end, step int
}

// Start returns the start index for the tensor slice
func (s Slice) Start() int {
	return s.start
}

// End returns the ending index for the tensor slice
func (s Slice) End() int {
	return s.end
}

// Step returns the step for the tensor slice
func (s Slice) Step() int {
	return s.step
}

// Len returns the number of indices selected by the Slice
func (s Slice) Len() int {
	if s.step <= 0 || s.end <= s.start {
		return 0
	}
	return (s.end - s.start + s.step - 1) / s.step
}

// NewSlice returns a new Slice that can be used to slice tensors
func NewSlice(start, stop, step int) Slice {
	return Slice{start, stop, step}
}

// Float32s returns the row-major float32 data backing t. Views are
// materialized first, so the returned slice is always contiguous and
// has exactly t.Shape().TotalSize() elements.
//
// The returned slice may alias t's memory and must not be modified.
func Float32s(t *tensor.Dense) ([]float32, error) {
	if t == nil {
		return nil, fmt.Errorf("float32s: nil tensor")
	}
	if t.Dtype() != tensor.Float32 {
		return nil, fmt.Errorf("float32s: illegal dtype \n\twant(%v)\n\thave(%v)",
			tensor.Float32, t.Dtype())
	}
	if t.IsMaterializable() {
		t = t.Materialize().(*tensor.Dense)
	}

	data, ok := t.Data().([]float32)
	if !ok {
		// Rank 0 tensors hold a bare scalar
		if s, isScalar := t.Data().(float32); isScalar {
			return []float32{s}, nil
		}
		return nil, fmt.Errorf("float32s: could not read tensor data of "+
			"type %T", t.Data())
	}
	return data[:t.Shape().TotalSize()], nil
}

// Clone returns a copy of data
func Clone(data []float32) []float32 {
	out := make([]float32, len(data))
	copy(out, data)
	return out
}

// New returns a new float32 tensor of the given shape backed by data
func New(shape []int, data []float32) *tensor.Dense {
	s := make([]int, len(shape))
	copy(s, shape)
	return tensor.New(tensor.WithShape(s...), tensor.WithBacking(data))
}

// SameShape returns whether two shapes are equal
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Window returns the rows of a time-major array selected by s, where
// each row holds rowSize elements.
func Window(data []float32, rowSize int, s Slice) []float32 {
	out := make([]float32, 0, s.Len()*rowSize)
	for t := s.Start(); t < s.End(); t += s.Step() {
		out = append(out, data[t*rowSize:(t+1)*rowSize]...)
	}
	return out
}
