// Package trajectory implements time-major batches of trajectories,
// which hold the inputs to V-trace, as well as utilities to assemble,
// slice and serialize them.
package trajectory

import (
	"fmt"

	"github.com/samuelfneumann/vtrace/utils/tensorutils"
	"github.com/samuelfneumann/vtrace/vtrace"
	"gorgonia.org/tensor"
)

// Batch is a time-major batch of trajectories. See
// vtrace.FromImportanceWeights for the shape of each tensor.
type Batch struct {
	TargetLogProbs    *tensor.Dense
	BehaviourLogProbs *tensor.Dense
	Discounts         *tensor.Dense
	Rewards           *tensor.Dense
	Values            *tensor.Dense
	BootstrapValue    *tensor.Dense
}

// VTrace computes the V-trace targets of the Batch
func (b Batch) VTrace(c vtrace.Config) (vtrace.Returns, error) {
	return vtrace.FromImportanceWeights(b.TargetLogProbs, b.BehaviourLogProbs,
		b.Discounts, b.Rewards, b.Values, b.BootstrapValue, c)
}

// Steps returns the length T of the time axis of the Batch
func (b Batch) Steps() int {
	if b.Values == nil || b.Values.Dims() == 0 {
		return 0
	}
	return b.Values.Shape()[0]
}

// Window returns the timesteps of the Batch selected by s as a new
// Batch. A window ending before the last timestep bootstraps from the
// values at the timestep following it. Only contiguous windows, with a
// step of 1, can be taken.
func (b Batch) Window(s tensorutils.Slice) (Batch, error) {
	steps := b.Steps()
	if s.Step() != 1 {
		return Batch{}, fmt.Errorf("window: illegal step \n\twant(1)"+
			"\n\thave(%v)", s.Step())
	}
	if s.Start() < 0 || s.End() > steps || s.Len() == 0 {
		return Batch{}, fmt.Errorf("window: cannot take window [%v, %v) of "+
			"a batch with %v timesteps", s.Start(), s.End(), steps)
	}

	window := func(name string, t *tensor.Dense) (*tensor.Dense, error) {
		data, err := tensorutils.Float32s(t)
		if err != nil {
			return nil, fmt.Errorf("window: %v: %v", name, err)
		}
		shape := t.Shape()
		if len(shape) == 0 || shape[0] != steps {
			return nil, fmt.Errorf("window: %v has illegal shape %v", name,
				shape)
		}
		rowSize := shape.TotalSize() / steps
		newShape := append([]int{s.Len()}, shape[1:]...)
		return tensorutils.New(newShape, tensorutils.Window(data, rowSize, s)), nil
	}

	var out Batch
	var err error
	if out.TargetLogProbs, err = window("target log probs", b.TargetLogProbs); err != nil {
		return Batch{}, err
	}
	if out.BehaviourLogProbs, err = window("behaviour log probs", b.BehaviourLogProbs); err != nil {
		return Batch{}, err
	}
	if out.Discounts, err = window("discounts", b.Discounts); err != nil {
		return Batch{}, err
	}
	if out.Rewards, err = window("rewards", b.Rewards); err != nil {
		return Batch{}, err
	}
	if out.Values, err = window("values", b.Values); err != nil {
		return Batch{}, err
	}

	if s.End() == steps {
		out.BootstrapValue = b.BootstrapValue
		return out, nil
	}

	// Bootstrap from the values of the timestep after the window
	values, err := tensorutils.Float32s(b.Values)
	if err != nil {
		return Batch{}, fmt.Errorf("window: values: %v", err)
	}
	shape := b.Values.Shape()
	bootstrap := tensorutils.Window(values, shape.TotalSize()/steps,
		tensorutils.NewSlice(s.End(), s.End()+1, 1))
	out.BootstrapValue = tensorutils.New(shape[1:], bootstrap)

	return out, nil
}

// Split splits the Batch into consecutive windows of at most
// unrollLength timesteps.
func (b Batch) Split(unrollLength int) ([]Batch, error) {
	if unrollLength <= 0 {
		return nil, fmt.Errorf("split: unroll length must be positive")
	}

	steps := b.Steps()
	var batches []Batch
	for start := 0; start < steps; start += unrollLength {
		end := start + unrollLength
		if end > steps {
			end = steps
		}
		w, err := b.Window(tensorutils.NewSlice(start, end, 1))
		if err != nil {
			return nil, fmt.Errorf("split: %v", err)
		}
		batches = append(batches, w)
	}
	return batches, nil
}
