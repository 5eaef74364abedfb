// Package timestep implements the per-step records actors produce when
// interacting with an environment
package timestep

import (
	"fmt"
)

// StepType denotes the type of step that a TimeStep can be, either  first
// environmental step, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// TimeStep packages together the reward and discount received by an
// actor on a single timestep
type TimeStep struct {
	stepType StepType
	Reward   float32
	Discount float32
	Number   int
}

// New returns a new TimeStep
func New(t StepType, r, d float32, n int) TimeStep {
	return TimeStep{t, r, d, n}
}

// First returns whether a TimeStep is the first in an environment
func (t *TimeStep) First() bool {
	return t.stepType == First
}

// Mid returns whether a TimeStep is a middle step in an environment
func (t *TimeStep) Mid() bool {
	return t.stepType == Mid
}

// Last returns whether a TimeStep is the last step in an environment
func (t *TimeStep) Last() bool {
	return t.stepType == Last
}

// EffectiveDiscount returns the discount to use when bootstrapping
// from the step following t. Nothing is bootstrapped across an episode
// boundary, so the discount of a last step is always 0.
func (t *TimeStep) EffectiveDiscount() float32 {
	if t.Last() {
		return 0
	}
	return t.Discount
}

func (t TimeStep) String() string {
	str := "TimeStep | Type: %v  |  Reward:  %.2f  |  Discount: %.2f  |  " +
		"Step Number:  %v"

	return fmt.Sprintf(str, t.stepType, t.Reward, t.Discount, t.Number)
}
