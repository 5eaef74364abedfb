// Package vtrace implements V-trace off-policy actor-critic targets,
// following:
//
// "IMPALA: Scalable Distributed Deep-RL with Importance Weighted
// Actor-Learner Architectures" by Espeholt, Soyer, Munos et al.
//
// See https://arxiv.org/abs/1802.01561 for the full paper.
//
// Throughout the package, T refers to the time dimension ranging from
// 0 to T-1 and B refers to the batch size. All tensors are time-major
// and may carry the same number of additional trailing dimensions,
// e.g. the values may be [T, B, C] with a bootstrap value of [B, C],
// where C indexes agents or action heads evaluated in parallel.
//
// The returned targets are plain tensors with no connection to any
// computational graph. A learner must treat them as constants: the
// value loss (V(x_t) - vs_t)² and the policy gradient loss weighted by
// the advantages are differentiated with respect to the live
// parameters only, never through vs or the advantages.
package vtrace

import (
	"fmt"

	"github.com/samuelfneumann/vtrace/utils/floatutils"
	"github.com/samuelfneumann/vtrace/utils/tensorutils"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Returns holds the outputs of V-trace. Both tensors have the shape of
// the values.
type Returns struct {
	// Vs can be used as the target to train a baseline with
	// (V(x_t) - vs_t)²
	Vs *tensor.Dense

	// PGAdvantages can be used as the advantages in the calculation of
	// policy gradients
	PGAdvantages *tensor.Dense
}

// trajectory is the validated, flattened, row-major form of the
// arguments to V-trace. Rewards and discounts have already been
// broadcast to the shape of the values.
type trajectory struct {
	shape   []int
	steps   int // T
	rowSize int // Number of elements in a single timestep

	logRhos   []float32
	discounts []float32
	rewards   []float32
	values    []float32
	bootstrap []float32
}

// FromImportanceWeights computes V-trace targets from log importance
// weights.
//
// The targetLogProbs and behaviourLogProbs hold log π(a_t|x_t) of the
// taken actions under the policy being trained and the policy which
// generated the trajectory respectively, and must have the same shape.
// The values are the value estimates under the target policy and have
// the same shape as the log probabilities. The bootstrapValue is the
// value estimate at time T and has the shape of the values without the
// leading time axis. If c.Centralized is true, discounts and rewards
// have the shape of the values, otherwise they lack the trailing axis
// of the values and are broadcast across it.
//
// Shape and Config errors are reported before any computation and can
// be detected with IsShapeError and IsConfigError. Large importance
// ratios are not guarded against: without clipping, the targets may
// hold Inf or NaN values.
func FromImportanceWeights(targetLogProbs, behaviourLogProbs, discounts,
	rewards, values, bootstrapValue *tensor.Dense, c Config) (Returns, error) {
	if err := c.Validate(); err != nil {
		return Returns{}, err
	}

	traj, err := newTrajectory(targetLogProbs, behaviourLogProbs, discounts,
		rewards, values, bootstrapValue, c)
	if err != nil {
		return Returns{}, err
	}

	returns, diagnostics := traj.vtrace(c)
	if c.Logger != nil {
		c.Logger.Log(diagnostics)
	}
	return returns, nil
}

// Diagnose computes the importance sampling diagnostics that
// FromImportanceWeights would report for the given log probabilities,
// without computing any targets.
func Diagnose(targetLogProbs, behaviourLogProbs *tensor.Dense,
	c Config) (Diagnostics, error) {
	if err := c.Validate(); err != nil {
		return Diagnostics{}, err
	}

	shape, logRhos, err := logImportanceWeights(targetLogProbs,
		behaviourLogProbs, c)
	if err != nil {
		return Diagnostics{}, err
	}
	if len(shape) == 0 || shape[0] == 0 {
		return Diagnostics{}, shapeErr("diagnose", "log probabilities "+
			"must have a non-empty time axis, have shape %v", shape)
	}

	rhos, clippedRhos, cs := ratios(logRhos, c)
	return newDiagnostics(rhos, clippedRhos, cs), nil
}

// logImportanceWeights returns the shape and values of the log
// importance ratios log π(a|x) - log μ(a|x). If c.CentralizedIS is
// set, the ratios are collapsed over the trailing axis.
func logImportanceWeights(target, behaviour *tensor.Dense,
	c Config) ([]int, []float32, error) {
	targetData, err := tensorutils.Float32s(target)
	if err != nil {
		return nil, nil, shapeErr("logImportanceWeights", "target log "+
			"probabilities: %v", err)
	}
	behaviourData, err := tensorutils.Float32s(behaviour)
	if err != nil {
		return nil, nil, shapeErr("logImportanceWeights", "behaviour log "+
			"probabilities: %v", err)
	}

	shape := []int(target.Shape())
	if !tensorutils.SameShape(shape, behaviour.Shape()) {
		return nil, nil, shapeErr("logImportanceWeights", "log "+
			"probabilities differ in shape \n\ttarget(%v)\n\tbehaviour(%v)",
			target.Shape(), behaviour.Shape())
	}

	logRhos := tensorutils.Clone(targetData)
	vecf32.Sub(logRhos, behaviourData)

	if c.CentralizedIS {
		logRhos, err = tensorutils.CollapseLastAxis(logRhos, shape)
		if err != nil {
			return nil, nil, shapeErr("logImportanceWeights", "centralized "+
				"importance sampling: %v", err)
		}
	}
	return shape, logRhos, nil
}

// newTrajectory validates the shapes of the arguments to V-trace and
// returns them in flattened form. The arguments are never modified.
func newTrajectory(target, behaviour, discounts, rewards, values,
	bootstrap *tensor.Dense, c Config) (*trajectory, error) {
	const op = "fromImportanceWeights"

	shape, logRhos, err := logImportanceWeights(target, behaviour, c)
	if err != nil {
		return nil, err
	}
	rank := len(shape)
	if rank == 0 || shape[0] == 0 {
		return nil, shapeErr(op, "log importance weights must have a "+
			"non-empty time axis, have shape %v", shape)
	}

	valueData, err := tensorutils.Float32s(values)
	if err != nil {
		return nil, shapeErr(op, "values: %v", err)
	}
	if values.Dims() != rank {
		return nil, shapeErr(op, "values must have the rank of the log "+
			"importance weights \n\twant(%v)\n\thave(%v)", rank,
			values.Dims())
	}
	if !tensorutils.SameShape(shape, values.Shape()) {
		return nil, shapeErr(op, "values must have the shape of the log "+
			"importance weights \n\twant(%v)\n\thave(%v)", shape,
			values.Shape())
	}

	bootstrapData, err := tensorutils.Float32s(bootstrap)
	if err != nil {
		return nil, shapeErr(op, "bootstrap value: %v", err)
	}
	if bootstrap.Dims() != rank-1 {
		return nil, shapeErr(op, "bootstrap value must have rank one less "+
			"than the values \n\twant(%v)\n\thave(%v)", rank-1,
			bootstrap.Dims())
	}
	if rank > 1 && !tensorutils.SameShape(shape[1:], bootstrap.Shape()) {
		return nil, shapeErr(op, "bootstrap value must have the shape of "+
			"a single timestep \n\twant(%v)\n\thave(%v)", shape[1:],
			bootstrap.Shape())
	}

	// Rewards and discounts either match the values or lack the
	// trailing axis, in which case they are broadcast across it
	stepShape := shape
	if !c.Centralized {
		stepShape = shape[:rank-1]
	}
	discountData, err := broadcastStepTensor("discounts", discounts,
		stepShape, shape)
	if err != nil {
		return nil, err
	}
	rewardData, err := broadcastStepTensor("rewards", rewards, stepShape,
		shape)
	if err != nil {
		return nil, err
	}

	if c.MeanValueFunction {
		valueData, err = tensorutils.CollapseLastAxis(valueData, shape)
		if err != nil {
			return nil, shapeErr(op, "mean value function: %v", err)
		}
	}

	return &trajectory{
		shape:     shape,
		steps:     shape[0],
		rowSize:   len(valueData) / shape[0],
		logRhos:   logRhos,
		discounts: discountData,
		rewards:   rewardData,
		values:    valueData,
		bootstrap: bootstrapData,
	}, nil
}

// broadcastStepTensor checks that t has shape want and broadcasts it
// to shape to
func broadcastStepTensor(name string, t *tensor.Dense, want,
	to []int) ([]float32, error) {
	const op = "fromImportanceWeights"

	data, err := tensorutils.Float32s(t)
	if err != nil {
		return nil, shapeErr(op, "%v: %v", name, err)
	}
	if t.Dims() != len(want) {
		return nil, shapeErr(op, "%v has illegal rank \n\twant(%v)"+
			"\n\thave(%v)", name, len(want), t.Dims())
	}
	if !tensorutils.SameShape(want, t.Shape()) {
		return nil, shapeErr(op, "%v has illegal shape \n\twant(%v)"+
			"\n\thave(%v)", name, want, t.Shape())
	}

	if len(want) == len(to) {
		return data, nil
	}
	out, err := tensorutils.BroadcastTo(data, tensorutils.ExpandDims(want),
		to)
	if err != nil {
		return nil, shapeErr(op, "%v: %v", name, err)
	}
	return out, nil
}

// ratios computes the importance ratios, the ratios clipped for the
// value targets, and the trace coefficients c = λ min(1, ρ).
func ratios(logRhos []float32, c Config) (rhos, clippedRhos, cs []float32) {
	rhos = tensorutils.Clone(logRhos)
	vecf32.Scale(rhos, c.ISWeightsScale)
	floatutils.Exp(rhos)

	clippedRhos = tensorutils.Clone(rhos)
	c.ClipRhoThreshold.Apply(clippedRhos)

	cs = tensorutils.Clone(rhos)
	floatutils.MinScalar(cs, 1.0)
	vecf32.Scale(cs, c.Lambda)

	return rhos, clippedRhos, cs
}

// vtrace runs the V-trace recursion over the trajectory
func (t *trajectory) vtrace(c Config) (Returns, Diagnostics) {
	n := t.rowSize
	rhos, clippedRhos, cs := ratios(t.logRhos, c)

	// Append the bootstrapped value to get [v1, ..., v_T]
	valuesTPlus1 := append(tensorutils.Clone(t.values[n:]), t.bootstrap...)

	// δ_t = ρ̄_t (r_t + γ_t v_{t+1} - v_t)
	deltas := valuesTPlus1
	vecf32.Mul(deltas, t.discounts)
	vecf32.Add(deltas, t.rewards)
	vecf32.Sub(deltas, t.values)
	vecf32.Mul(deltas, clippedRhos)

	// Backward scan over time, vectorised over the batch:
	// acc_t = δ_t + γ_t c_t acc_{t+1}, with acc_T = 0
	vs := make([]float32, len(t.values))
	acc := make([]float32, n)
	for step := t.steps - 1; step >= 0; step-- {
		row := vs[step*n : (step+1)*n]
		copy(row, t.discounts[step*n:(step+1)*n])
		vecf32.Mul(row, cs[step*n:(step+1)*n])
		vecf32.Mul(row, acc)
		vecf32.Add(row, deltas[step*n:(step+1)*n])
		acc = row
	}

	// Add V(x_s) to get v_s
	vecf32.Add(vs, t.values)

	// Advantage for policy gradient
	pgAdvantages := append(tensorutils.Clone(vs[n:]), t.bootstrap...)
	clippedPGRhos := tensorutils.Clone(rhos)
	c.ClipPGRhoThreshold.Apply(clippedPGRhos)

	vecf32.Mul(pgAdvantages, t.discounts)
	vecf32.Add(pgAdvantages, t.rewards)
	vecf32.Sub(pgAdvantages, t.values)
	vecf32.Mul(pgAdvantages, clippedPGRhos)

	returns := Returns{
		Vs:           tensorutils.New(t.shape, vs),
		PGAdvantages: tensorutils.New(t.shape, pgAdvantages),
	}
	return returns, newDiagnostics(rhos, clippedRhos, cs)
}

// shapeErr returns a new *Error wrapping ErrShape
func shapeErr(op, format string, args ...interface{}) error {
	return &Error{
		Op:  op,
		Err: fmt.Errorf("%w: "+format, append([]interface{}{ErrShape}, args...)...),
	}
}
