// Package returns implements on-policy return and advantage estimates
// for single trajectories with per-step discounts: rewards-to-go,
// λ-returns and generalized advantage estimates GAE(λ) following
// https://arxiv.org/abs/1506.02438.
//
// V-trace reduces to these estimates when the behaviour and target
// policies coincide, so they double as a reference for off-policy
// targets.
package returns

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DiscountedCumSum computes and returns the discounted cumulative sum
// of all elements of a vector, where each element is discounted by
// its own discount. Given a vector x = [x0 x1 ... xN], discounts
// d = [d0 d1 ... dN] and a scale λ, this function computes:
//
// [
//	x0 + λ d0 (x1 + λ d1 (x2 + ... + λ d(N-1) xN))
//	x1 + λ d1 (x2 + ... + λ d(N-1) xN)
// ...
// xN
// ]
func DiscountedCumSum(x, discounts *mat.VecDense,
	scale float64) (*mat.VecDense, error) {
	if x.Len() != discounts.Len() {
		return nil, fmt.Errorf("discountedCumSum: illegal discounts length "+
			"\n\twant(%v)\n\thave(%v)", x.Len(), discounts.Len())
	}

	cumSums := mat.NewVecDense(x.Len(), nil)
	acc := 0.0
	for i := x.Len() - 1; i >= 0; i-- {
		acc = x.AtVec(i) + scale*discounts.AtVec(i)*acc
		cumSums.SetVec(i, acc)
	}
	return cumSums, nil
}

// RewardsToGo computes the discounted return from each timestep of a
// trajectory, bootstrapping from the value estimate of the state
// following the last timestep. The bootstrap should be 0 if the
// trajectory ended in a terminal state.
func RewardsToGo(rewards, discounts []float64,
	bootstrap float64) ([]float64, error) {
	if err := checkLengths(rewards, discounts, rewards); err != nil {
		return nil, fmt.Errorf("rewardsToGo: %v", err)
	}

	// Fold the bootstrap into the last reward
	rews := make([]float64, len(rewards))
	copy(rews, rewards)
	last := len(rews) - 1
	rews[last] += discounts[last] * bootstrap

	rewsToGo, err := DiscountedCumSum(mat.NewVecDense(len(rews), rews),
		mat.NewVecDense(len(discounts), discounts), 1.0)
	if err != nil {
		return nil, fmt.Errorf("rewardsToGo: %v", err)
	}
	return rewsToGo.RawVector().Data, nil
}

// Lambda computes the λ-returns of a trajectory using GAE(λ), as well
// as the one-step advantages bootstrapped from those λ-returns:
//
//	δ_t = r_t + d_t V_{t+1} - V_t
//	A_t = δ_t + d_t λ A_{t+1}
//	G_t = A_t + V_t
//	advantage_t = r_t + d_t G_{t+1} - V_t
//
// where V_T = G_T = bootstrap.
func Lambda(rewards, discounts, values []float64, bootstrap,
	lambda float64) (lambdaReturns, advantages []float64, err error) {
	if err := checkLengths(rewards, discounts, values); err != nil {
		return nil, nil, fmt.Errorf("lambda: %v", err)
	}
	n := len(values)

	vals := append(append([]float64{}, values...), bootstrap)
	stateVals := mat.NewVecDense(n, vals[:n])
	nextStateVals := mat.NewVecDense(n, vals[1:])
	r := mat.NewVecDense(n, rewards)
	d := mat.NewVecDense(n, discounts)

	// GAE-lambda advantage calculation
	deltas := mat.NewVecDense(n, nil)
	deltas.MulElemVec(d, nextStateVals)
	deltas.AddVec(deltas, r)
	deltas.SubVec(deltas, stateVals)

	gae, err := DiscountedCumSum(deltas, d, lambda)
	if err != nil {
		return nil, nil, fmt.Errorf("lambda: %v", err)
	}
	lambdaRets := mat.NewVecDense(n, nil)
	lambdaRets.AddVec(gae, stateVals)

	// Advantages bootstrapped from the next λ-return
	rets := append(append([]float64{}, lambdaRets.RawVector().Data...),
		bootstrap)
	adv := mat.NewVecDense(n, nil)
	adv.MulElemVec(d, mat.NewVecDense(n, rets[1:]))
	adv.AddVec(adv, r)
	adv.SubVec(adv, stateVals)

	return lambdaRets.RawVector().Data, adv.RawVector().Data, nil
}

// checkLengths ensures a trajectory is non-empty and that all its
// components have the same length
func checkLengths(rewards, discounts, values []float64) error {
	if len(rewards) == 0 {
		return fmt.Errorf("trajectory must have at least one timestep")
	}
	if len(discounts) != len(rewards) {
		return fmt.Errorf("illegal discounts length \n\twant(%v)\n\thave(%v)",
			len(rewards), len(discounts))
	}
	if len(values) != len(rewards) {
		return fmt.Errorf("illegal values length \n\twant(%v)\n\thave(%v)",
			len(rewards), len(values))
	}
	return nil
}
