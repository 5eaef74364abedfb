package vtrace

import (
	"fmt"
	"math"
	"testing"

	"github.com/chewxy/math32"
	"github.com/samuelfneumann/vtrace/returns"
	"github.com/samuelfneumann/vtrace/utils/tensorutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

const tolerance = 1e-5

func dense(shape []int, data ...float32) *tensor.Dense {
	return tensorutils.New(shape, data)
}

func float64s(t *testing.T, d *tensor.Dense) []float64 {
	t.Helper()
	data, err := tensorutils.Float32s(d)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]float64, len(data))
	for i := range data {
		out[i] = float64(data[i])
	}
	return out
}

// scenario is a two step trajectory of a single environment, where the
// behaviour and target policies agree
type scenario struct {
	target, behaviour, discounts, rewards, values, bootstrap *tensor.Dense
}

func newScenario() scenario {
	return scenario{
		target:    dense([]int{2, 1}, 0, 0),
		behaviour: dense([]int{2, 1}, 0, 0),
		discounts: dense([]int{2, 1}, 0.9, 0.9),
		rewards:   dense([]int{2, 1}, 1, 2),
		values:    dense([]int{2, 1}, 0.5, 1),
		bootstrap: dense([]int{1}, 1.5),
	}
}

func (s scenario) run(c Config) (Returns, error) {
	return FromImportanceWeights(s.target, s.behaviour, s.discounts,
		s.rewards, s.values, s.bootstrap, c)
}

func noClipConfig() Config {
	c := DefaultConfig()
	c.ClipRhoThreshold = NoClip()
	c.ClipPGRhoThreshold = NoClip()
	return c
}

func checkApprox(t *testing.T, name string, got *tensor.Dense,
	want []float64, tol float64) {
	t.Helper()
	have := float64s(t, got)
	if !floats.EqualApprox(have, want, tol) {
		t.Errorf("%v: \n\twant(%v)\n\thave(%v)", name, want, have)
	}
}

func TestOnPolicyScenario(t *testing.T) {
	for _, c := range []Config{DefaultConfig(), noClipConfig()} {
		r, err := newScenario().run(c)
		if err != nil {
			t.Fatal(err)
		}
		checkApprox(t, "vs", r.Vs, []float64{4.015, 3.35}, tolerance)
		checkApprox(t, "pg advantages", r.PGAdvantages,
			[]float64{3.515, 2.35}, tolerance)

		if got := r.Vs.Shape(); !tensorutils.SameShape(got, []int{2, 1}) {
			t.Errorf("vs shape: \n\twant([2 1])\n\thave(%v)", got)
		}
	}
}

func TestSingleStep(t *testing.T) {
	ln2 := float32(math.Ln2)
	tests := []struct {
		name   string
		config Config
		vs     float64
		pg     float64
	}{
		{"clipped", DefaultConfig(), 2, 2},
		{"unclipped", noClipConfig(), 4, 4},
	}

	for _, test := range tests {
		r, err := FromImportanceWeights(
			dense([]int{1, 1}, ln2),
			dense([]int{1, 1}, 0),
			dense([]int{1, 1}, 0.5),
			dense([]int{1, 1}, 1),
			dense([]int{1, 1}, 0),
			dense([]int{1}, 2),
			test.config,
		)
		if err != nil {
			t.Fatalf("%v: %v", test.name, err)
		}
		checkApprox(t, test.name+" vs", r.Vs, []float64{test.vs}, 1e-4)
		checkApprox(t, test.name+" pg advantages", r.PGAdvantages,
			[]float64{test.pg}, 1e-4)
	}
}

func TestOneStepTargets(t *testing.T) {
	c := DefaultConfig()
	c.Lambda = 0

	r, err := newScenario().run(c)
	if err != nil {
		t.Fatal(err)
	}

	// vs_t = r_t + γ_t V(x_{t+1})
	checkApprox(t, "vs", r.Vs, []float64{1.9, 3.35}, tolerance)
	checkApprox(t, "pg advantages", r.PGAdvantages, []float64{3.515, 2.35},
		tolerance)
}

// randomBatch returns a time-major batch of shape [T, B] with discounts
// in [0, 1)
func randomBatch(seed uint64, T, B int) (discounts, rewards, values,
	bootstrap []float32) {
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: rand.NewSource(seed + 1)}

	discounts = make([]float32, T*B)
	rewards = make([]float32, T*B)
	values = make([]float32, T*B)
	bootstrap = make([]float32, B)
	for i := range values {
		discounts[i] = float32(uniform.Rand())
		rewards[i] = float32(normal.Rand())
		values[i] = float32(normal.Rand())
	}
	for i := range bootstrap {
		bootstrap[i] = float32(normal.Rand())
	}
	return discounts, rewards, values, bootstrap
}

func TestOnPolicyMatchesLambdaReturns(t *testing.T) {
	const T, B = 7, 3
	for _, lambda := range []float32{0, 0.5, 0.95, 1} {
		discounts, rewards, values, bootstrap := randomBatch(uint64(10*lambda),
			T, B)
		logProbs := make([]float32, T*B)
		normal := distuv.Normal{Mu: -1, Sigma: 0.5, Src: rand.NewSource(3)}
		for i := range logProbs {
			logProbs[i] = float32(normal.Rand())
		}

		c := DefaultConfig()
		c.Lambda = lambda
		r, err := FromImportanceWeights(
			dense([]int{T, B}, logProbs...),
			dense([]int{T, B}, logProbs...),
			dense([]int{T, B}, discounts...),
			dense([]int{T, B}, rewards...),
			dense([]int{T, B}, values...),
			dense([]int{B}, bootstrap...),
			c,
		)
		if err != nil {
			t.Fatal(err)
		}
		vs := float64s(t, r.Vs)
		pg := float64s(t, r.PGAdvantages)

		for b := 0; b < B; b++ {
			column := func(data []float32) []float64 {
				out := make([]float64, T)
				for step := 0; step < T; step++ {
					out[step] = float64(data[step*B+b])
				}
				return out
			}
			wantVs, wantPG, err := returns.Lambda(column(rewards),
				column(discounts), column(values), float64(bootstrap[b]),
				float64(lambda))
			if err != nil {
				t.Fatal(err)
			}

			haveVs := make([]float64, T)
			havePG := make([]float64, T)
			for step := 0; step < T; step++ {
				haveVs[step] = vs[step*B+b]
				havePG[step] = pg[step*B+b]
			}
			if !floats.EqualApprox(haveVs, wantVs, 1e-4) {
				t.Errorf("λ = %v, env %v: vs \n\twant(%v)\n\thave(%v)",
					lambda, b, wantVs, haveVs)
			}
			if !floats.EqualApprox(havePG, wantPG, 1e-4) {
				t.Errorf("λ = %v, env %v: pg advantages \n\twant(%v)"+
					"\n\thave(%v)", lambda, b, wantPG, havePG)
			}
		}
	}
}

func TestClippingMonotone(t *testing.T) {
	const T, B = 5, 4
	discounts, rewards, _, _ := randomBatch(42, T, B)
	for i := range rewards {
		rewards[i] = math32.Abs(rewards[i])
	}
	values := make([]float32, T*B)
	bootstrap := []float32{0, 0.5, 1, 2}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(7)}
	target := make([]float32, T*B)
	for i := range target {
		target[i] = float32(normal.Rand())
	}

	thresholds := []Threshold{ClipAt(0), ClipAt(0.5), ClipAt(1), ClipAt(2),
		NoClip()}
	var prevVs, prevPG []float64
	for _, threshold := range thresholds {
		c := DefaultConfig()
		c.ClipRhoThreshold = threshold
		c.ClipPGRhoThreshold = threshold
		r, err := FromImportanceWeights(
			dense([]int{T, B}, target...),
			dense([]int{T, B}, make([]float32, T*B)...),
			dense([]int{T, B}, discounts...),
			dense([]int{T, B}, rewards...),
			dense([]int{T, B}, values...),
			dense([]int{B}, bootstrap...),
			c,
		)
		if err != nil {
			t.Fatal(err)
		}

		vs := float64s(t, r.Vs)
		pg := float64s(t, r.PGAdvantages)
		for i := range prevVs {
			if vs[i] < prevVs[i]-tolerance {
				t.Errorf("threshold %v: vs[%v] decreased \n\tprevious(%v)"+
					"\n\thave(%v)", threshold, i, prevVs[i], vs[i])
			}
			if pg[i] < prevPG[i]-tolerance {
				t.Errorf("threshold %v: pg advantages[%v] decreased "+
					"\n\tprevious(%v)\n\thave(%v)", threshold, i, prevPG[i],
					pg[i])
			}
		}
		prevVs, prevPG = vs, pg
	}
}

func TestMeanValueFunction(t *testing.T) {
	values := []float32{
		0, 0.5, 1, // t = 0, mean 0.5
		0.5, 1, 1.5, // t = 1, mean 1
	}
	valuesTensor := dense([]int{2, 1, 3}, tensorutils.Clone(values)...)

	c := DefaultConfig()
	c.MeanValueFunction = true
	r, err := FromImportanceWeights(
		dense([]int{2, 1, 3}, 0, 0, 0, 0, 0, 0),
		dense([]int{2, 1, 3}, 0, 0, 0, 0, 0, 0),
		dense([]int{2, 1, 3}, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9),
		dense([]int{2, 1, 3}, 1, 1, 1, 2, 2, 2),
		valuesTensor,
		dense([]int{1, 3}, 1.5, 1.5, 1.5),
		c,
	)
	if err != nil {
		t.Fatal(err)
	}

	// Every agent sees the single-agent targets of the mean values
	checkApprox(t, "vs", r.Vs, []float64{4.015, 4.015, 4.015, 3.35, 3.35,
		3.35}, tolerance)
	checkApprox(t, "pg advantages", r.PGAdvantages, []float64{3.515, 3.515,
		3.515, 2.35, 2.35, 2.35}, tolerance)

	if got := float64s(t, valuesTensor); !floats.Equal(got,
		[]float64{0, 0.5, 1, 0.5, 1, 1.5}) {
		t.Errorf("values modified: %v", got)
	}

	// With per-agent values, the advantages differ from those above
	// exactly for the agents whose values differ from the mean
	c.MeanValueFunction = false
	perAgent, err := FromImportanceWeights(
		dense([]int{2, 1, 3}, 0, 0, 0, 0, 0, 0),
		dense([]int{2, 1, 3}, 0, 0, 0, 0, 0, 0),
		dense([]int{2, 1, 3}, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9),
		dense([]int{2, 1, 3}, 1, 1, 1, 2, 2, 2),
		valuesTensor,
		dense([]int{1, 3}, 1.5, 1.5, 1.5),
		c,
	)
	if err != nil {
		t.Fatal(err)
	}
	checkApprox(t, "per agent pg advantages", perAgent.PGAdvantages,
		[]float64{4.015, 3.515, 3.015, 2.85, 2.35, 1.85}, tolerance)

	mean := float64s(t, r.PGAdvantages)
	separate := float64s(t, perAgent.PGAdvantages)
	for i := range values {
		agent := i % 3
		differ := math.Abs(mean[i]-separate[i]) > tolerance
		if differ != (agent != 1) {
			t.Errorf("index %v, agent %v: \n\tmean value function(%v)"+
				"\n\tper agent(%v)", i, agent, mean[i], separate[i])
		}
	}

	// With λ = 1 and no clipping active, vs does not depend on the
	// values at all
	checkApprox(t, "per agent vs", perAgent.Vs, float64s(t, r.Vs), tolerance)
}

func TestISWeightsScale(t *testing.T) {
	ln4 := float32(2 * math.Ln2)
	tests := []struct {
		scale  float32
		maxRho float64
		vs     float64
	}{
		{0.5, 2, 4}, // ρ = exp(0.5 log 4) = 2
		{1, 4, 8},
		{0, 1, 2}, // On-policy: r + γ bootstrap
	}

	for _, test := range tests {
		rec := &recorder{}
		c := noClipConfig()
		c.ISWeightsScale = test.scale
		c.Logger = rec

		r, err := FromImportanceWeights(
			dense([]int{1, 1}, ln4),
			dense([]int{1, 1}, 0),
			dense([]int{1, 1}, 0.5),
			dense([]int{1, 1}, 1),
			dense([]int{1, 1}, 0),
			dense([]int{1}, 2),
			c,
		)
		if err != nil {
			t.Fatalf("scale %v: %v", test.scale, err)
		}
		checkApprox(t, fmt.Sprintf("scale %v vs", test.scale), r.Vs,
			[]float64{test.vs}, 1e-4)
		checkApprox(t, fmt.Sprintf("scale %v pg advantages", test.scale),
			r.PGAdvantages, []float64{test.vs}, 1e-4)

		if len(rec.logged) != 1 {
			t.Fatalf("scale %v: logged diagnostics \n\twant(1)\n\thave(%v)",
				test.scale, len(rec.logged))
		}
		if got := float64(rec.logged[0].MaxRho); math.Abs(got-test.maxRho) > 1e-4 {
			t.Errorf("scale %v: max ρ \n\twant(%v)\n\thave(%v)", test.scale,
				test.maxRho, got)
		}
	}
}

func TestCentralizedIS(t *testing.T) {
	ln4 := float32(2 * math.Ln2)
	run := func(centralizedIS bool) Returns {
		c := noClipConfig()
		c.CentralizedIS = centralizedIS
		r, err := FromImportanceWeights(
			dense([]int{1, 1, 2}, ln4, 0),
			dense([]int{1, 1, 2}, 0, 0),
			dense([]int{1, 1, 2}, 0, 0),
			dense([]int{1, 1, 2}, 1, 1),
			dense([]int{1, 1, 2}, 0, 0),
			dense([]int{1, 2}, 0, 0),
			c,
		)
		if err != nil {
			t.Fatal(err)
		}
		return r
	}

	// Both agents share ρ = exp(mean(log 4, 0)) = 2
	checkApprox(t, "centralized vs", run(true).Vs, []float64{2, 2}, 1e-4)
	checkApprox(t, "per agent vs", run(false).Vs, []float64{4, 1}, 1e-4)
}

func TestCentralizedISMatchesManualMean(t *testing.T) {
	const T, B, agents = 4, 2, 3
	n := T * B * agents
	normal := distuv.Normal{Mu: 0, Sigma: 0.5, Src: rand.NewSource(11)}
	target := make([]float32, n)
	behaviour := make([]float32, n)
	for i := range target {
		target[i] = float32(normal.Rand())
		behaviour[i] = float32(normal.Rand())
	}

	// Manually replace each log ratio by the mean over the agents
	averaged := make([]float32, n)
	for row := 0; row < T*B; row++ {
		var mean float32
		for a := 0; a < agents; a++ {
			i := row*agents + a
			mean += target[i] - behaviour[i]
		}
		mean /= agents
		for a := 0; a < agents; a++ {
			averaged[row*agents+a] = mean
		}
	}

	discounts, rewards, values, bootstrap := randomBatch(5, T, B*agents)
	shape := []int{T, B, agents}
	run := func(target, behaviour []float32, centralizedIS bool) Returns {
		c := DefaultConfig()
		c.CentralizedIS = centralizedIS
		r, err := FromImportanceWeights(dense(shape, target...),
			dense(shape, behaviour...), dense(shape, discounts...),
			dense(shape, rewards...), dense(shape, values...),
			dense([]int{B, agents}, bootstrap...), c)
		if err != nil {
			t.Fatal(err)
		}
		return r
	}

	got := run(target, behaviour, true)
	want := run(averaged, make([]float32, n), false)
	checkApprox(t, "vs", got.Vs, float64s(t, want.Vs), 1e-4)
	checkApprox(t, "pg advantages", got.PGAdvantages,
		float64s(t, want.PGAdvantages), 1e-4)
}

func TestNonCentralizedBroadcast(t *testing.T) {
	c := DefaultConfig()
	c.Centralized = false

	r, err := FromImportanceWeights(
		dense([]int{2, 1, 2}, 0, 0, 0, 0),
		dense([]int{2, 1, 2}, 0, 0, 0, 0),
		dense([]int{2, 1}, 0.9, 0.9),
		dense([]int{2, 1}, 1, 2),
		dense([]int{2, 1, 2}, 0.5, 0.5, 1, 1),
		dense([]int{1, 2}, 1.5, 1.5),
		c,
	)
	if err != nil {
		t.Fatal(err)
	}
	checkApprox(t, "vs", r.Vs, []float64{4.015, 4.015, 3.35, 3.35},
		tolerance)
	checkApprox(t, "pg advantages", r.PGAdvantages,
		[]float64{3.515, 3.515, 2.35, 2.35}, tolerance)

	if got := r.Vs.Shape(); !tensorutils.SameShape(got, []int{2, 1, 2}) {
		t.Errorf("vs shape: \n\twant([2 1 2])\n\thave(%v)", got)
	}
}

func TestShapeErrors(t *testing.T) {
	s := newScenario()
	nonCentralized := DefaultConfig()
	nonCentralized.Centralized = false

	tests := []struct {
		name string
		s    scenario
		c    Config
	}{
		{"behaviour", scenario{s.target, dense([]int{1, 2}, 0, 0),
			s.discounts, s.rewards, s.values, s.bootstrap}, DefaultConfig()},
		{"values", scenario{s.target, s.behaviour, s.discounts, s.rewards,
			dense([]int{2, 1, 1}, 0.5, 1), s.bootstrap}, DefaultConfig()},
		{"values shape", scenario{s.target, s.behaviour, s.discounts,
			s.rewards, dense([]int{1, 2}, 0.5, 1), s.bootstrap},
			DefaultConfig()},
		{"bootstrap rank", scenario{s.target, s.behaviour, s.discounts,
			s.rewards, s.values, dense([]int{1, 1}, 1.5)}, DefaultConfig()},
		{"bootstrap shape", scenario{s.target, s.behaviour, s.discounts,
			s.rewards, s.values, dense([]int{2}, 1.5, 1.5)},
			DefaultConfig()},
		{"rewards", scenario{s.target, s.behaviour, s.discounts,
			dense([]int{2}, 1, 2), s.values, s.bootstrap}, DefaultConfig()},
		{"discounts", scenario{s.target, s.behaviour,
			dense([]int{3, 1}, 1, 1, 1), s.rewards, s.values, s.bootstrap},
			DefaultConfig()},
		{"non-centralized rewards", s, nonCentralized},
		{"nil", scenario{s.target, s.behaviour, s.discounts, s.rewards,
			nil, s.bootstrap}, DefaultConfig()},
		{"dtype", scenario{s.target, s.behaviour, s.discounts, s.rewards,
			tensor.New(tensor.WithShape(2, 1), tensor.WithBacking(
				[]float64{0.5, 1})), s.bootstrap}, DefaultConfig()},
	}

	for _, test := range tests {
		_, err := test.s.run(test.c)
		if err == nil {
			t.Errorf("%v: expected error", test.name)
			continue
		}
		if !IsShapeError(err) {
			t.Errorf("%v: expected shape error, have(%v)", test.name, err)
		}
		if IsConfigError(err) {
			t.Errorf("%v: unexpected config error %v", test.name, err)
		}
	}
}

func TestConfigErrors(t *testing.T) {
	unset := DefaultConfig()
	unset.ClipPGRhoThreshold = Threshold{}

	negative := DefaultConfig()
	negative.ClipRhoThreshold = ClipAt(-1)

	lambda := DefaultConfig()
	lambda.Lambda = 1.5

	scale := DefaultConfig()
	scale.ISWeightsScale = math32.Inf(1)

	tests := map[string]Config{
		"unset threshold":    unset,
		"negative threshold": negative,
		"lambda":             lambda,
		"scale":              scale,
		"zero config":        {},
	}

	for name, c := range tests {
		_, err := newScenario().run(c)
		if !IsConfigError(err) {
			t.Errorf("%v: expected config error, have(%v)", name, err)
		}
		if IsShapeError(err) {
			t.Errorf("%v: unexpected shape error %v", name, err)
		}
	}

	// Config errors take precedence over shape errors
	s := newScenario()
	s.values = nil
	if _, err := s.run(unset); !IsConfigError(err) {
		t.Errorf("expected config error, have(%v)", err)
	}
}

func TestNonFinitePropagates(t *testing.T) {
	s := newScenario()
	s.target = dense([]int{2, 1}, 100, 0)

	r, err := s.run(noClipConfig())
	if err != nil {
		t.Fatalf("non-finite ratios should not be reported as errors: %v",
			err)
	}
	vs := float64s(t, r.Vs)
	if !math.IsInf(vs[0], 1) && !math.IsNaN(vs[0]) {
		t.Errorf("vs[0]: \n\twant(+Inf or NaN)\n\thave(%v)", vs[0])
	}

	r, err = s.run(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range float64s(t, r.Vs) {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			t.Errorf("clipped vs should be finite, have(%v)", v)
		}
	}
}

func TestInputsUnchanged(t *testing.T) {
	s := newScenario()
	s.target = dense([]int{2, 1}, 0.3, -0.2)
	inputs := []*tensor.Dense{s.target, s.behaviour, s.discounts, s.rewards,
		s.values, s.bootstrap}
	before := make([][]float64, len(inputs))
	for i, input := range inputs {
		before[i] = float64s(t, input)
	}

	c := DefaultConfig()
	c.MeanValueFunction = true
	c.CentralizedIS = true
	if _, err := s.run(c); err != nil {
		t.Fatal(err)
	}

	for i, input := range inputs {
		if after := float64s(t, input); !floats.Equal(before[i], after) {
			t.Errorf("input %v modified \n\tbefore(%v)\n\tafter(%v)", i,
				before[i], after)
		}
	}
}

type recorder struct {
	logged []Diagnostics
}

func (r *recorder) Log(d Diagnostics) {
	r.logged = append(r.logged, d)
}

func TestDiagnostics(t *testing.T) {
	ln2 := float32(math.Ln2)
	s := newScenario()
	s.target = dense([]int{2, 1}, ln2, -ln2)

	rec := &recorder{}
	c := DefaultConfig()
	c.Logger = rec
	if _, err := s.run(c); err != nil {
		t.Fatal(err)
	}
	if len(rec.logged) != 1 {
		t.Fatalf("logged diagnostics: \n\twant(1)\n\thave(%v)",
			len(rec.logged))
	}

	got := rec.logged[0]
	want := []float64{2, 1, 0.5, 0.75, 0.75}
	have := make([]float64, 0, len(want))
	for _, scalar := range got.Scalars() {
		have = append(have, float64(scalar.Value))
	}
	if !floats.EqualApprox(have, want, 1e-5) {
		t.Errorf("diagnostics: \n\twant(%v)\n\thave(%v)", want, have)
	}
	if name := got.Scalars()[0].Name; name != MaxRhoName {
		t.Errorf("first scalar: \n\twant(%v)\n\thave(%v)", MaxRhoName, name)
	}

	diagnosed, err := Diagnose(s.target, s.behaviour, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if diagnosed != got {
		t.Errorf("diagnose: \n\twant(%v)\n\thave(%v)", got, diagnosed)
	}
}

func ExampleFromImportanceWeights() {
	shape := []int{2, 1} // [T, B]
	target := tensorutils.New(shape, []float32{0, 0})
	behaviour := tensorutils.New(shape, []float32{0, 0})
	discounts := tensorutils.New(shape, []float32{0.9, 0.9})
	rewards := tensorutils.New(shape, []float32{1, 2})
	values := tensorutils.New(shape, []float32{0.5, 1})
	bootstrap := tensorutils.New([]int{1}, []float32{1.5})

	r, err := FromImportanceWeights(target, behaviour, discounts, rewards,
		values, bootstrap, DefaultConfig())
	if err != nil {
		panic(err)
	}

	vs, _ := tensorutils.Float32s(r.Vs)
	pg, _ := tensorutils.Float32s(r.PGAdvantages)
	fmt.Printf("vs: %.3f\n", vs)
	fmt.Printf("pg advantages: %.3f\n", pg)
	// Output:
	// vs: [4.015 3.350]
	// pg advantages: [3.515 2.350]
}

func BenchmarkFromImportanceWeights(b *testing.B) {
	const T, B, agents = 100, 32, 4
	shape := []int{T, B, agents}
	n := T * B * agents
	discounts, rewards, values, bootstrap := randomBatch(1, T, B*agents)

	normal := distuv.Normal{Mu: 0, Sigma: 0.3, Src: rand.NewSource(2)}
	target := make([]float32, n)
	for i := range target {
		target[i] = float32(normal.Rand())
	}

	targetT := dense(shape, target...)
	behaviourT := dense(shape, make([]float32, n)...)
	discountsT := dense(shape, discounts...)
	rewardsT := dense(shape, rewards...)
	valuesT := dense(shape, values...)
	bootstrapT := dense([]int{B, agents}, bootstrap...)
	c := DefaultConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := FromImportanceWeights(targetT, behaviourT, discountsT,
			rewardsT, valuesT, bootstrapT, c)
		if err != nil {
			b.Fatal(err)
		}
	}
}
