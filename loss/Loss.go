// Package loss implements the learner-side losses of an IMPALA style
// actor-critic trained with V-trace targets.
//
// The V-trace targets and advantages enter the computational graph as
// input nodes which are never differentiated, so that gradients flow
// only into the value estimates and the log probabilities of the
// learner:
//
//	∂L/∂V(x_t)          = BaselineCost * (V(x_t) - vs_t)
//	∂L/∂log π(a_t|x_t)  = -pg_advantage_t
package loss

import (
	"fmt"

	"github.com/samuelfneumann/vtrace/utils/tensorutils"
	"github.com/samuelfneumann/vtrace/vtrace"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Config implements the configuration of the V-trace losses
type Config struct {
	// BaselineCost weights the baseline loss in the total loss
	BaselineCost float32
}

// Validate checks a Config to ensure it is a valid configuration
func (c Config) Validate() error {
	if c.BaselineCost < 0 {
		return fmt.Errorf("baseline cost must be non-negative \n\thave(%v)",
			c.BaselineCost)
	}
	return nil
}

// Loss holds the nodes of the V-trace losses. The total loss is
//
//	L = BaselineCost * 0.5 * Σ (vs_t - V(x_t))² - Σ log π(a_t|x_t) A_t
//
// where A_t are the policy gradient advantages.
type Loss struct {
	values   *G.Node
	logProbs *G.Node

	// Input nodes holding the V-trace outputs
	vs           *G.Node
	pgAdvantages *G.Node

	baseline *G.Node
	policy   *G.Node
	total    *G.Node
}

// New constructs the V-trace losses on the graph of values. The
// values and logProbs nodes must be float32 nodes with the shape of
// the V-trace outputs r, which are set as the initial targets of the
// losses.
func New(values, logProbs *G.Node, r vtrace.Returns, c Config) (*Loss,
	error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	if values.Graph() != logProbs.Graph() {
		return nil, fmt.Errorf("new: values and log probabilities must be " +
			"on the same graph")
	}
	if !tensorutils.SameShape(values.Shape(), logProbs.Shape()) {
		return nil, fmt.Errorf("new: values and log probabilities differ "+
			"in shape \n\tvalues(%v)\n\tlog probabilities(%v)",
			values.Shape(), logProbs.Shape())
	}
	for _, n := range []*G.Node{values, logProbs} {
		if n.Dtype() != tensor.Float32 {
			return nil, fmt.Errorf("new: illegal dtype of node %v "+
				"\n\twant(%v)\n\thave(%v)", n.Name(), tensor.Float32,
				n.Dtype())
		}
	}

	g := values.Graph()
	shape := values.Shape()
	vs := G.NewTensor(g, tensor.Float32, shape.Dims(),
		G.WithShape(shape...), G.WithName("V-trace Targets"))
	pgAdvantages := G.NewTensor(g, tensor.Float32, shape.Dims(),
		G.WithShape(shape...), G.WithName("V-trace PG Advantages"))

	// Baseline loss
	half := G.NewConstant(float32(0.5))
	baseline := G.Must(G.Sub(vs, values))
	baseline = G.Must(G.Square(baseline))
	baseline = G.Must(G.Sum(baseline))
	baseline = G.Must(G.HadamardProd(half, baseline))

	// Policy gradient loss
	policy := G.Must(G.HadamardProd(logProbs, pgAdvantages))
	policy = G.Must(G.Sum(policy))
	policy = G.Must(G.Neg(policy))

	cost := G.NewConstant(c.BaselineCost)
	total := G.Must(G.HadamardProd(cost, baseline))
	total = G.Must(G.Add(total, policy))

	l := &Loss{
		values:       values,
		logProbs:     logProbs,
		vs:           vs,
		pgAdvantages: pgAdvantages,
		baseline:     baseline,
		policy:       policy,
		total:        total,
	}

	if err := l.Set(r); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}
	return l, nil
}

// Set sets the V-trace outputs used as targets of the losses. This
// should be called before each run of the graph with newly computed
// V-trace outputs.
func (l *Loss) Set(r vtrace.Returns) error {
	shape := l.values.Shape()
	for _, target := range []struct {
		name  string
		node  *G.Node
		value *tensor.Dense
	}{
		{"vs", l.vs, r.Vs},
		{"pg advantages", l.pgAdvantages, r.PGAdvantages},
	} {
		if target.value == nil {
			return fmt.Errorf("set: nil %v", target.name)
		}
		if !tensorutils.SameShape(shape, target.value.Shape()) {
			return fmt.Errorf("set: illegal shape of %v \n\twant(%v)"+
				"\n\thave(%v)", target.name, shape, target.value.Shape())
		}
		if err := G.Let(target.node, target.value); err != nil {
			return fmt.Errorf("set: could not set %v: %v", target.name, err)
		}
	}
	return nil
}

// Total returns the node of the total loss, which should be passed to
// G.Grad together with the learnables of the learner
func (l *Loss) Total() *G.Node {
	return l.total
}

// Baseline returns the node of the unweighted baseline loss
func (l *Loss) Baseline() *G.Node {
	return l.baseline
}

// Policy returns the node of the policy gradient loss
func (l *Loss) Policy() *G.Node {
	return l.policy
}

// Value returns the value of the total loss computed by the last run
// of the graph
func (l *Loss) Value() (float32, error) {
	if l.total.Value() == nil {
		return 0, fmt.Errorf("value: graph has not been run")
	}
	v, ok := l.total.Value().Data().(float32)
	if !ok {
		return 0, fmt.Errorf("value: illegal loss type %T",
			l.total.Value().Data())
	}
	return v, nil
}
