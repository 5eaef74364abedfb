package trajectory

import (
	"fmt"
	"sync"

	"github.com/samuelfneumann/vtrace/timestep"
	"github.com/samuelfneumann/vtrace/utils/tensorutils"
)

// Buffer assembles the timesteps generated by a number of environments
// into a time-major Batch. Each environment contributes one column of
// the batch: exactly unrollLength timesteps followed by the value
// estimate of the state after its last stored timestep.
//
// Each timestep may carry several log probabilities and values, one
// per agent or action head. If heads is 0, the Batch has no trailing
// axis and each timestep carries exactly one of each.
//
// A Buffer is safe for concurrent use by multiple actors.
type Buffer struct {
	mu sync.Mutex

	unrollLength int
	numEnvs      int
	heads        int
	centralized  bool // Rewards and discounts carry the trailing axis

	// Number of timesteps stored for each environment
	stored       []int
	bootstrapped []bool

	// Per environment buffers of unrollLength * width elements
	targetBuffer    [][]float32
	behaviourBuffer [][]float32
	valBuffer       [][]float32
	rewBuffer       [][]float32 // unrollLength elements
	discBuffer      [][]float32 // unrollLength elements
	bootstrapBuffer [][]float32 // width elements
}

// NewBuffer creates and returns a new Buffer
func NewBuffer(unrollLength, numEnvs, heads int,
	centralized bool) (*Buffer, error) {
	if unrollLength <= 0 {
		return nil, fmt.Errorf("newBuffer: unroll length must be > 0")
	}
	if numEnvs <= 0 {
		return nil, fmt.Errorf("newBuffer: number of environments must be > 0")
	}
	if heads < 0 {
		return nil, fmt.Errorf("newBuffer: number of heads must be >= 0")
	}
	if heads == 0 && !centralized {
		return nil, fmt.Errorf("newBuffer: rewards can only be broadcast " +
			"over a trailing axis, heads must be > 0 if not centralized")
	}

	b := &Buffer{
		unrollLength: unrollLength,
		numEnvs:      numEnvs,
		heads:        heads,
		centralized:  centralized,
	}
	b.reset()
	return b, nil
}

// width returns the number of elements per timestep and environment
func (b *Buffer) width() int {
	if b.heads == 0 {
		return 1
	}
	return b.heads
}

// reset clears the Buffer
func (b *Buffer) reset() {
	w := b.width()
	b.stored = make([]int, b.numEnvs)
	b.bootstrapped = make([]bool, b.numEnvs)
	b.targetBuffer = make([][]float32, b.numEnvs)
	b.behaviourBuffer = make([][]float32, b.numEnvs)
	b.valBuffer = make([][]float32, b.numEnvs)
	b.rewBuffer = make([][]float32, b.numEnvs)
	b.discBuffer = make([][]float32, b.numEnvs)
	b.bootstrapBuffer = make([][]float32, b.numEnvs)

	for i := 0; i < b.numEnvs; i++ {
		b.targetBuffer[i] = make([]float32, b.unrollLength*w)
		b.behaviourBuffer[i] = make([]float32, b.unrollLength*w)
		b.valBuffer[i] = make([]float32, b.unrollLength*w)
		b.rewBuffer[i] = make([]float32, b.unrollLength)
		b.discBuffer[i] = make([]float32, b.unrollLength)
		b.bootstrapBuffer[i] = make([]float32, w)
	}
}

// Store stores a single timestep of environment env to the Buffer.
// The target and behaviour log probabilities of the action taken and
// the value estimates must each hold one element per head.
func (b *Buffer) Store(env int, step timestep.TimeStep, target, behaviour,
	values []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if env < 0 || env >= b.numEnvs {
		return fmt.Errorf("store: illegal environment %v", env)
	}
	if b.stored[env] >= b.unrollLength {
		return fmt.Errorf("store: cannot add new timestep, unroll of "+
			"environment %v at maximum length", env)
	}
	w := b.width()
	for _, arg := range []struct {
		name string
		data []float32
	}{{"target", target}, {"behaviour", behaviour}, {"values", values}} {
		if len(arg.data) != w {
			return fmt.Errorf("store: illegal %v length \n\twant(%v)"+
				"\n\thave(%v)", arg.name, w, len(arg.data))
		}
	}

	pos := b.stored[env]
	copy(b.targetBuffer[env][pos*w:(pos+1)*w], target)
	copy(b.behaviourBuffer[env][pos*w:(pos+1)*w], behaviour)
	copy(b.valBuffer[env][pos*w:(pos+1)*w], values)
	b.rewBuffer[env][pos] = step.Reward
	b.discBuffer[env][pos] = step.EffectiveDiscount()
	b.stored[env]++
	return nil
}

// Bootstrap stores the value estimates of the state following the
// last timestep of environment env. It should be called once the
// unroll of env is full.
func (b *Buffer) Bootstrap(env int, values []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if env < 0 || env >= b.numEnvs {
		return fmt.Errorf("bootstrap: illegal environment %v", env)
	}
	if b.stored[env] != b.unrollLength {
		return fmt.Errorf("bootstrap: unroll of environment %v incomplete "+
			"\n\twant(%v)\n\thave(%v)", env, b.unrollLength, b.stored[env])
	}
	if len(values) != b.width() {
		return fmt.Errorf("bootstrap: illegal values length \n\twant(%v)"+
			"\n\thave(%v)", b.width(), len(values))
	}

	copy(b.bootstrapBuffer[env], values)
	b.bootstrapped[env] = true
	return nil
}

// Full returns whether every environment has stored a full unroll and
// its bootstrap value
func (b *Buffer) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.full()
}

func (b *Buffer) full() bool {
	for _, ok := range b.bootstrapped {
		if !ok {
			return false
		}
	}
	return true
}

// Batch returns the stored timesteps as a time-major Batch and clears
// the Buffer. The Buffer must be full.
func (b *Buffer) Batch() (Batch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full() {
		return Batch{}, fmt.Errorf("batch: buffer must be full before " +
			"sampling")
	}

	T, B, w := b.unrollLength, b.numEnvs, b.width()
	shape := []int{T, B}
	bootstrapShape := []int{B}
	if b.heads > 0 {
		shape = append(shape, b.heads)
		bootstrapShape = append(bootstrapShape, b.heads)
	}

	stepShape := []int{T, B}
	stepWidth := 1
	if b.heads > 0 && b.centralized {
		stepShape = shape
		stepWidth = w
	}

	target := make([]float32, T*B*w)
	behaviour := make([]float32, T*B*w)
	values := make([]float32, T*B*w)
	rewards := make([]float32, T*B*stepWidth)
	discounts := make([]float32, T*B*stepWidth)
	bootstrap := make([]float32, B*w)

	for env := 0; env < B; env++ {
		for t := 0; t < T; t++ {
			dst := (t*B + env) * w
			copy(target[dst:dst+w], b.targetBuffer[env][t*w:(t+1)*w])
			copy(behaviour[dst:dst+w], b.behaviourBuffer[env][t*w:(t+1)*w])
			copy(values[dst:dst+w], b.valBuffer[env][t*w:(t+1)*w])

			// A centralized critic sees the shared reward for each head
			dst = (t*B + env) * stepWidth
			for h := 0; h < stepWidth; h++ {
				rewards[dst+h] = b.rewBuffer[env][t]
				discounts[dst+h] = b.discBuffer[env][t]
			}
		}
		copy(bootstrap[env*w:(env+1)*w], b.bootstrapBuffer[env])
	}

	batch := Batch{
		TargetLogProbs:    tensorutils.New(shape, target),
		BehaviourLogProbs: tensorutils.New(shape, behaviour),
		Discounts:         tensorutils.New(stepShape, discounts),
		Rewards:           tensorutils.New(stepShape, rewards),
		Values:            tensorutils.New(shape, values),
		BootstrapValue:    tensorutils.New(bootstrapShape, bootstrap),
	}
	b.reset()
	return batch, nil
}
