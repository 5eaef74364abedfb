package vtrace

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Config holds the tunables and multi-agent switches of a V-trace
// computation. The Config is always passed explicitly; nothing is read
// from global state.
type Config struct {
	// ClipRhoThreshold bounds the importance ratios used for the value
	// targets vs. This is ρ̄ in the IMPALA paper.
	ClipRhoThreshold Threshold

	// ClipPGRhoThreshold bounds the importance ratios used for the
	// policy gradient advantages
	ClipPGRhoThreshold Threshold

	// Lambda mixes between 1-step (0) and n-step (1) targets. See
	// Remark 2 of the IMPALA paper.
	Lambda float32

	// ISWeightsScale scales the log importance ratios before they are
	// exponentiated
	ISWeightsScale float32

	// CentralizedIS shares a single importance ratio, the mean of the
	// log ratios over the trailing agent axis, between all agents
	CentralizedIS bool

	// MeanValueFunction replaces the value estimates of all agents by
	// their mean over the trailing agent axis
	MeanValueFunction bool

	// Centralized denotes that rewards and discounts have the same
	// shape as the values. Otherwise they lack the trailing agent axis
	// and are broadcast over it.
	Centralized bool

	// Logger, if not nil, receives importance sampling diagnostics
	// after each computation
	Logger Logger `json:"-"`
}

// DefaultConfig returns the Config used by IMPALA: both thresholds
// clip at 1, λ = 1, unscaled importance weights and a centralized
// critic.
func DefaultConfig() Config {
	return Config{
		ClipRhoThreshold:   ClipAt(1.0),
		ClipPGRhoThreshold: ClipAt(1.0),
		Lambda:             1.0,
		ISWeightsScale:     1.0,
		Centralized:        true,
	}
}

// Validate checks a Config to ensure it is a valid configuration
func (c Config) Validate() error {
	if err := c.ClipRhoThreshold.validate("clip rho threshold"); err != nil {
		return &Error{Op: "validate", Err: fmt.Errorf("%w: %v", ErrConfig, err)}
	}
	if err := c.ClipPGRhoThreshold.validate("clip pg rho threshold"); err != nil {
		return &Error{Op: "validate", Err: fmt.Errorf("%w: %v", ErrConfig, err)}
	}
	if math32.IsNaN(c.Lambda) || c.Lambda < 0 || c.Lambda > 1 {
		return &Error{
			Op:  "validate",
			Err: fmt.Errorf("%w: lambda must be in [0, 1], have(%v)", ErrConfig, c.Lambda),
		}
	}
	if math32.IsNaN(c.ISWeightsScale) || math32.IsInf(c.ISWeightsScale, 0) {
		return &Error{
			Op: "validate",
			Err: fmt.Errorf("%w: importance weight scale must be finite, "+
				"have(%v)", ErrConfig, c.ISWeightsScale),
		}
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("Config | ρ̄: %v  |  ρ̄ pg: %v  |  λ: %v  |  IS scale: "+
		"%v  |  Centralized IS: %v  |  Mean V: %v  |  Centralized: %v",
		c.ClipRhoThreshold, c.ClipPGRhoThreshold, c.Lambda, c.ISWeightsScale,
		c.CentralizedIS, c.MeanValueFunction, c.Centralized)
}
