package vtrace

import (
	"fmt"

	"github.com/samuelfneumann/vtrace/utils/floatutils"
)

// Logger receives importance sampling diagnostics each time V-trace
// is computed with a Config holding the Logger.
type Logger interface {
	Log(d Diagnostics)
}

// Diagnostics summarises the importance ratios of one V-trace call
type Diagnostics struct {
	MaxRho         float32
	MaxClippedRho  float32
	MinRho         float32
	MeanClippedRho float32
	MeanC          float32
}

// Names of the scalars reported by Diagnostics.Scalars
const (
	MaxRhoName         = "IS/max_rho"
	MaxClippedRhoName  = "IS/max_clipped_rho"
	MinRhoName         = "IS/min_rho"
	MeanClippedRhoName = "IS/mean_clipped_rho"
	MeanCName          = "IS/mean_c"
)

// Scalar is a single named diagnostic value
type Scalar struct {
	Name  string
	Value float32
}

// Scalars returns the diagnostics as named scalars in a fixed order
func (d Diagnostics) Scalars() []Scalar {
	return []Scalar{
		{MaxRhoName, d.MaxRho},
		{MaxClippedRhoName, d.MaxClippedRho},
		{MinRhoName, d.MinRho},
		{MeanClippedRhoName, d.MeanClippedRho},
		{MeanCName, d.MeanC},
	}
}

func (d Diagnostics) String() string {
	return fmt.Sprintf("Diagnostics | max ρ: %.4f  |  max clipped ρ: %.4f  |  "+
		"min ρ: %.4f  |  mean clipped ρ: %.4f  |  mean c: %.4f", d.MaxRho,
		d.MaxClippedRho, d.MinRho, d.MeanClippedRho, d.MeanC)
}

// newDiagnostics summarises the ratios computed by V-trace
func newDiagnostics(rhos, clippedRhos, cs []float32) Diagnostics {
	if len(rhos) == 0 {
		return Diagnostics{}
	}
	return Diagnostics{
		MaxRho:         floatutils.Max(rhos...),
		MaxClippedRho:  floatutils.Max(clippedRhos...),
		MinRho:         floatutils.Min(rhos...),
		MeanClippedRho: floatutils.Mean(clippedRhos),
		MeanC:          floatutils.Mean(cs),
	}
}
