// Package config implements the run configuration of the vtrace
// command, loaded from YAML files with environment overrides
package config

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/samuelfneumann/vtrace/vtrace"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding
// configuration keys, e.g. VTRACE_VTRACE_LAMBDA overrides vtrace.lambda
const EnvPrefix = "VTRACE"

// noClip is the threshold value which disables clipping
const noClip = "none"

// Run is the configuration of a single run of the vtrace command
type Run struct {
	// Nonce identifies the run in the diagnostics database. A random
	// UUID is used if empty.
	Nonce string `mapstructure:"nonce" yaml:"nonce"`

	Input  string `mapstructure:"input" yaml:"input"`
	Output string `mapstructure:"output" yaml:"output"`

	// StatsFile and StatsDB are optional destinations of the importance
	// sampling diagnostics
	StatsFile string `mapstructure:"stats_file" yaml:"stats_file,omitempty"`
	StatsDB   string `mapstructure:"stats_db" yaml:"stats_db,omitempty"`

	// UnrollLength splits each batch into windows of at most this many
	// timesteps. If 0, batches are not split.
	UnrollLength int `mapstructure:"unroll_length" yaml:"unroll_length"`

	VTrace VTrace `mapstructure:"vtrace" yaml:"vtrace"`
}

// VTrace is the file representation of a vtrace.Config. Thresholds
// are either numbers or the string "none" and must always be given.
type VTrace struct {
	ClipRhoThreshold   string  `mapstructure:"clip_rho_threshold" yaml:"clip_rho_threshold"`
	ClipPGRhoThreshold string  `mapstructure:"clip_pg_rho_threshold" yaml:"clip_pg_rho_threshold"`
	Lambda             float32 `mapstructure:"lambda" yaml:"lambda"`
	ISWeightsScale     float32 `mapstructure:"is_weights_scale" yaml:"is_weights_scale"`
	CentralizedIS      bool    `mapstructure:"centralized_is" yaml:"centralized_is"`
	MeanValueFunction  bool    `mapstructure:"mean_value_function" yaml:"mean_value_function"`
	Centralized        bool    `mapstructure:"centralized" yaml:"centralized"`
}

// FromYaml reads a Run from the YAML file at path. Any key may be
// overridden by an environment variable with prefix EnvPrefix.
func FromYaml(path string) (*Run, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	d := vtrace.DefaultConfig()
	vp.SetDefault("unroll_length", 0)
	vp.SetDefault("vtrace.lambda", d.Lambda)
	vp.SetDefault("vtrace.is_weights_scale", d.ISWeightsScale)
	vp.SetDefault("vtrace.centralized_is", d.CentralizedIS)
	vp.SetDefault("vtrace.mean_value_function", d.MeanValueFunction)
	vp.SetDefault("vtrace.centralized", d.Centralized)

	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fromYaml: %v", err)
	}

	run := &Run{}
	if err := vp.Unmarshal(run); err != nil {
		return nil, fmt.Errorf("fromYaml: %v", err)
	}
	if run.Nonce == "" {
		run.Nonce = uuid.NewString()
	}

	if _, err := run.Config(); err != nil {
		return nil, fmt.Errorf("fromYaml: %v", err)
	}
	return run, nil
}

// Config returns the validated vtrace.Config of the Run
func (r *Run) Config() (vtrace.Config, error) {
	rho, err := parseThreshold("clip_rho_threshold", r.VTrace.ClipRhoThreshold)
	if err != nil {
		return vtrace.Config{}, fmt.Errorf("config: %v", err)
	}
	pgRho, err := parseThreshold("clip_pg_rho_threshold",
		r.VTrace.ClipPGRhoThreshold)
	if err != nil {
		return vtrace.Config{}, fmt.Errorf("config: %v", err)
	}
	if r.UnrollLength < 0 {
		return vtrace.Config{}, fmt.Errorf("config: unroll length must be "+
			"non-negative \n\thave(%v)", r.UnrollLength)
	}

	c := vtrace.Config{
		ClipRhoThreshold:   rho,
		ClipPGRhoThreshold: pgRho,
		Lambda:             r.VTrace.Lambda,
		ISWeightsScale:     r.VTrace.ISWeightsScale,
		CentralizedIS:      r.VTrace.CentralizedIS,
		MeanValueFunction:  r.VTrace.MeanValueFunction,
		Centralized:        r.VTrace.Centralized,
	}
	if err := c.Validate(); err != nil {
		return vtrace.Config{}, fmt.Errorf("config: %v", err)
	}
	return c, nil
}

// Save writes the Run as YAML to w
func (r *Run) Save(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("save: %v", err)
	}
	return enc.Close()
}

// parseThreshold parses a threshold given as a number or "none"
func parseThreshold(key, value string) (vtrace.Threshold, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "":
		return vtrace.Threshold{}, fmt.Errorf("%v must be set, use %q to "+
			"disable clipping", key, noClip)
	case noClip:
		return vtrace.NoClip(), nil
	}

	bound, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return vtrace.Threshold{}, fmt.Errorf("%v must be a number or %q "+
			"\n\thave(%v)", key, noClip, value)
	}
	return vtrace.ClipAt(float32(bound)), nil
}

// Default returns the Run used when no configuration file is given. It
// uses the IMPALA defaults of vtrace.DefaultConfig and reads from
// standard input and writes to standard output.
func Default() *Run {
	d := vtrace.DefaultConfig()
	return &Run{
		Nonce: uuid.NewString(),
		VTrace: VTrace{
			ClipRhoThreshold:   d.ClipRhoThreshold.String(),
			ClipPGRhoThreshold: d.ClipPGRhoThreshold.String(),
			Lambda:             d.Lambda,
			ISWeightsScale:     d.ISWeightsScale,
			CentralizedIS:      d.CentralizedIS,
			MeanValueFunction:  d.MeanValueFunction,
			Centralized:        d.Centralized,
		},
	}
}
