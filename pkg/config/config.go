// Package config provides the simulation configuration threaded through
// every solver, simplifier and convergence call.
//
// There is no package-level mutable state: a [Simulation] value is created
// with [Default], optionally overlaid from a TOML or YAML file with [Load],
// adjusted by command-line flags and checked with [Simulation.Validate].
//
//	cfg := config.Default()
//	cfg.TimeStep = 0.5
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/mtxlayout/pkg/errors"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	DefaultIdealLength       = 1.0
	DefaultForceScale        = 2.0
	DefaultTimeStep          = 1.0
	DefaultFrameTime         = 1.0 / 60
	DefaultQuantum           = 50000
	DefaultCheckInterval     = 50
	DefaultCheckIntervalStep = 10
	DefaultUnsimplifyDelay   = 150
	DefaultAnnealDelay       = 50
	DefaultMinCheckInterval  = 10
	DefaultConvergenceFactor = 0.05
	DefaultTimeStepFloor     = 0.01
	DefaultMassCap           = 3.0
	DefaultUnsimplifyBatch   = 5
	DefaultSimplifyQuantum   = 20000
	DefaultMaxSteps          = 200000
	DefaultSeed              = uint64(42)
)

// =============================================================================
// Simulation
// =============================================================================

// Simulation holds every tunable of a layout run.
type Simulation struct {
	// IdealLength is the rest length of springs. Repulsion scales with its square.
	IdealLength float64 `toml:"ideal_length" yaml:"ideal_length" validate:"gt=0"`

	// ForceScale multiplies the integrated acceleration.
	ForceScale float64 `toml:"force_scale" yaml:"force_scale" validate:"gt=0"`

	// TimeStep is the initial dt. The convergence monitor halves it while annealing.
	TimeStep float64 `toml:"time_step" yaml:"time_step" validate:"gt=0"`

	// FrameTime scales velocity into displacement on each position update.
	FrameTime float64 `toml:"frame_time" yaml:"frame_time" validate:"gt=0"`

	// Quantum is the number of pair or edge evaluations before the solver yields.
	Quantum int `toml:"quantum" yaml:"quantum" validate:"gte=1"`

	// CheckInterval is the initial number of steps between convergence checks.
	CheckInterval int `toml:"check_interval" yaml:"check_interval" validate:"gte=1"`

	// CheckIntervalStep shortens the check interval after each anneal or un-simplify.
	CheckIntervalStep int `toml:"check_interval_step" yaml:"check_interval_step" validate:"gte=0"`

	// UnsimplifyDelay is the countdown after triggering un-simplification.
	UnsimplifyDelay int `toml:"unsimplify_delay" yaml:"unsimplify_delay" validate:"gte=1"`

	// AnnealDelay is the countdown after halving dt.
	AnnealDelay int `toml:"anneal_delay" yaml:"anneal_delay" validate:"gte=1"`

	// MinCheckInterval bounds how far CheckIntervalStep can shrink the interval.
	MinCheckInterval int `toml:"min_check_interval" yaml:"min_check_interval" validate:"gte=1"`

	// ConvergenceFactor times dt is the mean displacement below which the
	// layout counts as settled.
	ConvergenceFactor float64 `toml:"convergence_factor" yaml:"convergence_factor" validate:"gt=0"`

	// TimeStepFloor stops the simulation once a settled layout has dt below it.
	TimeStepFloor float64 `toml:"time_step_floor" yaml:"time_step_floor" validate:"gt=0"`

	// MassCap bounds the mass of an aggregate.
	MassCap float64 `toml:"mass_cap" yaml:"mass_cap" validate:"gte=1"`

	// UnsimplifyBatch is the number of aggregates dissolved per work quantum.
	UnsimplifyBatch int `toml:"unsimplify_batch" yaml:"unsimplify_batch" validate:"gte=1"`

	// SimplifyQuantum is the number of similarity tests before the simplifier yields.
	SimplifyQuantum int `toml:"simplify_quantum" yaml:"simplify_quantum" validate:"gte=1"`

	// MaxSteps bounds the number of simulation steps. Zero disables the bound.
	MaxSteps int `toml:"max_steps" yaml:"max_steps" validate:"gte=0"`

	// Simplify enables aggregation before the main loop.
	Simplify bool `toml:"simplify" yaml:"simplify"`

	// Arrangement is the initial placement: matrix, cube, square or sphere.
	Arrangement string `toml:"arrangement" yaml:"arrangement" validate:"omitempty,oneof=matrix cube square sphere"`

	// Seed drives jitter for coincident positions and the sphere arrangement.
	Seed uint64 `toml:"seed" yaml:"seed"`
}

// Default returns a Simulation with the stock tuning.
func Default() Simulation {
	return Simulation{
		IdealLength:       DefaultIdealLength,
		ForceScale:        DefaultForceScale,
		TimeStep:          DefaultTimeStep,
		FrameTime:         DefaultFrameTime,
		Quantum:           DefaultQuantum,
		CheckInterval:     DefaultCheckInterval,
		CheckIntervalStep: DefaultCheckIntervalStep,
		UnsimplifyDelay:   DefaultUnsimplifyDelay,
		AnnealDelay:       DefaultAnnealDelay,
		MinCheckInterval:  DefaultMinCheckInterval,
		ConvergenceFactor: DefaultConvergenceFactor,
		TimeStepFloor:     DefaultTimeStepFloor,
		MassCap:           DefaultMassCap,
		UnsimplifyBatch:   DefaultUnsimplifyBatch,
		SimplifyQuantum:   DefaultSimplifyQuantum,
		MaxSteps:          DefaultMaxSteps,
		Simplify:          true,
		Arrangement:       "matrix",
		Seed:              DefaultSeed,
	}
}

// IdealLength2 returns the squared ideal length.
func (s Simulation) IdealLength2() float64 { return s.IdealLength * s.IdealLength }

// Threshold returns the settled-layout displacement threshold for dt.
func (s Simulation) Threshold(dt float64) float64 { return s.ConvergenceFactor * dt }

// =============================================================================
// Validation
// =============================================================================

// validate is a singleton validator instance
var validate = validator.New()

// Validate checks field ranges and cross-field constraints.
func (s Simulation) Validate() error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	if s.MinCheckInterval > s.CheckInterval {
		return errors.New(errors.ErrCodeInvalidConfig,
			"min_check_interval (%d) exceeds check_interval (%d)", s.MinCheckInterval, s.CheckInterval)
	}
	if s.TimeStepFloor >= s.TimeStep {
		return errors.New(errors.ErrCodeInvalidConfig,
			"time_step_floor (%g) must be below time_step (%g)", s.TimeStepFloor, s.TimeStep)
	}
	return nil
}

func formatValidationError(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid simulation config")
	}

	// Report the first failure only.
	e := validationErrs[0]
	field, param := e.Field(), e.Param()
	switch e.Tag() {
	case "gt":
		return errors.New(errors.ErrCodeInvalidConfig, "%s: must be greater than %s", field, param)
	case "gte":
		return errors.New(errors.ErrCodeInvalidConfig, "%s: must be at least %s", field, param)
	case "oneof":
		return errors.New(errors.ErrCodeInvalidConfig, "%s: must be one of %s", field, param)
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "%s: validation failed (%s)", field, e.Tag())
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load reads a TOML (.toml) or YAML (.yaml, .yml) file over [Default] and
// validates the result. Unknown TOML keys are rejected.
func Load(path string) (Simulation, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing %s", path)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return cfg, errors.New(errors.ErrCodeInvalidConfig, "unknown keys in %s: %v", path, undecoded)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parsing %s", path)
		}
	default:
		return cfg, errors.New(errors.ErrCodeUnsupported, "config format %q (want .toml, .yaml or .yml)", ext)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
