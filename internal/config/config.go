// Package config loads and validates the convergence strategy configuration.
// The schema is closed: unknown keys are rejected at decode time, and all
// numeric constraints are checked before a config is handed to the evaluator.
//
// Load resolves layers in order: built-in defaults, then the optional YAML
// file, then TARDIS_* environment variables. Per-quantity blocks inherit
// the top-level threshold (and an explicitly set top-level damping
// constant) unless they override it themselves; a t_rad or w block that is
// written out must name its threshold.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// StrategyType selects the convergence strategy implementation.
type StrategyType string

const (
	// StrategyDamped is the built-in exponentially damped strategy.
	StrategyDamped StrategyType = "damped"
	// StrategyCustom selects a caller-supplied strategy. There is no
	// built-in behavior behind it.
	StrategyCustom StrategyType = "custom"
)

// Defaults applied where the file leaves a field unset.
const (
	DefaultFraction             = 0.8
	DefaultDampingConstant      = 1.0
	DefaultQuantityDamping      = 0.5
	DefaultThreshold            = 0.05
	DefaultHoldIterations       = 3
	DefaultLockTInnerCycles     = 1
	DefaultTInnerUpdateExponent = -0.5
)

// ValidationError reports a schema violation in the configuration.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Quantity holds the resolved convergence parameters for one tracked
// quantity.
type Quantity struct {
	// DampingConstant blends raw values into the running estimate:
	// new = d*raw + (1-d)*previous.
	DampingConstant float64 `json:"damping_constant"`

	// Threshold is the fractional change below which the quantity (or a
	// zone of it) counts as converged.
	Threshold float64 `json:"threshold"`
}

// ConvergenceConfig is the validated, immutable convergence configuration.
// Construct it with Parse, LoadFile, or Default; do not mutate afterward.
type ConvergenceConfig struct {
	Type                 StrategyType `json:"type"`
	Fraction             float64      `json:"fraction"`
	HoldIterations       int          `json:"hold_iterations"`
	StopIfConverged      bool         `json:"stop_if_converged"`
	LockTInnerCycles     int          `json:"lock_t_inner_cycles"`
	TInnerUpdateExponent float64      `json:"t_inner_update_exponent"`

	TRad   Quantity `json:"t_rad"`
	W      Quantity `json:"w"`
	TInner Quantity `json:"t_inner"`

	// VInnerBoundary is set only when the file carries a boundary-velocity
	// block.
	VInnerBoundary *Quantity `json:"v_inner_boundary,omitempty"`

	// ResidualThreshold, when non-nil, enables the residual-luminosity
	// convergence check.
	ResidualThreshold *float64 `json:"residual_threshold,omitempty"`
}

// rawQuantity mirrors a per-quantity YAML block before resolution.
type rawQuantity struct {
	DampingConstant *float64 `yaml:"damping_constant"`
	Threshold       *float64 `yaml:"threshold"`
}

// rawConfig mirrors the YAML document. Integer-valued fields are decoded as
// floats because the schema expresses them as multiples of 1.0.
type rawConfig struct {
	Type                 *string      `yaml:"type"`
	Fraction             *float64     `yaml:"fraction"`
	DampingConstant      *float64     `yaml:"damping_constant"`
	Threshold            *float64     `yaml:"threshold"`
	HoldIterations       *float64     `yaml:"hold_iterations"`
	StopIfConverged      *bool        `yaml:"stop_if_converged"`
	LockTInnerCycles     *float64     `yaml:"lock_t_inner_cycles"`
	TInnerUpdateExponent *float64     `yaml:"t_inner_update_exponent"`
	TRad                 *rawQuantity `yaml:"t_rad"`
	W                    *rawQuantity `yaml:"w"`
	TInner               *rawQuantity `yaml:"t_inner"`
	VInnerBoundary       *rawQuantity `yaml:"v_inner_boundary"`
	ResidualLuminosity   *rawQuantity `yaml:"residual_luminosity"`
}

// Default returns the configuration used when no file is supplied. The
// per-zone quantities carry the schema-wide default threshold.
func Default() *ConvergenceConfig {
	return &ConvergenceConfig{
		Type:                 StrategyDamped,
		Fraction:             DefaultFraction,
		HoldIterations:       DefaultHoldIterations,
		StopIfConverged:      false,
		LockTInnerCycles:     DefaultLockTInnerCycles,
		TInnerUpdateExponent: DefaultTInnerUpdateExponent,
		TRad:                 Quantity{DampingConstant: DefaultQuantityDamping, Threshold: DefaultThreshold},
		W:                    Quantity{DampingConstant: DefaultQuantityDamping, Threshold: DefaultThreshold},
		TInner:               Quantity{DampingConstant: DefaultQuantityDamping, Threshold: DefaultThreshold},
	}
}

// Load resolves the effective configuration for a run.
// Order: defaults -> optional file at path -> TARDIS_* environment
// variables. An empty path skips the file layer.
func Load(path string) (*ConvergenceConfig, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		cfg, err = parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads, parses, and validates a convergence configuration from
// a YAML file. Unlike Load it checks the file alone, without environment
// overrides.
func LoadFile(path string) (*ConvergenceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, resolves, and validates a convergence configuration.
// Unknown keys anywhere in the document are rejected.
func Parse(data []byte) (*ConvergenceConfig, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse decodes and resolves a document without validating it, so that
// Load can layer environment overrides in before the final check.
func parse(data []byte) (*ConvergenceConfig, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw rawConfig
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Field: "(document)", Reason: "empty configuration"}
		}
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return resolve(&raw)
}

// applyEnvOverrides applies environment variable overrides to the config.
// Values that fail to parse are ignored; out-of-range values are caught by
// the validation that follows.
func applyEnvOverrides(cfg *ConvergenceConfig) {
	if v := os.Getenv("TARDIS_STOP_IF_CONVERGED"); v != "" {
		cfg.StopIfConverged = v == "true" || v == "1"
	}

	if v := os.Getenv("TARDIS_HOLD_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HoldIterations = n
		}
	}

	if v := os.Getenv("TARDIS_LOCK_T_INNER_CYCLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LockTInnerCycles = n
		}
	}

	if v := os.Getenv("TARDIS_FRACTION"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Fraction = f
		}
	}
}

// resolve folds defaults and per-quantity overrides into a flat config.
func resolve(raw *rawConfig) (*ConvergenceConfig, error) {
	cfg := &ConvergenceConfig{
		Type:                 StrategyDamped,
		Fraction:             floatOr(raw.Fraction, DefaultFraction),
		StopIfConverged:      boolOr(raw.StopIfConverged, false),
		TInnerUpdateExponent: floatOr(raw.TInnerUpdateExponent, DefaultTInnerUpdateExponent),
	}

	if raw.Type != nil {
		cfg.Type = StrategyType(*raw.Type)
	}

	var err error
	if cfg.HoldIterations, err = intField("hold_iterations", raw.HoldIterations, DefaultHoldIterations); err != nil {
		return nil, err
	}
	if cfg.LockTInnerCycles, err = intField("lock_t_inner_cycles", raw.LockTInnerCycles, DefaultLockTInnerCycles); err != nil {
		return nil, err
	}

	// The top-level damping constant, when set explicitly, replaces the
	// per-quantity default for blocks that don't override it themselves.
	quantityDamping := DefaultQuantityDamping
	if raw.DampingConstant != nil {
		quantityDamping = *raw.DampingConstant
	}
	topThreshold := floatOr(raw.Threshold, DefaultThreshold)

	// A t_rad or w block, when written, must name its threshold.
	if cfg.TRad, err = requireQuantity("t_rad", raw.TRad, quantityDamping, topThreshold); err != nil {
		return nil, err
	}
	if cfg.W, err = requireQuantity("w", raw.W, quantityDamping, topThreshold); err != nil {
		return nil, err
	}

	cfg.TInner = resolveQuantity(raw.TInner, quantityDamping, topThreshold)
	if raw.VInnerBoundary != nil {
		q := resolveQuantity(raw.VInnerBoundary, quantityDamping, topThreshold)
		cfg.VInnerBoundary = &q
	}
	if raw.ResidualLuminosity != nil {
		if raw.ResidualLuminosity.Threshold == nil {
			return nil, &ValidationError{Field: "residual_luminosity.threshold", Reason: "required when the block is present"}
		}
		t := *raw.ResidualLuminosity.Threshold
		cfg.ResidualThreshold = &t
	}

	return cfg, nil
}

// requireQuantity resolves a block whose threshold must be explicit.
// A missing block inherits the top-level threshold so that a minimal
// config still parses; a present block without a threshold is an error.
func requireQuantity(name string, raw *rawQuantity, defaultDamping, defaultThreshold float64) (Quantity, error) {
	if raw == nil {
		return Quantity{DampingConstant: defaultDamping, Threshold: defaultThreshold}, nil
	}
	if raw.Threshold == nil {
		return Quantity{}, &ValidationError{Field: name + ".threshold", Reason: "must be set explicitly"}
	}
	return Quantity{
		DampingConstant: floatOr(raw.DampingConstant, defaultDamping),
		Threshold:       *raw.Threshold,
	}, nil
}

func resolveQuantity(raw *rawQuantity, defaultDamping, defaultThreshold float64) Quantity {
	if raw == nil {
		return Quantity{DampingConstant: defaultDamping, Threshold: defaultThreshold}
	}
	return Quantity{
		DampingConstant: floatOr(raw.DampingConstant, defaultDamping),
		Threshold:       floatOr(raw.Threshold, defaultThreshold),
	}
}

// intField converts a float-expressed integer field, rejecting fractional
// values like hold_iterations: 2.5.
func intField(name string, v *float64, def int) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v != math.Trunc(*v) {
		return 0, &ValidationError{Field: name, Reason: fmt.Sprintf("must be an integer, got %v", *v)}
	}
	return int(*v), nil
}

// Validate checks all numeric constraints. It is called by Parse; callers
// constructing a ConvergenceConfig directly should call it themselves.
func (c *ConvergenceConfig) Validate() error {
	if c.Type != StrategyDamped && c.Type != StrategyCustom {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("must be %q or %q, got %q", StrategyDamped, StrategyCustom, c.Type)}
	}
	if c.Fraction < 0 || c.Fraction > 1 {
		return &ValidationError{Field: "fraction", Reason: fmt.Sprintf("must be in [0, 1], got %v", c.Fraction)}
	}
	if c.HoldIterations < 1 {
		return &ValidationError{Field: "hold_iterations", Reason: fmt.Sprintf("must be a positive integer, got %d", c.HoldIterations)}
	}
	if c.LockTInnerCycles < 1 {
		return &ValidationError{Field: "lock_t_inner_cycles", Reason: fmt.Sprintf("must be a positive integer, got %d", c.LockTInnerCycles)}
	}

	quantities := []struct {
		name string
		q    *Quantity
	}{
		{"t_rad", &c.TRad},
		{"w", &c.W},
		{"t_inner", &c.TInner},
	}
	if c.VInnerBoundary != nil {
		quantities = append(quantities, struct {
			name string
			q    *Quantity
		}{"v_inner_boundary", c.VInnerBoundary})
	}
	for _, entry := range quantities {
		if entry.q.DampingConstant < 0 {
			return &ValidationError{Field: entry.name + ".damping_constant", Reason: fmt.Sprintf("must be non-negative, got %v", entry.q.DampingConstant)}
		}
		if entry.q.Threshold < 0 {
			return &ValidationError{Field: entry.name + ".threshold", Reason: fmt.Sprintf("must be non-negative, got %v", entry.q.Threshold)}
		}
	}
	if c.ResidualThreshold != nil && *c.ResidualThreshold < 0 {
		return &ValidationError{Field: "residual_luminosity.threshold", Reason: fmt.Sprintf("must be non-negative, got %v", *c.ResidualThreshold)}
	}

	return nil
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
