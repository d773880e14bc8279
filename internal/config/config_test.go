package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Type != StrategyDamped {
		t.Errorf("expected type 'damped', got '%s'", cfg.Type)
	}
	if cfg.Fraction != 0.8 {
		t.Errorf("expected fraction 0.8, got %f", cfg.Fraction)
	}
	if cfg.HoldIterations != 3 {
		t.Errorf("expected hold_iterations 3, got %d", cfg.HoldIterations)
	}
	if cfg.StopIfConverged {
		t.Error("expected stop_if_converged to be false by default")
	}
	if cfg.LockTInnerCycles != 1 {
		t.Errorf("expected lock_t_inner_cycles 1, got %d", cfg.LockTInnerCycles)
	}
	if cfg.TInnerUpdateExponent != -0.5 {
		t.Errorf("expected t_inner_update_exponent -0.5, got %f", cfg.TInnerUpdateExponent)
	}
	if cfg.TRad.DampingConstant != 0.5 || cfg.TRad.Threshold != 0.05 {
		t.Errorf("unexpected t_rad defaults: %+v", cfg.TRad)
	}
	if cfg.VInnerBoundary != nil {
		t.Error("expected no v_inner_boundary block by default")
	}
	if cfg.ResidualThreshold != nil {
		t.Error("expected residual check disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestParseFull(t *testing.T) {
	data := `
type: damped
fraction: 0.9
damping_constant: 1.0
threshold: 0.02
hold_iterations: 5
stop_if_converged: true
lock_t_inner_cycles: 2
t_inner_update_exponent: -0.25
t_rad:
  damping_constant: 0.3
  threshold: 0.01
w:
  threshold: 0.04
t_inner:
  damping_constant: 0.7
v_inner_boundary:
  threshold: 0.03
residual_luminosity:
  threshold: 0.1
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Fraction != 0.9 {
		t.Errorf("expected fraction 0.9, got %f", cfg.Fraction)
	}
	if cfg.HoldIterations != 5 {
		t.Errorf("expected hold_iterations 5, got %d", cfg.HoldIterations)
	}
	if !cfg.StopIfConverged {
		t.Error("expected stop_if_converged true")
	}
	if cfg.LockTInnerCycles != 2 {
		t.Errorf("expected lock_t_inner_cycles 2, got %d", cfg.LockTInnerCycles)
	}
	if cfg.TInnerUpdateExponent != -0.25 {
		t.Errorf("expected exponent -0.25, got %f", cfg.TInnerUpdateExponent)
	}
	if cfg.TRad.DampingConstant != 0.3 || cfg.TRad.Threshold != 0.01 {
		t.Errorf("unexpected t_rad: %+v", cfg.TRad)
	}
	// w inherits the explicit top-level damping_constant.
	if cfg.W.DampingConstant != 1.0 || cfg.W.Threshold != 0.04 {
		t.Errorf("unexpected w: %+v", cfg.W)
	}
	// t_inner inherits the top-level threshold.
	if cfg.TInner.DampingConstant != 0.7 || cfg.TInner.Threshold != 0.02 {
		t.Errorf("unexpected t_inner: %+v", cfg.TInner)
	}
	if cfg.VInnerBoundary == nil || cfg.VInnerBoundary.Threshold != 0.03 {
		t.Errorf("unexpected v_inner_boundary: %+v", cfg.VInnerBoundary)
	}
	if cfg.ResidualThreshold == nil || *cfg.ResidualThreshold != 0.1 {
		t.Errorf("unexpected residual threshold: %v", cfg.ResidualThreshold)
	}
}

func TestParseMinimal(t *testing.T) {
	cfg, err := Parse([]byte("type: damped\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.TRad.Threshold != DefaultThreshold {
		t.Errorf("expected default t_rad threshold, got %f", cfg.TRad.Threshold)
	}
	if cfg.W.DampingConstant != DefaultQuantityDamping {
		t.Errorf("expected default w damping, got %f", cfg.W.DampingConstant)
	}
}

func TestAbsentQuantityBlocksInheritTopThreshold(t *testing.T) {
	cfg, err := Parse([]byte("type: damped\nthreshold: 0.02\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.TRad.Threshold != 0.02 {
		t.Errorf("expected t_rad to inherit top-level threshold 0.02, got %f", cfg.TRad.Threshold)
	}
	if cfg.W.Threshold != 0.02 {
		t.Errorf("expected w to inherit top-level threshold 0.02, got %f", cfg.W.Threshold)
	}
	if cfg.TInner.Threshold != 0.02 {
		t.Errorf("expected t_inner to inherit top-level threshold 0.02, got %f", cfg.TInner.Threshold)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	cases := []string{
		"type: damped\nbogus_key: 1\n",
		"type: damped\nt_rad:\n  threshold: 0.05\n  extra: true\n",
	}
	for _, data := range cases {
		if _, err := Parse([]byte(data)); err == nil {
			t.Errorf("expected unknown-key error for:\n%s", data)
		}
	}
}

func TestParseIntegerFields(t *testing.T) {
	// Integer fields may be written as whole-valued floats.
	cfg, err := Parse([]byte("type: damped\nhold_iterations: 3.0\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.HoldIterations != 3 {
		t.Errorf("expected hold_iterations 3, got %d", cfg.HoldIterations)
	}

	_, err = Parse([]byte("type: damped\nhold_iterations: 2.5\n"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for fractional hold_iterations, got %v", err)
	}
	if verr.Field != "hold_iterations" {
		t.Errorf("expected field 'hold_iterations', got '%s'", verr.Field)
	}
}

func TestParseRequiresExplicitThresholds(t *testing.T) {
	_, err := Parse([]byte("type: damped\nt_rad:\n  damping_constant: 0.5\n"))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "t_rad.threshold" {
		t.Errorf("expected field 't_rad.threshold', got '%s'", verr.Field)
	}

	_, err = Parse([]byte("type: damped\nw: {}\n"))
	if !errors.As(err, &verr) || verr.Field != "w.threshold" {
		t.Errorf("expected w.threshold error, got %v", err)
	}

	_, err = Parse([]byte("type: damped\nresidual_luminosity: {}\n"))
	if !errors.As(err, &verr) || verr.Field != "residual_luminosity.threshold" {
		t.Errorf("expected residual_luminosity.threshold error, got %v", err)
	}
}

func TestValidateRanges(t *testing.T) {
	cases := []struct {
		name  string
		yaml  string
		field string
	}{
		{"bad type", "type: linear\n", "type"},
		{"fraction above one", "type: damped\nfraction: 1.5\n", "fraction"},
		{"negative fraction", "type: damped\nfraction: -0.1\n", "fraction"},
		{"zero hold", "type: damped\nhold_iterations: 0\n", "hold_iterations"},
		{"zero lock", "type: damped\nlock_t_inner_cycles: 0\n", "lock_t_inner_cycles"},
		{"negative threshold", "type: damped\nt_rad:\n  threshold: -0.01\n", "t_rad.threshold"},
		{"negative damping", "type: damped\nt_inner:\n  damping_constant: -1\n", "t_inner.damping_constant"},
		{"negative residual", "type: damped\nresidual_luminosity:\n  threshold: -0.5\n", "residual_luminosity.threshold"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tc.field {
				t.Errorf("expected field '%s', got '%s'", tc.field, verr.Field)
			}
		})
	}
}

func TestParseCustomType(t *testing.T) {
	cfg, err := Parse([]byte("type: custom\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Type != StrategyCustom {
		t.Errorf("expected type 'custom', got '%s'", cfg.Type)
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse([]byte(""))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for empty document, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "convergence.yaml")
	content := "type: damped\nt_rad:\n  threshold: 0.01\nw:\n  threshold: 0.01\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.TRad.Threshold != 0.01 {
		t.Errorf("expected t_rad threshold 0.01, got %f", cfg.TRad.Threshold)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TARDIS_STOP_IF_CONVERGED", "true")
	t.Setenv("TARDIS_HOLD_ITERATIONS", "7")
	t.Setenv("TARDIS_LOCK_T_INNER_CYCLES", "4")
	t.Setenv("TARDIS_FRACTION", "0.95")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.StopIfConverged {
		t.Error("expected stop_if_converged overridden to true")
	}
	if cfg.HoldIterations != 7 {
		t.Errorf("expected hold_iterations 7, got %d", cfg.HoldIterations)
	}
	if cfg.LockTInnerCycles != 4 {
		t.Errorf("expected lock_t_inner_cycles 4, got %d", cfg.LockTInnerCycles)
	}
	if cfg.Fraction != 0.95 {
		t.Errorf("expected fraction 0.95, got %f", cfg.Fraction)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "convergence.yaml")
	content := "type: damped\nhold_iterations: 2\nfraction: 0.6\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TARDIS_HOLD_ITERATIONS", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// Environment wins over the file; untouched fields keep file values.
	if cfg.HoldIterations != 5 {
		t.Errorf("expected hold_iterations 5 from environment, got %d", cfg.HoldIterations)
	}
	if cfg.Fraction != 0.6 {
		t.Errorf("expected fraction 0.6 from file, got %f", cfg.Fraction)
	}
}

func TestLoadEnvOverridesValidated(t *testing.T) {
	t.Setenv("TARDIS_FRACTION", "1.5")

	_, err := Load("")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for out-of-range env fraction, got %v", err)
	}
	if verr.Field != "fraction" {
		t.Errorf("expected field 'fraction', got '%s'", verr.Field)
	}
}

func TestLoadEnvOverridesIgnoreUnparsable(t *testing.T) {
	t.Setenv("TARDIS_HOLD_ITERATIONS", "soon")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HoldIterations != DefaultHoldIterations {
		t.Errorf("expected default hold_iterations %d, got %d", DefaultHoldIterations, cfg.HoldIterations)
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("unexpected error: %v", err)
	}
}
