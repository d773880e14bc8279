// Package convergence implements the iteration-acceptance policy for the
// simulation loop: damped estimate updates, per-zone threshold checks, and
// the consecutive-iteration hold counter that gates final acceptance.
package convergence

import (
	"errors"
	"fmt"
	"math"

	"github.com/karthik11135/tardis/internal/config"
	"github.com/karthik11135/tardis/internal/models"
)

// ErrUnimplementedStrategy is returned when a "custom" strategy type is
// selected without a caller-supplied implementation. There is no silent
// fallback to the damped strategy.
var ErrUnimplementedStrategy = errors.New("convergence: custom strategy selected without an implementation")

// State is the running convergence state. It is owned by the driving loop
// and updated once per iteration; the evaluator never mutates it in place.
type State struct {
	// Iteration counts completed updates. Zero means no observables have
	// been seen yet.
	Iteration int `json:"iteration"`

	// Damped estimates of each tracked quantity, carried between
	// iterations.
	TRad   []float64 `json:"t_rad"`
	W      []float64 `json:"w"`
	TInner float64   `json:"t_inner"`

	VInnerBoundary float64 `json:"v_inner_boundary,omitempty"`

	// HoldCount is the number of consecutive iterations that satisfied
	// every convergence check.
	HoldCount int `json:"hold_count"`

	// Converged latches true once HoldCount reaches the configured hold
	// count, and stays true for the remainder of the run.
	Converged bool `json:"converged"`
}

// Evaluator decides, once per iteration, whether the simulation has
// stabilized. Update returns the successor state and whether this single
// iteration satisfied every convergence check.
type Evaluator interface {
	Update(st State, obs models.IterationObservables) (State, bool)
}

// New constructs the evaluator selected by the configuration. For the
// "custom" type the caller must supply the implementation; passing nil
// yields ErrUnimplementedStrategy.
func New(cfg *config.ConvergenceConfig, custom Evaluator) (Evaluator, error) {
	switch cfg.Type {
	case config.StrategyDamped:
		return &Damped{cfg: cfg}, nil
	case config.StrategyCustom:
		if custom == nil {
			return nil, ErrUnimplementedStrategy
		}
		return custom, nil
	default:
		return nil, &config.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown strategy type %q", cfg.Type)}
	}
}

// Damped is the built-in strategy: exponential smoothing of each quantity
// followed by fractional-change threshold checks.
type Damped struct {
	cfg *config.ConvergenceConfig
}

// Damp blends a raw value into the previous estimate. With d=1 the raw
// value is adopted outright; with d=0 the previous estimate is kept.
func Damp(d, raw, prev float64) float64 {
	return d*raw + (1-d)*prev
}

// FractionalChange returns |next-prev| / |prev|, and false when prev is
// zero and the ratio is undefined.
func FractionalChange(next, prev float64) (float64, bool) {
	if prev == 0 {
		return 0, false
	}
	return math.Abs(next-prev) / math.Abs(prev), true
}

// Update applies one iteration of observables. The first call seeds the
// estimates from the raw values and never counts as converged; later calls
// damp each estimate toward the raw value and run the threshold checks.
func (s *Damped) Update(st State, obs models.IterationObservables) (State, bool) {
	next := State{
		Iteration: st.Iteration + 1,
		HoldCount: st.HoldCount,
		Converged: st.Converged,
		TRad:      make([]float64, obs.Zones()),
		W:         make([]float64, obs.Zones()),
	}

	// Seed on the first iteration, or reseed when the spatial grid was
	// rebuilt and the zone count no longer matches the carried estimates.
	if st.Iteration == 0 || len(st.TRad) != obs.Zones() || len(st.W) != obs.Zones() {
		copy(next.TRad, obs.TRad)
		copy(next.W, obs.W)
		next.TInner = obs.TInner
		next.VInnerBoundary = obs.VInnerBoundary
		next.HoldCount = 0
		return next, false
	}

	ok := true

	if !s.dampZones(st.TRad, obs.TRad, next.TRad, s.cfg.TRad) {
		ok = false
	}
	if !s.dampZones(st.W, obs.W, next.W, s.cfg.W) {
		ok = false
	}

	next.TInner = Damp(s.cfg.TInner.DampingConstant, obs.TInner, st.TInner)
	if !scalarConverged(next.TInner, st.TInner, s.cfg.TInner.Threshold) {
		ok = false
	}

	if s.cfg.VInnerBoundary != nil {
		q := s.cfg.VInnerBoundary
		next.VInnerBoundary = Damp(q.DampingConstant, obs.VInnerBoundary, st.VInnerBoundary)
		if !scalarConverged(next.VInnerBoundary, st.VInnerBoundary, q.Threshold) {
			ok = false
		}
	} else {
		next.VInnerBoundary = obs.VInnerBoundary
	}

	if s.cfg.ResidualThreshold != nil {
		if obs.RequestedLuminosity == 0 {
			ok = false
		} else if math.Abs(obs.ResidualLuminosity()) > *s.cfg.ResidualThreshold {
			ok = false
		}
	}

	if ok {
		next.HoldCount = st.HoldCount + 1
	} else {
		next.HoldCount = 0
	}
	if next.HoldCount >= s.cfg.HoldIterations {
		next.Converged = true
	}

	return next, ok
}

// dampZones fills dst with damped estimates and reports whether the
// proportion of locally converged zones meets the configured fraction.
// A zone whose previous estimate is zero cannot be evaluated and counts
// as not converged.
func (s *Damped) dampZones(prev, raw, dst []float64, q config.Quantity) bool {
	if len(raw) == 0 {
		return true
	}
	converged := 0
	for i := range raw {
		dst[i] = Damp(q.DampingConstant, raw[i], prev[i])
		frac, defined := FractionalChange(dst[i], prev[i])
		// An exact repeat always counts, even under a zero threshold.
		if defined && (frac == 0 || frac < q.Threshold) {
			converged++
		}
	}
	return float64(converged)/float64(len(raw)) >= s.cfg.Fraction
}

func scalarConverged(next, prev, threshold float64) bool {
	frac, defined := FractionalChange(next, prev)
	return defined && (frac == 0 || frac < threshold)
}

// Func adapts a plain function to the Evaluator interface, for callers
// supplying a custom strategy.
type Func func(st State, obs models.IterationObservables) (State, bool)

func (f Func) Update(st State, obs models.IterationObservables) (State, bool) {
	return f(st, obs)
}

// NextTInner computes the inner boundary temperature for the next
// iteration from the luminosity mismatch:
//
//	t_inner' = t_inner * (emitted/requested)^exponent
//
// With the default exponent of -0.5 an over-luminous iteration lowers the
// boundary temperature. Non-positive luminosities leave the temperature
// unchanged.
func NextTInner(tInner, emitted, requested, exponent float64) float64 {
	if emitted <= 0 || requested <= 0 {
		return tInner
	}
	return tInner * math.Pow(emitted/requested, exponent)
}
