// Package models defines the data types shared across the convergence
// subsystem: per-iteration observables emitted by the transport kernel
// and the records the driver accumulates from them.
package models

import "time"

// IterationObservables is one iteration's snapshot of the plasma state as
// reported by the transport kernel. Per-zone slices are ordered from the
// innermost shell outward and must all have the same length for a given run.
type IterationObservables struct {
	// TRad holds the per-zone radiative temperatures [K].
	TRad []float64 `json:"t_rad"`

	// W holds the per-zone dilution factors (dimensionless).
	W []float64 `json:"w"`

	// TInner is the temperature at the inner radiative boundary [K].
	TInner float64 `json:"t_inner"`

	// VInnerBoundary is the inner boundary velocity in cm/s. Zero when the
	// boundary solver is not active.
	VInnerBoundary float64 `json:"v_inner_boundary,omitempty"`

	// EmittedLuminosity is the luminosity escaping the outer boundary [erg/s].
	EmittedLuminosity float64 `json:"emitted_luminosity"`

	// AbsorbedLuminosity is the luminosity reabsorbed through the inner
	// boundary [erg/s].
	AbsorbedLuminosity float64 `json:"absorbed_luminosity"`

	// RequestedLuminosity is the target luminosity the inner boundary is
	// being driven toward [erg/s].
	RequestedLuminosity float64 `json:"requested_luminosity"`
}

// Zones returns the number of spatial zones in the snapshot.
func (o IterationObservables) Zones() int {
	return len(o.TRad)
}

// ResidualLuminosity returns the fractional deviation of emitted from
// requested luminosity, (emitted - requested) / requested.
// Returns 0 when no luminosity was requested.
func (o IterationObservables) ResidualLuminosity() float64 {
	if o.RequestedLuminosity == 0 {
		return 0
	}
	return (o.EmittedLuminosity - o.RequestedLuminosity) / o.RequestedLuminosity
}

// IterationRecord is the driver's account of a single completed iteration:
// the raw observables, the smoothed estimates after the convergence update,
// and the acceptance bookkeeping for that step.
type IterationRecord struct {
	// Index is the zero-based iteration number within the run.
	Index int `json:"index"`

	// Observables are the raw inputs for this iteration.
	Observables IterationObservables `json:"observables"`

	// TRadEstimate and WEstimate are the damped per-zone estimates after
	// this iteration's update.
	TRadEstimate []float64 `json:"t_rad_estimate"`
	WEstimate    []float64 `json:"w_estimate"`

	// TInnerEstimate is the damped inner boundary temperature estimate.
	TInnerEstimate float64 `json:"t_inner_estimate"`

	// NextTInner is the inner boundary temperature the driver computed for
	// the following iteration (frozen during lock cycles).
	NextTInner float64 `json:"next_t_inner"`

	// ConvergedNow reports whether this iteration satisfied all convergence
	// criteria; HoldCount is the consecutive-satisfying count afterward.
	ConvergedNow bool `json:"converged_now"`
	HoldCount    int  `json:"hold_count"`
}

// RunStatus describes how a driver run ended.
type RunStatus string

const (
	// StatusRunning marks a run that has not finished yet.
	StatusRunning RunStatus = "running"
	// StatusConverged marks a run accepted after hold_iterations
	// consecutive satisfying iterations.
	StatusConverged RunStatus = "converged"
	// StatusExhausted marks a run that hit the iteration cap without
	// being accepted.
	StatusExhausted RunStatus = "exhausted"
	// StatusAborted marks a run cancelled before completion.
	StatusAborted RunStatus = "aborted"
)

// RunSummary is the stored metadata for a driver run.
type RunSummary struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Status      RunStatus `json:"status"`
	Iterations  int       `json:"iterations"`
	ConvergedAt int       `json:"converged_at"` // -1 if never accepted
	Zones       int       `json:"zones"`
	ConfigJSON  string    `json:"config,omitempty"`
}
