// Package driver runs the outer simulation loop: it pulls per-iteration
// observables from a Source, feeds them through the convergence evaluator,
// applies the inner boundary temperature update with its lock cycles, and
// persists the resulting records.
package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/karthik11135/tardis/internal/config"
	"github.com/karthik11135/tardis/internal/convergence"
	"github.com/karthik11135/tardis/internal/logging"
	"github.com/karthik11135/tardis/internal/models"
	"github.com/karthik11135/tardis/internal/store"
)

// DefaultMaxIterations caps a run when the config does not stop early.
const DefaultMaxIterations = 20

// Source produces one iteration of observables per call. It returns io.EOF
// when no more iterations are available.
type Source interface {
	Next(ctx context.Context) (models.IterationObservables, error)
}

// Options configures a Loop beyond its required collaborators. The zero
// value is usable: no persistence, no tracing, default iteration cap.
type Options struct {
	// Store, when non-nil, receives the run and every iteration record.
	Store *store.RunStore

	// Logger receives operational output. Nil disables it.
	Logger *slog.Logger

	// Trace receives per-iteration JSONL events. Nil-safe.
	Trace *logging.TraceLogger

	// MaxIterations caps the run. Zero means DefaultMaxIterations.
	MaxIterations int
}

// Result is the outcome of a completed run.
type Result struct {
	Run     models.RunSummary
	Records []models.IterationRecord
	Final   convergence.State
}

// Loop drives one simulation run to acceptance, exhaustion, or abort.
type Loop struct {
	cfg    *config.ConvergenceConfig
	ev     convergence.Evaluator
	src    Source
	opts   Options
	logger *slog.Logger
}

// New builds a Loop. The evaluator is constructed from the config; a
// "custom" type without an implementation fails here, before any
// iteration runs.
func New(cfg *config.ConvergenceConfig, src Source, custom convergence.Evaluator, opts Options) (*Loop, error) {
	ev, err := convergence.New(cfg, custom)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &Loop{cfg: cfg, ev: ev, src: src, opts: opts, logger: logger}, nil
}

// Run executes the loop until the source is exhausted, the iteration cap
// is reached, convergence is accepted with stop_if_converged set, or the
// context is cancelled.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		Run: models.RunSummary{Status: models.StatusRunning, ConvergedAt: -1},
	}

	if l.opts.Store != nil {
		cfgJSON, err := json.Marshal(l.cfg)
		if err != nil {
			return nil, fmt.Errorf("marshal config snapshot: %w", err)
		}
		run, err := l.opts.Store.CreateRun(ctx, string(cfgJSON), 0)
		if err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		res.Run = run
	}

	var st convergence.State
	nextTInner := 0.0

	for i := 0; i < l.opts.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return l.finish(res, st, models.StatusAborted, err)
		}

		obs, err := l.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			ferr := fmt.Errorf("source at iteration %d: %w", i, err)
			return l.finish(res, st, models.StatusAborted, ferr)
		}

		var convergedNow bool
		st, convergedNow = l.ev.Update(st, obs)

		// The boundary temperature control signal is recomputed only
		// every lock_t_inner_cycles iterations and held frozen between.
		if i%l.cfg.LockTInnerCycles == 0 || nextTInner == 0 {
			nextTInner = convergence.NextTInner(st.TInner,
				obs.EmittedLuminosity, obs.RequestedLuminosity,
				l.cfg.TInnerUpdateExponent)
		}

		rec := models.IterationRecord{
			Index:          i,
			Observables:    obs,
			TRadEstimate:   st.TRad,
			WEstimate:      st.W,
			TInnerEstimate: st.TInner,
			NextTInner:     nextTInner,
			ConvergedNow:   convergedNow,
			HoldCount:      st.HoldCount,
		}
		res.Records = append(res.Records, rec)

		if st.Converged && res.Run.ConvergedAt < 0 {
			res.Run.ConvergedAt = i
		}

		l.logger.Debug("iteration evaluated",
			"iteration", i,
			"zones", obs.Zones(),
			"converged_now", convergedNow,
			"hold_count", st.HoldCount,
			"t_inner_estimate", st.TInner,
			"next_t_inner", nextTInner,
			"residual", obs.ResidualLuminosity())
		l.opts.Trace.Log(logging.TraceEvent{
			Event:      "iteration",
			RunID:      res.Run.ID,
			Iteration:  i,
			Converged:  convergedNow,
			HoldCount:  st.HoldCount,
			TInner:     obs.TInner,
			NextTInner: nextTInner,
			Residual:   obs.ResidualLuminosity(),
			TRad:       st.TRad,
			W:          st.W,
		})

		if l.opts.Store != nil {
			if err := l.opts.Store.AppendIteration(ctx, res.Run.ID, rec); err != nil {
				return l.finish(res, st, models.StatusAborted, fmt.Errorf("persist iteration %d: %w", i, err))
			}
		}

		if st.Converged && l.cfg.StopIfConverged {
			break
		}
	}

	status := models.StatusExhausted
	if st.Converged {
		status = models.StatusConverged
	}
	return l.finish(res, st, status, nil)
}

// finish records the terminal status in the result and, when persistence
// is enabled, in the store. The original error, if any, wins over a
// persistence failure.
func (l *Loop) finish(res *Result, st convergence.State, status models.RunStatus, cause error) (*Result, error) {
	res.Final = st
	res.Run.Status = status
	res.Run.Iterations = len(res.Records)
	if n := len(res.Records); n > 0 {
		res.Run.Zones = res.Records[n-1].Observables.Zones()
	}

	l.logger.Info("run finished",
		"run_id", res.Run.ID,
		"status", string(status),
		"iterations", res.Run.Iterations,
		"converged_at", res.Run.ConvergedAt)

	if l.opts.Store != nil && res.Run.ID != "" {
		// Use a fresh context so an aborted run still gets its status row.
		if err := l.opts.Store.FinishRun(context.Background(), res.Run.ID, status, res.Run.ConvergedAt); err != nil {
			if cause == nil {
				cause = fmt.Errorf("finish run: %w", err)
			} else {
				l.logger.Error("failed to record run status", "error", err)
			}
		}
	}

	return res, cause
}
