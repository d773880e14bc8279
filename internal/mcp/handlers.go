package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/karthik11135/tardis/internal/models"
)

// registerTools registers the run inspection tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tardis_runs",
		Description: "List convergence runs, newest first, optionally filtered by status",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tardis_run",
		Description: "Get a single run's summary and its convergence configuration",
	}, s.handleRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "tardis_trace",
		Description: "Get the per-iteration convergence trace of a run",
	}, s.handleTrace)
}

func runItem(run models.RunSummary) RunItem {
	item := RunItem{
		ID:          run.ID,
		StartedAt:   run.StartedAt.Format(time.RFC3339),
		Status:      string(run.Status),
		Iterations:  run.Iterations,
		ConvergedAt: run.ConvergedAt,
		Zones:       run.Zones,
	}
	if !run.FinishedAt.IsZero() {
		item.FinishedAt = run.FinishedAt.Format(time.RFC3339)
	}
	return item
}

func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.audit.Log("tardis_runs", start, retErr, map[string]string{
			"status": args.Status,
		})
	}()

	runs, err := s.store.ListRuns(ctx, args.Limit)
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}

	out := RunsOutput{Runs: []RunItem{}}
	for _, run := range runs {
		if args.Status != "" && string(run.Status) != args.Status {
			continue
		}
		out.Runs = append(out.Runs, runItem(run))
	}
	out.Count = len(out.Runs)
	return nil, out, nil
}

func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (_ *sdk.CallToolResult, _ RunOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.audit.Log("tardis_run", start, retErr, map[string]string{"id": args.ID})
	}()

	if args.ID == "" {
		return nil, RunOutput{}, fmt.Errorf("run id is required")
	}

	run, err := s.store.GetRun(ctx, args.ID)
	if err != nil {
		return nil, RunOutput{}, err
	}

	return nil, RunOutput{Run: runItem(run), Config: run.ConfigJSON}, nil
}

func (s *Server) handleTrace(ctx context.Context, req *sdk.CallToolRequest, args TraceInput) (_ *sdk.CallToolResult, _ TraceOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.audit.Log("tardis_trace", start, retErr, map[string]string{"id": args.ID})
	}()

	if args.ID == "" {
		return nil, TraceOutput{}, fmt.Errorf("run id is required")
	}

	// Verify the run exists so a bad ID reads as not-found, not empty.
	if _, err := s.store.GetRun(ctx, args.ID); err != nil {
		return nil, TraceOutput{}, err
	}

	recs, err := s.store.Iterations(ctx, args.ID)
	if err != nil {
		return nil, TraceOutput{}, fmt.Errorf("failed to load iterations: %w", err)
	}

	out := TraceOutput{Iterations: []IterationItem{}}
	for _, rec := range recs {
		item := IterationItem{
			Index:      rec.Index,
			Converged:  rec.ConvergedNow,
			HoldCount:  rec.HoldCount,
			TInner:     rec.Observables.TInner,
			NextTInner: rec.NextTInner,
			Residual:   rec.Observables.ResidualLuminosity(),
		}
		if args.Zones {
			item.TRad = rec.Observables.TRad
			item.W = rec.Observables.W
			item.TRadEstimate = rec.TRadEstimate
			item.WEstimate = rec.WEstimate
		}
		out.Iterations = append(out.Iterations, item)
	}
	out.Count = len(out.Iterations)
	return nil, out, nil
}
