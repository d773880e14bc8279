package mcp

// RunsInput defines the input for the tardis_runs tool.
type RunsInput struct {
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of runs to return (default: all)"`
	Status string `json:"status,omitempty" jsonschema:"Filter by status: 'running', 'converged', 'exhausted', or 'aborted'"`
}

// RunsOutput defines the output for the tardis_runs tool.
type RunsOutput struct {
	Runs  []RunItem `json:"runs" jsonschema:"Run summaries, newest first"`
	Count int       `json:"count" jsonschema:"Number of runs returned"`
}

// RunItem is the list view of a run.
type RunItem struct {
	ID          string `json:"id"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at,omitempty"`
	Status      string `json:"status"`
	Iterations  int    `json:"iterations"`
	ConvergedAt int    `json:"converged_at"`
	Zones       int    `json:"zones"`
}

// RunInput defines the input for the tardis_run tool.
type RunInput struct {
	ID string `json:"id" jsonschema:"Run ID to inspect"`
}

// RunOutput defines the output for the tardis_run tool.
type RunOutput struct {
	Run    RunItem `json:"run" jsonschema:"Run summary"`
	Config string  `json:"config,omitempty" jsonschema:"JSON snapshot of the convergence configuration used"`
}

// TraceInput defines the input for the tardis_trace tool.
type TraceInput struct {
	ID    string `json:"id" jsonschema:"Run ID whose iterations to return"`
	Zones bool   `json:"zones,omitempty" jsonschema:"Include per-zone arrays in each iteration (default: false)"`
}

// TraceOutput defines the output for the tardis_trace tool.
type TraceOutput struct {
	Iterations []IterationItem `json:"iterations" jsonschema:"Iteration records in order"`
	Count      int             `json:"count" jsonschema:"Number of iterations"`
}

// IterationItem is the per-iteration view returned by tardis_trace.
type IterationItem struct {
	Index        int       `json:"index"`
	Converged    bool      `json:"converged"`
	HoldCount    int       `json:"hold_count"`
	TInner       float64   `json:"t_inner"`
	NextTInner   float64   `json:"next_t_inner"`
	Residual     float64   `json:"residual_luminosity"`
	TRad         []float64 `json:"t_rad,omitempty"`
	W            []float64 `json:"w,omitempty"`
	TRadEstimate []float64 `json:"t_rad_estimate,omitempty"`
	WEstimate    []float64 `json:"w_estimate,omitempty"`
}
