// Package logging provides leveled logging and iteration tracing for
// tardis. It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A TraceLogger for structured JSONL iteration traces (.tardis/trace.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug for per-zone content
// logging. At this level full estimate arrays are included in trace events.
const LevelTrace = slog.LevelDebug - 4

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing text records to w. The
// custom trace level renders as "TRACE" rather than slog's "DEBUG-4".
func NewLogger(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if v, ok := a.Value.Any().(slog.Level); ok && v == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// TraceEvent is one line of the convergence trace: the acceptance
// bookkeeping for a single iteration, plus the per-zone estimate arrays
// when the logger runs at trace level.
type TraceEvent struct {
	Time       string    `json:"time"`
	Event      string    `json:"event"`
	RunID      string    `json:"run_id,omitempty"`
	Iteration  int       `json:"iteration"`
	Converged  bool      `json:"converged"`
	HoldCount  int       `json:"hold_count"`
	TInner     float64   `json:"t_inner"`
	NextTInner float64   `json:"next_t_inner"`
	Residual   float64   `json:"residual_luminosity"`
	TRad       []float64 `json:"t_rad,omitempty"`
	W          []float64 `json:"w,omitempty"`
}

// TraceLogger writes per-iteration convergence events to a JSONL file.
// It is safe for concurrent use. A nil TraceLogger is safe to use;
// all methods are no-ops on nil receiver.
type TraceLogger struct {
	mu    sync.Mutex
	file  *os.File
	level slog.Level
}

// NewTraceLogger creates a trace logger writing to dir/trace.jsonl.
// At "info" level (the default), returns nil — no file is created.
// At "debug" level iterations are traced without their per-zone arrays;
// "trace" includes them. Returns nil if the file cannot be opened.
// All methods are nil-safe.
func NewTraceLogger(dir string, level string) *TraceLogger {
	lvl := ParseLevel(level)
	if lvl == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, "trace.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &TraceLogger{file: f, level: lvl}
}

// Log writes one trace event as a single JSONL line. The Time field is
// stamped here; per-zone arrays are dropped below trace level. The
// caller's event and its slices are not mutated. Safe to call on nil
// receiver.
func (tl *TraceLogger) Log(ev TraceEvent) {
	if tl == nil || tl.file == nil {
		return
	}

	ev.Time = time.Now().UTC().Format(time.RFC3339Nano)
	if tl.level > LevelTrace {
		ev.TRad = nil
		ev.W = nil
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = tl.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (tl *TraceLogger) Close() {
	if tl == nil || tl.file == nil {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()

	tl.file.Close()
	tl.file = nil
}
