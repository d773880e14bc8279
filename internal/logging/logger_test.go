package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase INFO", "INFO", slog.LevelInfo},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			hasDebug := strings.Contains(buf.String(), "debug message")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", hasDebug, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			hasInfo := strings.Contains(buf.String(), "info message")
			if hasInfo != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", hasInfo, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestLevelTrace(t *testing.T) {
	// Trace should be below debug (more verbose)
	if LevelTrace >= slog.LevelDebug {
		t.Errorf("LevelTrace (%d) should be less than LevelDebug (%d)", LevelTrace, slog.LevelDebug)
	}
}

func TestNewTraceLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(dir, "info")

	// At info level, trace logger should be nil
	if tl != nil {
		t.Error("expected nil TraceLogger at info level")
	}

	// Nil logger should still be safe to use
	tl.Log(TraceEvent{Event: "iteration"})

	path := filepath.Join(dir, "trace.jsonl")
	if _, err := os.Stat(path); err == nil {
		t.Error("trace.jsonl should not exist at info level")
	}
}

func TestNewTraceLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(dir, "debug")
	defer tl.Close()

	tl.Log(TraceEvent{Event: "iteration", HoldCount: 2, TInner: 10542.5})

	path := filepath.Join(dir, "trace.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read trace.jsonl: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}

	if entry["event"] != "iteration" {
		t.Errorf("event = %v, want iteration", entry["event"])
	}
	if entry["t_inner"] != 10542.5 {
		t.Errorf("t_inner = %v, want 10542.5", entry["t_inner"])
	}
	if timeField, _ := entry["time"].(string); timeField == "" {
		t.Error("expected 'time' field stamped in trace entry")
	}
}

func TestTraceLogger_ZoneArraysGatedByLevel(t *testing.T) {
	ev := TraceEvent{
		Event: "iteration",
		TRad:  []float64{10500, 10200},
		W:     []float64{0.5, 0.45},
	}

	readEntry := func(t *testing.T, dir string) map[string]any {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(dir, "trace.jsonl"))
		if err != nil {
			t.Fatalf("failed to read trace.jsonl: %v", err)
		}
		var entry map[string]any
		if err := json.Unmarshal(data, &entry); err != nil {
			t.Fatalf("failed to parse JSONL entry: %v", err)
		}
		return entry
	}

	t.Run("debug drops zones", func(t *testing.T) {
		dir := t.TempDir()
		tl := NewTraceLogger(dir, "debug")
		defer tl.Close()

		tl.Log(ev)
		entry := readEntry(t, dir)
		if _, ok := entry["t_rad"]; ok {
			t.Error("debug-level trace should omit per-zone t_rad")
		}
		if _, ok := entry["w"]; ok {
			t.Error("debug-level trace should omit per-zone w")
		}
		// The caller's slices stay intact.
		if len(ev.TRad) != 2 || len(ev.W) != 2 {
			t.Error("Log() should not clear the caller's zone slices")
		}
	})

	t.Run("trace keeps zones", func(t *testing.T) {
		dir := t.TempDir()
		tl := NewTraceLogger(dir, "trace")
		defer tl.Close()

		tl.Log(ev)
		entry := readEntry(t, dir)
		zones, ok := entry["t_rad"].([]any)
		if !ok || len(zones) != 2 {
			t.Errorf("trace-level entry should carry per-zone t_rad, got %v", entry["t_rad"])
		}
	})
}

func TestNewTraceLogger_MultipleWrites(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(dir, "debug")
	defer tl.Close()

	tl.Log(TraceEvent{Event: "iteration", Iteration: 1})
	tl.Log(TraceEvent{Event: "iteration", Iteration: 2})

	path := filepath.Join(dir, "trace.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read trace.jsonl: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), string(data))
	}
}

func TestTraceLogger_NilSafety(t *testing.T) {
	// nil TraceLogger should not panic
	var tl *TraceLogger
	tl.Log(TraceEvent{Event: "should_not_panic"})
	tl.Close()
}

func TestTraceLogger_LogAfterClose(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(dir, "debug")

	tl.Log(TraceEvent{Event: "before_close"})
	tl.Close()

	// Should be a no-op, not panic or error
	tl.Log(TraceEvent{Event: "after_close"})
}

func TestNewTraceLogger_CreatesDir(t *testing.T) {
	base := t.TempDir()
	nestedDir := filepath.Join(base, "sub", "dir")

	tl := NewTraceLogger(nestedDir, "debug")
	if tl == nil {
		t.Fatal("expected non-nil TraceLogger when dir needs creation")
	}
	defer tl.Close()

	tl.Log(TraceEvent{Event: "dir_create"})

	path := filepath.Join(nestedDir, "trace.jsonl")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("trace.jsonl should exist after dir creation: %v", err)
	}
}
