package mcp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEntry represents a single audit log entry for an MCP tool
// invocation. It captures call metadata, never result content.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// AuditLogger writes audit entries to .tardis/audit.jsonl. It is safe for
// concurrent use. A nil AuditLogger is safe to use; all methods are no-ops
// on nil receiver.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger creates an audit logger writing to dir/audit.jsonl.
// Returns nil if the file cannot be opened; a nil logger is usable.
func NewAuditLogger(dir string) *AuditLogger {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "audit.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &AuditLogger{file: f}
}

// Log records one tool invocation. Safe to call on nil receiver.
func (al *AuditLogger) Log(tool string, start time.Time, callErr error, params map[string]string) {
	if al == nil || al.file == nil {
		return
	}

	entry := AuditEntry{
		Timestamp:  start.UTC(),
		Tool:       tool,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     "success",
		Params:     params,
	}
	if callErr != nil {
		entry.Status = "error"
		entry.Error = callErr.Error()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	al.mu.Lock()
	defer al.mu.Unlock()
	_, _ = al.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (al *AuditLogger) Close() {
	if al == nil || al.file == nil {
		return
	}
	al.mu.Lock()
	defer al.mu.Unlock()
	al.file.Close()
	al.file = nil
}
