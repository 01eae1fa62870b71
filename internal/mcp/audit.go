package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nvandessel/tickframe/internal/store"
)

// AuditFile is the tool-call log written under the project's .tickframe directory.
const AuditFile = "audit.jsonl"

// AuditEntry records one MCP tool invocation.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// AuditLogger appends entries to a JSONL file. It is safe for concurrent
// use, and a nil *AuditLogger ignores every call.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewAuditLogger opens <projectRoot>/.tickframe/audit.jsonl for appending.
// It returns nil (with a warning on stderr) when the file cannot be opened.
func NewAuditLogger(projectRoot string) *AuditLogger {
	dir, err := store.EnsureLocalDir(projectRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory: %v\n", err)
		return nil
	}
	path := filepath.Join(dir, AuditFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}
	return &AuditLogger{file: f, path: path}
}

// Path returns the audit log location.
func (a *AuditLogger) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

// Log appends one entry as a JSON line.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return
	}
	_, _ = a.file.Write(append(data, '\n'))
}

// Close closes the log file. Later Log calls are dropped.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// auditParams lists the tool arguments whose values are logged. Paths are
// only noted as present.
var auditParams = map[string]bool{
	"preset": true,
	"ticks":  true,
	"seed":   true,
	"limit":  true,
	"run_id": true,
	"metric": true,
	"format": true,
}

// sanitizeToolParams keeps the loggable arguments and records how many
// were provided. Unknown arguments are not logged.
func sanitizeToolParams(params map[string]interface{}) map[string]string {
	if params == nil {
		return nil
	}
	result := make(map[string]string)
	for key, val := range params {
		switch {
		case auditParams[key]:
			result[key] = fmt.Sprintf("%v", val)
		case key == "path":
			result[key] = "(set)"
		}
	}
	result["_param_count"] = fmt.Sprintf("%d", len(params))
	return result
}

// auditTool logs a tool invocation.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string) {
	status := "success"
	errMsg := ""
	if err != nil {
		status = "error"
		errMsg = err.Error()
	}
	s.audit.Log(AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     status,
		Error:      errMsg,
		Params:     params,
	})
}
