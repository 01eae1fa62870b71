package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func readAudit(t *testing.T, path string) []AuditEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("parse audit line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestAuditLogger_NilSafety(t *testing.T) {
	var logger *AuditLogger
	logger.Log(AuditEntry{Tool: "test"})
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on nil logger returned error: %v", err)
	}
	if logger.Path() != "" {
		t.Error("nil logger should have no path")
	}
}

func TestAuditLogger_WritesJSONL(t *testing.T) {
	root := t.TempDir()
	logger := NewAuditLogger(root)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}

	logger.Log(AuditEntry{Timestamp: time.Now(), Tool: "tickframe_run", DurationMs: 42, Status: "success"})
	logger.Log(AuditEntry{Timestamp: time.Now(), Tool: "tickframe_runs", Status: "error", Error: "boom"})
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}
	logger.Log(AuditEntry{Tool: "dropped"})

	entries := readAudit(t, filepath.Join(root, ".tickframe", AuditFile))
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Tool != "tickframe_run" || entries[0].DurationMs != 42 {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].Error != "boom" {
		t.Errorf("second entry = %+v", entries[1])
	}
}

func TestAuditLogger_Concurrent(t *testing.T) {
	root := t.TempDir()
	logger := NewAuditLogger(root)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log(AuditEntry{Tool: "tickframe_presets", Status: "success"})
		}()
	}
	wg.Wait()
	logger.Close()

	if n := len(readAudit(t, logger.Path())); n != 20 {
		t.Errorf("got %d entries, want 20", n)
	}
}

func TestSanitizeToolParams(t *testing.T) {
	got := sanitizeToolParams(map[string]interface{}{
		"preset":  "pi-drift",
		"path":    "/home/user/secret.yaml",
		"ticks":   10,
		"comment": "not logged",
	})
	if got["preset"] != "pi-drift" || got["ticks"] != "10" {
		t.Errorf("safe values missing: %v", got)
	}
	if got["path"] != "(set)" {
		t.Errorf("path = %q, want (set)", got["path"])
	}
	if _, ok := got["comment"]; ok {
		t.Error("unknown params should not be logged")
	}
	if got["_param_count"] != "4" {
		t.Errorf("_param_count = %q", got["_param_count"])
	}
	if sanitizeToolParams(nil) != nil {
		t.Error("nil params should give nil")
	}
}

func TestHandlers_Audited(t *testing.T) {
	s, root := setupTestServer(t)
	ctx := context.Background()

	runPreset(t, s, "shell-growth", 2)
	if _, _, err := s.handleMetrics(ctx, nil, MetricsInput{}); err == nil {
		t.Fatal("expected error")
	}
	s.audit.Close()

	entries := readAudit(t, filepath.Join(root, ".tickframe", AuditFile))
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Tool != "tickframe_run" || entries[0].Status != "success" || entries[0].Params["preset"] != "shell-growth" {
		t.Errorf("run entry = %+v", entries[0])
	}
	if entries[1].Tool != "tickframe_metrics" || entries[1].Status != "error" {
		t.Errorf("metrics entry = %+v", entries[1])
	}
}
