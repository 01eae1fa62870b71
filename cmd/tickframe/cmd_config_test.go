package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/tickframe/internal/config"
)

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
		check   func(*config.TickConfig) bool
	}{
		{"logging.level", "debug", false, func(c *config.TickConfig) bool { return c.Logging.Level == "debug" }},
		{"results.formats", "csv, arrow", false, func(c *config.TickConfig) bool {
			return strings.Join(c.Results.Formats, ",") == "csv,arrow"
		}},
		{"results.keep", "5", false, func(c *config.TickConfig) bool { return c.Results.Keep == 5 }},
		{"results.keep", "five", true, nil},
		{"results.max_age", "2w", false, func(c *config.TickConfig) bool { return c.Results.MaxAge == "2w" }},
		{"results.max_age", "2y", true, nil},
		{"results.max_size", "1GB", false, func(c *config.TickConfig) bool { return c.Results.MaxSize == "1GB" }},
		{"defaults.seed", "42", false, func(c *config.TickConfig) bool { return c.Defaults.Seed == 42 }},
		{"defaults.seed", "-1", true, nil},
		{"no.such.key", "x", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := config.Default()
			err := setConfigValue(cfg, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("setConfigValue error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("value not applied: %+v", cfg)
			}
		})
	}
}

func TestGetConfigValue_AllKeys(t *testing.T) {
	cfg := config.Default()
	for _, key := range configKeys {
		if _, ok := getConfigValue(cfg, key); !ok {
			t.Errorf("getConfigValue(%q) not found", key)
		}
	}
	if _, ok := getConfigValue(cfg, "llm.provider"); ok {
		t.Error("unknown key should not be found")
	}
}

func TestConfigCmd_SetThenGet(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, err := execute(t, "config", "set", "results.keep", "7", "--root", tmpDir); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadFromFile(filepath.Join(tmpDir, ".tickframe", config.FileName))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Results.Keep != 7 {
		t.Errorf("keep = %d, want 7", cfg.Results.Keep)
	}

	out, err := execute(t, "config", "get", "results.keep", "--root", tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "results.keep = 7" {
		t.Errorf("get output = %q", out)
	}

	if _, err := execute(t, "config", "set", "store.backend", "postgres", "--root", tmpDir); err == nil {
		t.Error("expected validation error for unknown backend")
	}
}
