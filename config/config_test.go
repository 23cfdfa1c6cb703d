package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crategate.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
workspace: /srv/checkout
rules_dir: rules
history_path: .crategate/history.db
concurrency: 4
watch:
  interval: 5m
  metrics_addr: ":9191"
otel:
  endpoint: localhost:4317
  insecure: true
  traces: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("Concurrency = %d, want 4", cfg.Concurrency)
	}
	if cfg.Watch.Interval != 5*time.Minute {
		t.Errorf("Watch.Interval = %v, want 5m", cfg.Watch.Interval)
	}
	if cfg.Watch.MetricsAddr != ":9191" {
		t.Errorf("Watch.MetricsAddr = %q, want :9191", cfg.Watch.MetricsAddr)
	}
	if !cfg.OTEL.Traces {
		t.Error("OTEL.Traces should be true")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "log_level: warn\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Watch.Interval != 15*time.Minute {
		t.Errorf("default Watch.Interval = %v, want 15m", cfg.Watch.Interval)
	}
	if cfg.Watch.MetricsAddr != ":9090" {
		t.Errorf("default Watch.MetricsAddr = %q, want :9090", cfg.Watch.MetricsAddr)
	}
}

func TestLoadRejectsBadInterval(t *testing.T) {
	path := writeConfig(t, "watch:\n  interval: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable interval")
	}
}

func TestLoadRejectsNegativeConcurrency(t *testing.T) {
	path := writeConfig(t, "concurrency: -1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative concurrency")
	}
}
