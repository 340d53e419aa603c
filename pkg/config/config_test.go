package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/knadh/koanf/v2"
)

func resetKoanf(t *testing.T) {
	t.Helper()
	k = koanf.New(".")
}

func TestLoadDefaults(t *testing.T) {
	resetKoanf(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telemetry.Exporter != "otlp" {
		t.Errorf("expected default exporter otlp, got %s", cfg.Telemetry.Exporter)
	}
	if cfg.Agents.WeatherURL != "http://localhost:8081" {
		t.Errorf("unexpected default weather url %s", cfg.Agents.WeatherURL)
	}
	if cfg.Canary.IntervalSeconds != 30 {
		t.Errorf("expected default canary interval 30, got %d", cfg.Canary.IntervalSeconds)
	}
	if cfg.Dashboards.PrometheusPort != 9090 {
		t.Errorf("expected default prometheus port 9090, got %d", cfg.Dashboards.PrometheusPort)
	}
}

func TestLoadEnv(t *testing.T) {
	resetKoanf(t)
	os.Setenv("ATLAS_TELEMETRY_EXPORTER", "stdout")
	os.Setenv("ATLAS_AGENTS_WEATHER_URL", "http://weather:9000")
	defer os.Unsetenv("ATLAS_TELEMETRY_EXPORTER")
	defer os.Unsetenv("ATLAS_AGENTS_WEATHER_URL")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telemetry.Exporter != "stdout" {
		t.Errorf("expected exporter stdout from env, got %s", cfg.Telemetry.Exporter)
	}
	if cfg.Agents.WeatherURL != "http://weather:9000" {
		t.Errorf("expected weather url from env, got %s", cfg.Agents.WeatherURL)
	}
}

func TestLoadFile(t *testing.T) {
	resetKoanf(t)
	tmpDir := t.TempDir()
	content := `
log:
  level: debug
server:
  addr: ":9999"
canary:
  interval_seconds: 5
  weights:
    none: 0.8
    partial_failure: 0.2
`
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("expected addr :9999, got %s", cfg.Server.Addr)
	}
	if cfg.Canary.IntervalSeconds != 5 {
		t.Errorf("expected canary interval 5, got %d", cfg.Canary.IntervalSeconds)
	}
	if cfg.Canary.Weights["partial_failure"] != 0.2 {
		t.Errorf("expected partial_failure weight 0.2, got %v", cfg.Canary.Weights)
	}
}

func TestLoadMissingFile(t *testing.T) {
	resetKoanf(t)
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvToKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ATLAS_LOG_LEVEL", "log.level"},
		{"ATLAS_AGENTS_WEATHER_URL", "agents.weather_url"},
		{"ATLAS_TELEMETRY_OTLP_ENDPOINT", "telemetry.otlp_endpoint"},
		{"ATLAS_CANARY_INTERVAL_SECONDS", "canary.interval_seconds"},
	}
	for _, tt := range tests {
		if got := envToKey(tt.in); got != tt.want {
			t.Errorf("envToKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
