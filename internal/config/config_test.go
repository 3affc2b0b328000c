package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
	if cfg.Polling.Interval() != 500*time.Millisecond {
		t.Errorf("Expected 500ms poll interval, got %s", cfg.Polling.Interval())
	}
	if cfg.Polling.RefreshGrace() != 2*time.Second {
		t.Errorf("Expected 2s refresh grace, got %s", cfg.Polling.RefreshGrace())
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "churn.json")
	body := `{
		"backend": {"url": "http://backend.internal:5000"},
		"server": {"port": "9000"},
		"polling": {"interval_ms": 750},
		"features": {"event_log": false}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("CHURN_SERVER_PORT", "9100")
	t.Setenv("CHURN_REDIS_ENABLED", "true")
	t.Setenv("CHURN_POLLING_REFRESH_GRACE_MS", "3000")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Backend.URL != "http://backend.internal:5000" {
		t.Errorf("Expected backend url from file, got %s", cfg.Backend.URL)
	}
	if cfg.Server.Port != "9100" {
		t.Errorf("Expected env to override file port, got %s", cfg.Server.Port)
	}
	if cfg.Polling.IntervalMS != 750 {
		t.Errorf("Expected interval from file, got %d", cfg.Polling.IntervalMS)
	}
	if cfg.Polling.RefreshGraceMS != 3000 {
		t.Errorf("Expected grace from env, got %d", cfg.Polling.RefreshGraceMS)
	}
	if !cfg.Redis.Enabled {
		t.Errorf("Expected redis enabled from env")
	}
	if cfg.Features.EventLog {
		t.Errorf("Expected event log disabled from file")
	}
	if !cfg.Features.FieldRefresh {
		t.Errorf("Expected untouched default to survive")
	}
}

func TestLoadConfig_BadEnv(t *testing.T) {
	t.Setenv("CHURN_POLLING_INTERVAL_MS", "soon")
	if _, err := LoadConfig(""); err == nil {
		t.Errorf("Expected malformed env value to fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative backend url", func(c *Config) { c.Backend.URL = "localhost:5000" }},
		{"no port", func(c *Config) { c.Server.Port = "" }},
		{"no database", func(c *Config) { c.Database.Path = "" }},
		{"zero interval", func(c *Config) { c.Polling.IntervalMS = 0 }},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }},
		{"bad rate", func(c *Config) { c.RateLimit.Rate = 0 }},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true; c.Tracing.Endpoint = "" }},
		{"empty event log", func(c *Config) { c.Events.LogSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}

func TestSecurityOrigins(t *testing.T) {
	s := SecurityConfig{AllowedOrigins: "http://localhost:3000, https://churn.example ,"}
	got := s.Origins()
	if len(got) != 2 || got[1] != "https://churn.example" {
		t.Errorf("Expected 2 trimmed origins, got %v", got)
	}
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "churn.yaml")
	body := `backend:
  url: http://planner.local:5000
  timeout_seconds: 12
rate_limit:
  rate: 20
features:
  field_refresh: false
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.Backend.URL != "http://planner.local:5000" || cfg.Backend.TimeoutSeconds != 12 {
		t.Errorf("Expected backend settings from yaml, got %+v", cfg.Backend)
	}
	if cfg.RateLimit.Rate != 20 || cfg.RateLimit.Window != 60 {
		t.Errorf("Expected yaml rate with default window, got %+v", cfg.RateLimit)
	}
	if cfg.Features.FieldRefresh {
		t.Error("Expected field refresh disabled from yaml")
	}
	if !cfg.Features.PlanCache {
		t.Error("Expected plan cache default to survive")
	}
}
