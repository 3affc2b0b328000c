package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. CHURN_BACKEND_URL.
const EnvPrefix = "CHURN"

// Config holds all application configuration.
type Config struct {
	Env       string          `json:"env" yaml:"env"`
	Backend   BackendConfig   `json:"backend" yaml:"backend"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Polling   PollingConfig   `json:"polling" yaml:"polling"`
	Security  SecurityConfig  `json:"security" yaml:"security"`
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit" split_words:"true"`
	Tracing   TracingConfig   `json:"tracing" yaml:"tracing"`
	Log       LogConfig       `json:"log" yaml:"log"`
	Features  FeaturesConfig  `json:"features" yaml:"features"`
	Events    EventsConfig    `json:"events" yaml:"events"`
}

// BackendConfig points at the extraction and planning backend.
type BackendConfig struct {
	URL            string `json:"url" yaml:"url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" split_words:"true"`
}

// ServerConfig holds the local facade listener.
type ServerConfig struct {
	Port string `json:"port" yaml:"port"`
	Host string `json:"host" yaml:"host"`
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Path string `json:"path" yaml:"path"`
}

// RedisConfig enables the shared plan cache. When disabled plans are cached
// in process.
type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Prefix   string `json:"prefix" yaml:"prefix"`
}

// PollingConfig holds the reconciliation timings in milliseconds.
type PollingConfig struct {
	IntervalMS          int `json:"interval_ms" yaml:"interval_ms" split_words:"true"`
	DetailRenderDelayMS int `json:"detail_render_delay_ms" yaml:"detail_render_delay_ms" split_words:"true"`
	RefreshGraceMS      int `json:"refresh_grace_ms" yaml:"refresh_grace_ms" split_words:"true"`
	RefreshGracePollMS  int `json:"refresh_grace_poll_ms" yaml:"refresh_grace_poll_ms" split_words:"true"`
	RefreshDisplayMS    int `json:"refresh_display_ms" yaml:"refresh_display_ms" split_words:"true"`
}

func (p PollingConfig) Interval() time.Duration {
	return ms(p.IntervalMS)
}

func (p PollingConfig) DetailRenderDelay() time.Duration {
	return ms(p.DetailRenderDelayMS)
}

func (p PollingConfig) RefreshGrace() time.Duration {
	return ms(p.RefreshGraceMS)
}

func (p PollingConfig) RefreshGracePoll() time.Duration {
	return ms(p.RefreshGracePollMS)
}

func (p PollingConfig) RefreshDisplay() time.Duration {
	return ms(p.RefreshDisplayMS)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	// Max request body size in bytes (default: 1MB)
	MaxRequestBodySize int64 `json:"max_request_body_size" yaml:"max_request_body_size" split_words:"true"`
	// Allowed CORS origins (comma-separated)
	AllowedOrigins string `json:"allowed_origins" yaml:"allowed_origins" split_words:"true"`
}

// Origins splits AllowedOrigins.
func (s SecurityConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Rate    int  `json:"rate" yaml:"rate"`
	Window  int  `json:"window" yaml:"window"` // in seconds
}

type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	ServiceName string  `json:"service_name" yaml:"service_name" split_words:"true"`
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio" split_words:"true"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// FeaturesConfig holds the initial state of the feature flags.
type FeaturesConfig struct {
	FieldRefresh bool `json:"field_refresh" yaml:"field_refresh" split_words:"true"`
	PlanCache    bool `json:"plan_cache" yaml:"plan_cache" split_words:"true"`
	EventLog     bool `json:"event_log" yaml:"event_log" split_words:"true"`
}

type EventsConfig struct {
	LogSize int `json:"log_size" yaml:"log_size" split_words:"true"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Env: "production",
		Backend: BackendConfig{
			URL:            "http://localhost:5000",
			TimeoutSeconds: 30,
		},
		Server: ServerConfig{
			Port: "8081",
			Host: "127.0.0.1",
		},
		Database: DatabaseConfig{
			Path: "./churn.db",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "churn:",
		},
		Polling: PollingConfig{
			IntervalMS:          500,
			DetailRenderDelayMS: 100,
			RefreshGraceMS:      2000,
			RefreshGracePollMS:  200,
			RefreshDisplayMS:    1000,
		},
		Security: SecurityConfig{
			MaxRequestBodySize: 1 << 20,
			AllowedOrigins:     "*",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Rate:    100,
			Window:  60,
		},
		Tracing: TracingConfig{
			Endpoint:    "http://localhost:14268/api/traces",
			ServiceName: "churnchurnchurn",
		},
		Log: LogConfig{
			Level: "info",
		},
		Features: FeaturesConfig{
			FieldRefresh: true,
			PlanCache:    true,
			EventLog:     true,
		},
		Events: EventsConfig{
			LogSize: 256,
		},
	}
}

// LoadConfig loads configuration from defaults, an optional JSON file and
// the environment, in that order of precedence (environment wins).
func LoadConfig(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a JSON or YAML file, picked by
// extension.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// IsDevelopment reports whether human-friendly output should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}

// Addr returns the facade listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend url must be an absolute http(s) url, got %q", c.Backend.URL)
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when redis is enabled")
	}
	if c.Polling.IntervalMS <= 0 {
		return fmt.Errorf("polling interval must be positive")
	}
	if c.Polling.RefreshGracePollMS <= 0 || c.Polling.RefreshGraceMS <= 0 {
		return fmt.Errorf("refresh grace timings must be positive")
	}
	if c.Polling.DetailRenderDelayMS < 0 || c.Polling.RefreshDisplayMS < 0 {
		return fmt.Errorf("display delays must not be negative")
	}
	if c.Security.MaxRequestBodySize <= 0 {
		return fmt.Errorf("max request body size must be positive")
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate limit rate must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be between 0 and 1")
	}
	if c.Events.LogSize <= 0 {
		return fmt.Errorf("event log size must be positive")
	}
	return nil
}
