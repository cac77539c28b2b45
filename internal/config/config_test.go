package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

var configKeys = []string{
	"APP_ENV", "APP_HTTP_ADDR", "DB_DSN", "STORE_TYPE", "SEED_MOCK_DATA",
	"ADMIN_API_KEY", "METRICS_ADDR", "LOG_LEVEL", "LOG_FORMAT",
	"GENAI_API_KEY", "GENAI_MODEL", "SUGGEST_TIMEOUT",
	"RATE_LIMIT_SUGGEST_PER_MIN", "OTEL_EXPORTER_OTLP_ENDPOINT",
}

// clearEnv unsets every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "dev" {
		t.Errorf("Expected AppEnv='dev', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr=':8080', got '%s'", cfg.HTTPAddr)
	}
	if cfg.StoreType != "memory" {
		t.Errorf("Expected StoreType='memory', got '%s'", cfg.StoreType)
	}
	if !cfg.SeedMockData {
		t.Error("Expected SeedMockData=true")
	}
	if cfg.AdminAPIKey != "admin-123" {
		t.Errorf("Expected AdminAPIKey='admin-123', got '%s'", cfg.AdminAPIKey)
	}
	if cfg.SuggestTimeout != 20*time.Second {
		t.Errorf("Expected SuggestTimeout=20s, got %v", cfg.SuggestTimeout)
	}
	if cfg.SuggestRatePerMin != 10 {
		t.Errorf("Expected SuggestRatePerMin=10, got %d", cfg.SuggestRatePerMin)
	}
	if cfg.GenAIAPIKey != "" || cfg.OTLPEndpoint != "" {
		t.Error("Expected GenAI and tracing to be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate, got %v", err)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("APP_HTTP_ADDR", ":9999")
	t.Setenv("STORE_TYPE", "postgres")
	t.Setenv("SEED_MOCK_DATA", "false")
	t.Setenv("ADMIN_API_KEY", "custom-key")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SUGGEST_TIMEOUT", "5s")
	t.Setenv("RATE_LIMIT_SUGGEST_PER_MIN", "3")
	t.Setenv("GENAI_API_KEY", "g-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "staging" {
		t.Errorf("Expected AppEnv='staging', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("Expected HTTPAddr=':9999', got '%s'", cfg.HTTPAddr)
	}
	if cfg.StoreType != "postgres" {
		t.Errorf("Expected StoreType='postgres', got '%s'", cfg.StoreType)
	}
	if cfg.SeedMockData {
		t.Error("Expected SeedMockData=false")
	}
	if cfg.AdminAPIKey != "custom-key" {
		t.Errorf("Expected AdminAPIKey='custom-key', got '%s'", cfg.AdminAPIKey)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected LogLevel='debug', got '%s'", cfg.LogLevel)
	}
	if cfg.SuggestTimeout != 5*time.Second {
		t.Errorf("Expected SuggestTimeout=5s, got %v", cfg.SuggestTimeout)
	}
	if cfg.SuggestRatePerMin != 3 {
		t.Errorf("Expected SuggestRatePerMin=3, got %d", cfg.SuggestRatePerMin)
	}
	if cfg.GenAIAPIKey != "g-key" {
		t.Errorf("Expected GenAIAPIKey='g-key', got '%s'", cfg.GenAIAPIKey)
	}
}

func validConfig() *Config {
	return &Config{
		AppEnv:            "dev",
		HTTPAddr:          ":8080",
		StoreType:         "memory",
		AdminAPIKey:       "admin-123",
		MetricsAddr:       ":9090",
		LogLevel:          "info",
		SuggestTimeout:    time.Second,
		SuggestRatePerMin: 10,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad store", func(c *Config) { c.StoreType = "redis" }, "STORE_TYPE"},
		{"postgres without dsn", func(c *Config) { c.StoreType = "postgres" }, "DB_DSN"},
		{"postgres with dsn", func(c *Config) { c.StoreType = "postgres"; c.DatabaseDSN = "postgres://x" }, ""},
		{"no http addr", func(c *Config) { c.HTTPAddr = "" }, "APP_HTTP_ADDR"},
		{"no metrics addr", func(c *Config) { c.MetricsAddr = "" }, "METRICS_ADDR"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LOG_LEVEL"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"zero timeout", func(c *Config) { c.SuggestTimeout = 0 }, "SUGGEST_TIMEOUT"},
		{"zero rate", func(c *Config) { c.SuggestRatePerMin = 0 }, "RATE_LIMIT_SUGGEST_PER_MIN"},
		{"prod default key", func(c *Config) { c.AppEnv = "prod" }, "ADMIN_API_KEY"},
		{"prod custom key", func(c *Config) { c.AppEnv = "production"; c.AdminAPIKey = "s3cret" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got %v", err)
				}
				return
			}
			var vErr ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Expected field %s, got %s", tt.wantField, vErr.Field)
			}
		})
	}
}
