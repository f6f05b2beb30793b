package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("server.port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.SQLite.Path == "" {
		t.Errorf("storage = %+v, want sqlite with a path", cfg.Storage)
	}
	if cfg.Cache.TTL != 30*24*time.Hour {
		t.Errorf("cache.ttl = %v, want 720h", cfg.Cache.TTL)
	}
	if cfg.Cache.MemoryEntries != 0 {
		t.Errorf("cache.memory_entries = %d, want 0", cfg.Cache.MemoryEntries)
	}
	if len(cfg.Transcript.Languages) != 1 || cfg.Transcript.Languages[0] != "en" {
		t.Errorf("transcript.languages = %v, want [en]", cfg.Transcript.Languages)
	}
	if cfg.Transcript.MaxConcurrentFetches != 4 {
		t.Errorf("transcript.max_concurrent_fetches = %d, want 4", cfg.Transcript.MaxConcurrentFetches)
	}
	if cfg.Session.RequestTimeout != 30*time.Second {
		t.Errorf("session.request_timeout = %v, want 30s", cfg.Session.RequestTimeout)
	}
	if cfg.Analysis.Provider != "openai" {
		t.Errorf("analysis.provider = %q, want openai", cfg.Analysis.Provider)
	}
	if cfg.Logging.SlogLevel() != slog.LevelInfo {
		t.Errorf("logging level = %v, want info", cfg.Logging.SlogLevel())
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("REVIEWER_SERVER__PORT", "9000")
	t.Setenv("REVIEWER_SESSION__WRITE_TIMEOUT", "3s")
	t.Setenv("REVIEWER_STORAGE__TYPE", "memory")
	t.Setenv("REVIEWER_LOGGING__LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("server.port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Session.WriteTimeout != 3*time.Second {
		t.Errorf("session.write_timeout = %v, want 3s", cfg.Session.WriteTimeout)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("storage.type = %q, want memory", cfg.Storage.Type)
	}
	if cfg.Logging.SlogLevel() != slog.LevelDebug {
		t.Errorf("logging level = %v, want debug", cfg.Logging.SlogLevel())
	}
}

func TestLoad_File(t *testing.T) {
	t.Setenv("TEST_REVIEWER_KEY", "sk-from-env")
	path := writeConfig(t, `
server:
  port: 8123
  allowed_origins:
    - http://localhost:5173
analysis:
  provider: azure
  api_key: ${TEST_REVIEWER_KEY}
  base_url: https://example-resource.openai.azure.com
  deployment: reviewer-gpt
cache:
  ttl: 1h
transcript:
  languages: [de, en]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8123 {
		t.Errorf("server.port = %d, want 8123", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "http://localhost:5173" {
		t.Errorf("allowed_origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Analysis.APIKey != "sk-from-env" {
		t.Errorf("analysis.api_key = %q, want substituted value", cfg.Analysis.APIKey)
	}
	if cfg.Analysis.Deployment != "reviewer-gpt" || cfg.Analysis.APIVersion != "2024-02-15-preview" {
		t.Errorf("analysis = %+v", cfg.Analysis)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("cache.ttl = %v, want 1h", cfg.Cache.TTL)
	}
	if len(cfg.Transcript.Languages) != 2 || cfg.Transcript.Languages[0] != "de" {
		t.Errorf("transcript.languages = %v, want [de en]", cfg.Transcript.Languages)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8123\n")
	t.Setenv("REVIEWER_SERVER__PORT", "8124")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8124 {
		t.Errorf("server.port = %d, want 8124", cfg.Server.Port)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() of missing named file error = nil, want error")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown storage", "storage:\n  type: redis\n"},
		{"postgres without dsn", "storage:\n  type: postgres\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"zero fetches", "transcript:\n  max_concurrent_fetches: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("Load() error = nil, want validation error")
			}
		})
	}
}

func TestLoggingConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := (LoggingConfig{Level: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple substitution", "${TEST_VAR}", "test-value"},
		{"substitution in string", "prefix-${TEST_VAR}-suffix", "prefix-test-value-suffix"},
		{"no substitution", "plain-string", "plain-string"},
		{"undefined var", "${UNDEFINED_REVIEWER_VAR}", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := substituteEnvVars(tt.input); got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 16)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := Watch(ctx, path, logger, func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	}); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-reloaded:
			if c.Logging.SlogLevel() == slog.LevelDebug {
				return
			}
		case <-timeout:
			t.Fatal("no reload with debug level after write")
		}
	}
}
