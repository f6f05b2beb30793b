// Package config loads service configuration from an optional YAML file and
// REVIEWER_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is read when no config file is named. It may be absent.
const DefaultPath = "config.yaml"

const envPrefix = "REVIEWER_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Session    SessionConfig    `koanf:"session"`
	Storage    StorageConfig    `koanf:"storage"`
	Cache      CacheConfig      `koanf:"cache"`
	Transcript TranscriptConfig `koanf:"transcript"`
	Analysis   AnalysisConfig   `koanf:"analysis"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type ServerConfig struct {
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port"`
	AllowedOrigins []string `koanf:"allowed_origins"`
	StaticDir      string   `koanf:"static_dir"`
}

type SessionConfig struct {
	RequestTimeout time.Duration `koanf:"request_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, postgres, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
	// Database configures the postgres store.
	Database DatabaseConfig `koanf:"database"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

type CacheConfig struct {
	TTL           time.Duration `koanf:"ttl"`
	// MemoryEntries enables the in-process tier. Entries held there are
	// served without reading the store, so it only suits a single process.
	MemoryEntries int           `koanf:"memory_entries"`
}

type TranscriptConfig struct {
	Languages            []string      `koanf:"languages"`
	Timeout              time.Duration `koanf:"timeout"`
	MaxConcurrentFetches int64         `koanf:"max_concurrent_fetches"`
}

type AnalysisConfig struct {
	Provider        string        `koanf:"provider"` // openai, azure, anthropic
	APIKey          string        `koanf:"api_key"`
	BaseURL         string        `koanf:"base_url"`
	Model           string        `koanf:"model"`
	Deployment      string        `koanf:"deployment"`
	APIVersion      string        `koanf:"api_version"`
	MaxPromptTokens int           `koanf:"max_prompt_tokens"`
	MaxOutputTokens int           `koanf:"max_output_tokens"`
	Timeout         time.Duration `koanf:"timeout"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

type LoggingConfig struct {
	Level string `koanf:"level"`
}

// SlogLevel parses Level, falling back to info.
func (c LoggingConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

var defaults = map[string]any{
	"server.port":                       8000,
	"session.request_timeout":           "30s",
	"session.write_timeout":             "10s",
	"storage.type":                      "sqlite",
	"storage.sqlite.path":               "data/transcripts.db",
	"cache.ttl":                         "720h",
	"cache.memory_entries":              0,
	"transcript.languages":              []string{"en"},
	"transcript.timeout":                "30s",
	"transcript.max_concurrent_fetches": 4,
	"analysis.provider":                 "openai",
	"analysis.model":                    "gpt-4o",
	"analysis.api_version":              "2024-02-15-preview",
	"analysis.max_prompt_tokens":        100000,
	"analysis.max_output_tokens":        4096,
	"analysis.timeout":                  "120s",
	"telemetry.service_name":            "youtube-reviewer",
	"logging.level":                     "info",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty), then environment overrides,
// then fills defaults. A missing DefaultPath is not an error; a missing
// explicitly named file is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	readFile := true
	if path == "" {
		path = DefaultPath
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			readFile = false
		}
	}
	if readFile {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// REVIEWER_SESSION__REQUEST_TIMEOUT -> session.request_timeout
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("set default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Analysis.APIKey = substituteEnvVars(cfg.Analysis.APIKey)
	cfg.Analysis.BaseURL = substituteEnvVars(cfg.Analysis.BaseURL)
	cfg.Storage.Database.DSN = substituteEnvVars(cfg.Storage.Database.DSN)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Storage.Type {
	case "sqlite", "memory":
	case "postgres":
		if c.Storage.Database.DSN == "" {
			errs = append(errs, errors.New("storage.database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not one of sqlite, postgres, memory", c.Storage.Type))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Transcript.MaxConcurrentFetches <= 0 {
		errs = append(errs, errors.New("transcript.max_concurrent_fetches must be positive"))
	}
	return errors.Join(errs...)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
