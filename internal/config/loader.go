package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "drawbridge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "DRAWBRIDGE_PORT")
	setString(&cfg.Server.CORSOrigin, "DRAWBRIDGE_CORS_ORIGIN")

	setString(&cfg.Generator.URL, "DRAWBRIDGE_GENERATOR_URL")
	setString(&cfg.Generator.APIKey, "DRAWBRIDGE_GENERATOR_API_KEY")
	setString(&cfg.Generator.Model, "DRAWBRIDGE_GENERATOR_MODEL")
	setDuration(&cfg.Generator.Timeout, "DRAWBRIDGE_GENERATOR_TIMEOUT")

	setString(&cfg.Renderer.Binary, "DRAWBRIDGE_RENDERER_BINARY")
	setDuration(&cfg.Renderer.Timeout, "DRAWBRIDGE_RENDERER_TIMEOUT")
	setInt(&cfg.Renderer.MaxConcurrent, "DRAWBRIDGE_RENDERER_MAX_CONCURRENT")

	setInt(&cfg.Cache.MaxEntries, "DRAWBRIDGE_CACHE_MAX_ENTRIES")
	setDuration(&cfg.Cache.TTL, "DRAWBRIDGE_CACHE_TTL")
	setInt64(&cfg.Cache.L1MaxSizeMB, "DRAWBRIDGE_CACHE_L1_SIZE_MB")

	setString(&cfg.Storage.Dir, "DRAWBRIDGE_STORAGE_DIR")
	setDuration(&cfg.Storage.ArtifactTTL, "DRAWBRIDGE_ARTIFACT_TTL")
	setInt64(&cfg.Storage.MaxBytes, "DRAWBRIDGE_STORAGE_MAX_BYTES")
	setFloat64(&cfg.Storage.TargetFreePct, "DRAWBRIDGE_STORAGE_TARGET_FREE_PCT")

	setDuration(&cfg.Cleanup.Interval, "DRAWBRIDGE_CLEANUP_INTERVAL")

	setString(&cfg.Logging.Level, "DRAWBRIDGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "DRAWBRIDGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "DRAWBRIDGE_LOG_ASYNC")

	setInt(&cfg.Breaker.MaxFailures, "DRAWBRIDGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "DRAWBRIDGE_BREAKER_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "DRAWBRIDGE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "DRAWBRIDGE_RATE_BURST")

	setDuration(&cfg.Idempotency.TTL, "DRAWBRIDGE_IDEMPOTENCY_TTL")
	setInt64(&cfg.Idempotency.MaxBodySize, "DRAWBRIDGE_IDEMPOTENCY_MAX_BODY")

	setBool(&cfg.MCP.Enabled, "DRAWBRIDGE_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "DRAWBRIDGE_MCP_ADDR")
	setString(&cfg.MCP.Name, "DRAWBRIDGE_MCP_NAME")
	setString(&cfg.MCP.Version, "DRAWBRIDGE_MCP_VERSION")
	setString(&cfg.MCP.APIKey, "DRAWBRIDGE_MCP_API_KEY")

	setBool(&cfg.Telemetry.Enabled, "DRAWBRIDGE_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.Exporter, "DRAWBRIDGE_TELEMETRY_EXPORTER")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Generator.URL == "" {
		return errors.New("generator.url is required")
	}
	if cfg.Generator.Model == "" {
		return errors.New("generator.model is required")
	}
	if cfg.Renderer.Binary == "" {
		return errors.New("renderer.binary is required")
	}
	if cfg.Renderer.MaxConcurrent < 1 {
		return errors.New("renderer.max_concurrent must be >= 1")
	}
	if cfg.Cache.MaxEntries < 1 {
		return errors.New("cache.max_entries must be >= 1")
	}
	if cfg.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be positive")
	}
	if cfg.Storage.Dir == "" {
		return errors.New("storage.dir is required")
	}
	if cfg.Storage.ArtifactTTL <= 0 {
		return errors.New("storage.artifact_ttl must be positive")
	}
	if cfg.Storage.TargetFreePct <= 0 || cfg.Storage.TargetFreePct >= 1 {
		return errors.New("storage.target_free_pct must be in (0, 1)")
	}
	if cfg.Cleanup.Interval <= 0 {
		return errors.New("cleanup.interval must be positive")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
