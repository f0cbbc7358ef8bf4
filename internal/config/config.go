// Package config provides hierarchical configuration loading for Drawbridge.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the Drawbridge service.
type Config struct {
	Server      Server      `yaml:"server"`
	Generator   Generator   `yaml:"generator"`
	Renderer    Renderer    `yaml:"renderer"`
	Cache       Cache       `yaml:"cache"`
	Storage     Storage     `yaml:"storage"`
	Cleanup     Cleanup     `yaml:"cleanup"`
	Logging     Logging     `yaml:"logging"`
	Breaker     Breaker     `yaml:"breaker"`
	Rate        Rate        `yaml:"rate"`
	Idempotency Idempotency `yaml:"idempotency"`
	MCP         MCP         `yaml:"mcp"`
	Telemetry   Telemetry   `yaml:"telemetry"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Generator holds LiteLLM proxy configuration for diagram text generation.
type Generator struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Renderer holds drawio CLI configuration for PNG export.
type Renderer struct {
	Binary        string        `yaml:"binary"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

// Cache holds response cache configuration. The response cache TTL is
// independent of the artifact expiry in Storage; the two durations are
// configured separately on purpose.
type Cache struct {
	MaxEntries  int           `yaml:"max_entries"`
	TTL         time.Duration `yaml:"ttl"`
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
}

// Storage holds temp artifact storage configuration. MaxBytes is the byte
// budget used to detect storage pressure; TargetFreePct is the fraction of
// the budget emergency cleanup frees up to.
type Storage struct {
	Dir           string        `yaml:"dir"`
	ArtifactTTL   time.Duration `yaml:"artifact_ttl"`
	MaxBytes      int64         `yaml:"max_bytes"`
	TargetFreePct float64       `yaml:"target_free_pct"`
}

// Cleanup holds background sweep configuration.
type Cleanup struct {
	Interval time.Duration `yaml:"interval"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration for the generation backend.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Rate holds rate limiter configuration for the public API.
type Rate struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Idempotency holds Idempotency-Key replay cache configuration.
type Idempotency struct {
	TTL         time.Duration `yaml:"ttl"`
	MaxBodySize int64         `yaml:"max_body_size"`
}

// MCP holds Model Context Protocol server configuration.
type MCP struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	APIKey  string `yaml:"api_key"`
}

// Telemetry holds OpenTelemetry exporter configuration.
type Telemetry struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // "otlp" | "none"
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
		},
		Generator: Generator{
			URL:     "http://localhost:4000",
			Model:   "openai/gpt-4o-mini",
			Timeout: 90 * time.Second,
		},
		Renderer: Renderer{
			Binary:        "drawio",
			Timeout:       30 * time.Second,
			MaxConcurrent: 4,
		},
		Cache: Cache{
			MaxEntries:  100,
			TTL:         time.Hour,
			L1MaxSizeMB: 64,
		},
		Storage: Storage{
			Dir:           "/tmp/drawbridge",
			ArtifactTTL:   time.Hour,
			MaxBytes:      512 << 20,
			TargetFreePct: 0.25,
		},
		Cleanup: Cleanup{
			Interval: 30 * time.Minute,
		},
		Logging: Logging{
			Level:   "info",
			Service: "drawbridge",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Rate: Rate{
			RequestsPerSecond: 2,
			Burst:             5,
		},
		Idempotency: Idempotency{
			TTL:         10 * time.Minute,
			MaxBodySize: 1 << 20,
		},
		MCP: MCP{
			Enabled: false,
			Addr:    ":3001",
			Name:    "drawbridge",
			Version: "0.1.0",
		},
		Telemetry: Telemetry{
			Enabled:  false,
			Exporter: "otlp",
		},
	}
}
