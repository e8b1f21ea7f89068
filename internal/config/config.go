// Package config provides configuration management.
//
// Configuration is read from an optional JSON file and then overlaid with
// FIBRE_* environment variables. A .env file in the working directory is
// loaded first so local development does not need exported variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	ferrors "fibre-cost/internal/errors"
	"fibre-cost/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Catalog locates the cost catalog
	Catalog CatalogConfig `json:"catalog"`

	// Oracle configures the advisory reasoning service
	Oracle OracleConfig `json:"oracle"`

	// Pipeline tunes the estimation pipeline
	Pipeline PipelineConfig `json:"pipeline"`

	// History configures the rolling historical record store
	History HistoryConfig `json:"history"`

	// Audit configures the audit record database
	Audit AuditConfig `json:"audit"`

	// Server contains HTTP server settings
	Server ServerConfig `json:"server"`

	// Telemetry configures trace export
	Telemetry TelemetryConfig `json:"telemetry"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// CatalogConfig locates the active cost catalog
type CatalogConfig struct {
	// Path is the catalog file (.json or .hcl)
	Path string `json:"path" envconfig:"FIBRE_CATALOG_FILE"`

	// VersionsDir receives a timestamped copy of every uploaded catalog
	VersionsDir string `json:"versions_dir" envconfig:"FIBRE_CATALOG_VERSIONS_DIR"`
}

// OracleConfig configures the advisory oracle
type OracleConfig struct {
	// Provider is one of openai, stub, none
	Provider string `json:"provider" envconfig:"FIBRE_ORACLE_PROVIDER"`

	// BaseURL is an OpenAI-compatible API base
	BaseURL string `json:"base_url" envconfig:"FIBRE_ORACLE_BASE_URL"`

	// APIKey authenticates against BaseURL
	APIKey string `json:"-" envconfig:"FIBRE_ORACLE_API_KEY"`

	// Model is used for judgments and narratives
	Model string `json:"model" envconfig:"FIBRE_ORACLE_MODEL"`

	// FastModel is used for output validation
	FastModel string `json:"fast_model" envconfig:"FIBRE_ORACLE_FAST_MODEL"`

	// TimeoutSeconds bounds a single oracle round trip
	TimeoutSeconds int `json:"timeout_seconds" envconfig:"FIBRE_ORACLE_TIMEOUT_SECONDS"`
}

// Timeout returns the per-call timeout
func (o OracleConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// PipelineConfig tunes the estimation pipeline
type PipelineConfig struct {
	// MaxRetries is the number of re-runs after an INVALID verdict
	MaxRetries int `json:"max_retries" envconfig:"FIBRE_MAX_RETRIES"`

	// RetryScope is "full" (re-run every stage) or "validation" (re-ask the validator only)
	RetryScope string `json:"retry_scope" envconfig:"FIBRE_RETRY_SCOPE"`

	// AnomalyThreshold flags final costs above this amount for review
	AnomalyThreshold float64 `json:"anomaly_threshold" envconfig:"FIBRE_ANOMALY_THRESHOLD"`

	// GovernanceRiskThreshold skips the strategy note above this risk multiplier
	GovernanceRiskThreshold float64 `json:"governance_risk_threshold" envconfig:"FIBRE_GOVERNANCE_RISK_THRESHOLD"`
}

// HistoryConfig configures the historical record store
type HistoryConfig struct {
	// Path is the JSON file backing the store; empty keeps history in memory
	Path string `json:"path" envconfig:"FIBRE_HISTORY_FILE"`

	// Capacity is the rolling window size
	Capacity int `json:"capacity" envconfig:"FIBRE_HISTORY_CAPACITY"`
}

// AuditConfig configures the audit database
type AuditConfig struct {
	// Driver is sqlite, postgres, memory or none
	Driver string `json:"driver" envconfig:"FIBRE_AUDIT_DRIVER"`

	// DSN is the sqlite file name or postgres connection string
	DSN string `json:"dsn" envconfig:"FIBRE_AUDIT_DSN"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address             string `json:"address" envconfig:"FIBRE_ADDRESS"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
	MaxBodyBytes        int64  `json:"max_body_bytes"`

	// CORSOrigins lists the origins allowed to call the API
	CORSOrigins []string `json:"cors_origins" envconfig:"FIBRE_CORS_ORIGINS"`
}

// ReadTimeout returns the request read timeout
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the response write timeout
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// TelemetryConfig configures OTLP trace export
type TelemetryConfig struct {
	// Endpoint is the OTLP/HTTP collector host:port; empty disables export
	Endpoint string `json:"endpoint" envconfig:"FIBRE_OTEL_ENDPOINT"`

	// Insecure disables TLS to the collector
	Insecure bool `json:"insecure" envconfig:"FIBRE_OTEL_INSECURE"`

	// ServiceName is reported on every span
	ServiceName string `json:"service_name"`
}

// Default returns a default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".fibre-cost")

	return &Config{
		Version: "1.0",
		Catalog: CatalogConfig{
			Path:        "cost_catalog.json",
			VersionsDir: "cost_catalog_versions",
		},
		Oracle: OracleConfig{
			Provider:       "openai",
			BaseURL:        "https://api.groq.com/openai/v1",
			Model:          "llama-3.3-70b-versatile",
			FastModel:      "llama-3.3-70b-versatile",
			TimeoutSeconds: 30,
		},
		Pipeline: PipelineConfig{
			MaxRetries:              2,
			RetryScope:              "full",
			AnomalyThreshold:        200000,
			GovernanceRiskThreshold: 1.5,
		},
		History: HistoryConfig{
			Path:     filepath.Join(dataDir, "memory_store.json"),
			Capacity: 100,
		},
		Audit: AuditConfig{
			Driver: "sqlite",
			DSN:    filepath.Join(dataDir, "audit.db"),
		},
		Server: ServerConfig{
			Address:             ":8080",
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 120,
			MaxBodyBytes:        1 << 20,
			CORSOrigins:         []string{"*"},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "fibre-cost",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file, then applies the environment overlay.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, config); err != nil {
				return nil, ferrors.Wrap(ferrors.TypeConfig, "invalid config file "+path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overlays FIBRE_* environment variables. GROQ_API_KEY and
// OPENAI_API_KEY are honoured when no explicit oracle key is set.
func (c *Config) ApplyEnv() error {
	sections := []interface{}{&c.Catalog, &c.Oracle, &c.Pipeline, &c.History, &c.Audit, &c.Server, &c.Telemetry}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return ferrors.Wrap(ferrors.TypeConfig, "environment overlay", err)
		}
	}

	if c.Oracle.APIKey == "" {
		if key := os.Getenv("GROQ_API_KEY"); key != "" {
			c.Oracle.APIKey = key
		} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			c.Oracle.APIKey = key
			if os.Getenv("FIBRE_ORACLE_BASE_URL") == "" {
				c.Oracle.BaseURL = "https://api.openai.com/v1"
				c.Oracle.Model = "gpt-4o"
				c.Oracle.FastModel = "gpt-4o-mini"
			}
		}
	}
	if level := os.Getenv("FIBRE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	return nil
}

// Validate enforces value ranges
func (c *Config) Validate() error {
	switch c.Oracle.Provider {
	case "openai", "stub", "none":
	default:
		return ferrors.Config(fmt.Sprintf("oracle.provider must be openai, stub or none, got %q", c.Oracle.Provider))
	}
	switch c.Pipeline.RetryScope {
	case "full", "validation":
	default:
		return ferrors.Config(fmt.Sprintf("pipeline.retry_scope must be full or validation, got %q", c.Pipeline.RetryScope))
	}
	switch c.Audit.Driver {
	case "sqlite", "postgres", "memory", "none":
	default:
		return ferrors.Config(fmt.Sprintf("audit.driver must be sqlite, postgres, memory or none, got %q", c.Audit.Driver))
	}
	if c.Pipeline.MaxRetries < 0 {
		return ferrors.Config("pipeline.max_retries must not be negative")
	}
	if c.History.Capacity <= 0 {
		return ferrors.Config("history.capacity must be positive")
	}
	if c.Oracle.TimeoutSeconds <= 0 {
		return ferrors.Config("oracle.timeout_seconds must be positive")
	}
	if c.Catalog.Path == "" {
		return ferrors.Config("catalog.path is required")
	}
	return nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
