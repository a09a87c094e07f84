// Package config handles loading and validating Mlinzi configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for Mlinzi.
type Config struct {
	DataDir       string               `json:"data_dir,omitempty" yaml:"data_dir,omitempty"` // Persistent data directory. Default: ~/.mlinzi/data. Override: MLINZI_DATA_DIR env var.
	Storage       *StorageConfig       `json:"storage,omitempty" yaml:"storage,omitempty"`   // nil = SQLite default (derived from data dir)
	Policy        PolicyConfig         `json:"policy" yaml:"policy"`
	Cache         CacheConfig          `json:"cache" yaml:"cache"`
	Maintenance   *MaintenanceConfig   `json:"maintenance,omitempty" yaml:"maintenance,omitempty"`     // nil = maintenance sweeps disabled
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
}

// StorageConfig configures the persistence backend.
// When nil, defaults to SQLite with the database path derived from the data dir.
type StorageConfig struct {
	Driver   string                 `json:"driver" yaml:"driver"`                         // "sqlite" (default) or "postgres".
	SQLite   *SQLiteStorageConfig   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`     // SQLite-specific settings.
	Postgres *PostgresStorageConfig `json:"postgres,omitempty" yaml:"postgres,omitempty"` // PostgreSQL-specific settings.
}

// StorageDriver returns the configured driver, defaulting to "sqlite".
func (s *StorageConfig) StorageDriver() string {
	if s != nil && s.Driver != "" {
		return s.Driver
	}
	return "sqlite"
}

// SQLiteStorageConfig holds SQLite-specific settings.
type SQLiteStorageConfig struct {
	Path        string `json:"path,omitempty" yaml:"path,omitempty"` // Database file path. Default: derived from data dir.
	JournalMode string `json:"journal_mode" yaml:"journal_mode"`     // "wal" (default), "delete", "truncate", etc.
}

// PostgresStorageConfig holds PostgreSQL-specific settings.
type PostgresStorageConfig struct {
	DSN              string `json:"dsn" yaml:"dsn"`
	MaxOpenConns     int    `json:"max_open_conns" yaml:"max_open_conns"`           // Default: 25
	MaxIdleConns     int    `json:"max_idle_conns" yaml:"max_idle_conns"`           // Default: 5
	ConnMaxLifetimeS int    `json:"conn_max_lifetime_s" yaml:"conn_max_lifetime_s"` // Default: 1800 (30 min)
}

// PolicyConfig tunes the routing policy.
// The confidence thresholds classify agents whose maturity status is absent
// or unrecognized; they are deliberately configurable rather than constants.
type PolicyConfig struct {
	StudentBelow       float64 `json:"student_below" yaml:"student_below"`               // Default: 0.5
	InternBelow        float64 `json:"intern_below" yaml:"intern_below"`                 // Default: 0.7
	SupervisedBelow    float64 `json:"supervised_below" yaml:"supervised_below"`         // Default: 0.9
	ProposalTTLSeconds int     `json:"proposal_ttl_seconds" yaml:"proposal_ttl_seconds"` // How long proposals await review. 0 = 86400s (24h).
}

// ProposalTTL returns the proposal review window as a duration.
func (p PolicyConfig) ProposalTTL() time.Duration {
	if p.ProposalTTLSeconds > 0 {
		return time.Duration(p.ProposalTTLSeconds) * time.Second
	}
	return 24 * time.Hour
}

// CacheConfig tunes the maturity cache.
type CacheConfig struct {
	TTLSeconds   int   `json:"ttl_seconds" yaml:"ttl_seconds"`       // Snapshot lifetime. 0 = 60s.
	MaxCostBytes int64 `json:"max_cost_bytes" yaml:"max_cost_bytes"` // Total size budget. 0 = 1 MiB.
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	if c.TTLSeconds > 0 {
		return time.Duration(c.TTLSeconds) * time.Second
	}
	return 60 * time.Second
}

// MaintenanceConfig configures the background maintenance sweeps.
// Cron expressions are standard 5-field (minute hour dom month dow).
type MaintenanceConfig struct {
	Enabled               bool   `json:"enabled" yaml:"enabled"`
	ProposalSweepCron     string `json:"proposal_sweep_cron" yaml:"proposal_sweep_cron"`         // Default: "*/5 * * * *"
	SessionSweepCron      string `json:"session_sweep_cron" yaml:"session_sweep_cron"`           // Default: "*/10 * * * *"
	AuditRetentionCron    string `json:"audit_retention_cron" yaml:"audit_retention_cron"`       // Default: "0 3 * * *"
	SessionMaxAgeHours    int    `json:"session_max_age_hours" yaml:"session_max_age_hours"`     // Stale-session cutoff. 0 = 24h.
	AuditRetentionDays    int    `json:"audit_retention_days" yaml:"audit_retention_days"`       // 0 = 90 days.
	ProposalRetentionDays int    `json:"proposal_retention_days" yaml:"proposal_retention_days"` // Resolved proposals. 0 = 30 days.
}

// SessionMaxAge returns the stale-session cutoff as a duration.
func (m *MaintenanceConfig) SessionMaxAge() time.Duration {
	if m != nil && m.SessionMaxAgeHours > 0 {
		return time.Duration(m.SessionMaxAgeHours) * time.Hour
	}
	return 24 * time.Hour
}

// AuditRetention returns the blocked-trigger retention window.
func (m *MaintenanceConfig) AuditRetention() time.Duration {
	if m != nil && m.AuditRetentionDays > 0 {
		return time.Duration(m.AuditRetentionDays) * 24 * time.Hour
	}
	return 90 * 24 * time.Hour
}

// ProposalRetention returns how long resolved proposals are kept.
func (m *MaintenanceConfig) ProposalRetention() time.Duration {
	if m != nil && m.ProposalRetentionDays > 0 {
		return time.Duration(m.ProposalRetentionDays) * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

// ObservabilityConfig configures metrics and tracing.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"` // Listen address. Default: ":9190"
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "mlinzi"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// DefaultConfigPath returns the default config file path (~/.mlinzi/config.yaml).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/mlinzi.yaml" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".mlinzi", "config.yaml")
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML, everything
// else for JSON. A missing file at the default path yields the built-in
// defaults; an explicitly given path must exist. Environment variables take
// precedence over config values.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	var cfg Config
	data, err := os.ReadFile(resolved)
	switch {
	case os.IsNotExist(err) && path == DefaultConfigPath():
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	default:
		switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
		case ".yml", ".yaml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
			}
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
			}
		}
	}

	// Environment variable overrides — env vars take precedence over config values.
	if envDD := os.Getenv("MLINZI_DATA_DIR"); envDD != "" {
		cfg.DataDir = envDD
	}
	if envDSN := os.Getenv("MLINZI_DB_DSN"); envDSN != "" {
		if cfg.Storage == nil {
			cfg.Storage = &StorageConfig{Driver: "postgres"}
		}
		if cfg.Storage.Postgres == nil {
			cfg.Storage.Postgres = &PostgresStorageConfig{}
		}
		cfg.Storage.Postgres.DSN = envDSN
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ResolvedDataDir returns the data directory, resolving ~ if needed.
func (c *Config) ResolvedDataDir() string {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		return filepath.Join(home, ".mlinzi", "data")
	}
	resolved, err := resolvePath(c.DataDir)
	if err != nil {
		return c.DataDir
	}
	return resolved
}

// DatabasePath returns the default SQLite database path under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.ResolvedDataDir(), "mlinzi.db")
}

// BlockedLogPath returns the default blocked-trigger log path under the data directory.
func (c *Config) BlockedLogPath() string {
	return filepath.Join(c.ResolvedDataDir(), "blocked.jsonl")
}

// StorageDriverName returns the effective storage driver name.
func (c *Config) StorageDriverName() string {
	if c.Storage != nil {
		return c.Storage.StorageDriver()
	}
	return "sqlite"
}

func (c *Config) validate() error {
	// Storage driver validation.
	if c.Storage != nil && c.Storage.Driver != "" {
		switch c.Storage.Driver {
		case "sqlite", "postgres":
			// valid
		default:
			return fmt.Errorf("storage.driver %q is not supported (use sqlite or postgres)", c.Storage.Driver)
		}
	}
	if c.StorageDriverName() == "postgres" {
		if c.Storage == nil || c.Storage.Postgres == nil || c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("storage.postgres.dsn is required when storage.driver is postgres")
		}
	}

	// Threshold ordering. Zero values mean "use default", so only validate
	// when any are set.
	p := c.Policy
	if p.StudentBelow != 0 || p.InternBelow != 0 || p.SupervisedBelow != 0 {
		if !(p.StudentBelow < p.InternBelow && p.InternBelow < p.SupervisedBelow) {
			return fmt.Errorf("policy thresholds must be strictly increasing: student_below < intern_below < supervised_below")
		}
		if p.StudentBelow <= 0 || p.SupervisedBelow > 1 {
			return fmt.Errorf("policy thresholds must lie in (0,1]")
		}
	}

	if c.Cache.TTLSeconds < 0 {
		return fmt.Errorf("cache.ttl_seconds must not be negative")
	}
	if c.Policy.ProposalTTLSeconds < 0 {
		return fmt.Errorf("policy.proposal_ttl_seconds must not be negative")
	}

	return nil
}

// Thresholds returns the effective confidence thresholds, applying defaults
// for unset values.
func (c *Config) Thresholds() (student, intern, supervised float64) {
	student, intern, supervised = 0.5, 0.7, 0.9
	if c.Policy.StudentBelow > 0 {
		student = c.Policy.StudentBelow
	}
	if c.Policy.InternBelow > 0 {
		intern = c.Policy.InternBelow
	}
	if c.Policy.SupervisedBelow > 0 {
		supervised = c.Policy.SupervisedBelow
	}
	return student, intern, supervised
}

func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}
