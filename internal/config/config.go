// Package config loads catindex configuration.
//
// Configuration is layered in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. User/global config ($XDG_CONFIG_HOME/catindex/config.yaml)
//  3. Explicit config file (--config)
//  4. Environment variables (CATINDEX_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Worker      WorkerConfig      `yaml:"worker" json:"worker"`
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`
	Catalog     CatalogConfig     `yaml:"catalog" json:"catalog"`
	Index       IndexConfig       `yaml:"index" json:"index"`
	Daemon      DaemonConfig      `yaml:"daemon" json:"daemon"`
	DeadLetter  DeadLetterConfig  `yaml:"deadletter" json:"deadletter"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// WorkerConfig configures the single job consumer.
type WorkerConfig struct {
	// TickInterval is the sleep between worker ticks.
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`
	// HeartbeatInterval is how often a heartbeat is logged regardless of state.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	// RefreshInterval is how often index client handles are recreated.
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
	// InitialState is the worker state at startup (active, sleep, flush, flush_sleep, flush_active).
	InitialState string `yaml:"initial_state" json:"initial_state"`
	// IndexRetry bounds retries of failed index writes. MaxRetries 0 drops on first failure.
	IndexRetry RetryConfig `yaml:"index_retry" json:"index_retry"`
}

// RetryConfig is the YAML shape of a bounded exponential backoff.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
}

// CredentialsConfig configures the token service used to lease catalog sessions.
type CredentialsConfig struct {
	// ServiceURL is the token service endpoint.
	ServiceURL string `yaml:"service_url" json:"service_url"`
	// TokenFile holds the engine's service credential. Missing or empty means
	// no credential is configured, which is permanent.
	TokenFile string `yaml:"token_file" json:"token_file"`
	// SafetyMargin is subtracted from every reported lease expiry.
	SafetyMargin time.Duration `yaml:"safety_margin" json:"safety_margin"`
	// SweepInterval is how often cached leases are probed.
	SweepInterval   time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
	RequestTimeout  time.Duration `yaml:"request_timeout" json:"request_timeout"`
	BreakerFailures int           `yaml:"breaker_failures" json:"breaker_failures"`
	BreakerReset    time.Duration `yaml:"breaker_reset" json:"breaker_reset"`
	// WatchTokenFile evicts all leases when the token file changes.
	WatchTokenFile bool `yaml:"watch_token_file" json:"watch_token_file"`
}

// CatalogConfig configures catalog reads.
type CatalogConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// PathCacheSize bounds the path to id memo.
	PathCacheSize int `yaml:"path_cache_size" json:"path_cache_size"`
	// InvalidatePathsOnDelete drops cached path ids under a deleted or moved path.
	InvalidatePathsOnDelete bool `yaml:"invalidate_paths_on_delete" json:"invalidate_paths_on_delete"`
}

// IndexConfig configures the search index clients.
type IndexConfig struct {
	// QueryPath is the index directory used by the read path. Empty shares IngestPath.
	QueryPath string `yaml:"query_path" json:"query_path"`
	// QueryReplicated declares that an outside process copies the ingest
	// index into a QueryPath that differs from IngestPath. The engine only
	// ever writes IngestPath.
	QueryReplicated bool `yaml:"query_replicated" json:"query_replicated"`
	// IngestPath is the index directory written by the worker. Empty means in-memory.
	IngestPath string `yaml:"ingest_path" json:"ingest_path"`
	// MappingFile is an optional JSONC field-type schema override.
	MappingFile string `yaml:"mapping_file" json:"mapping_file"`
	// BulkSize is the maximum number of documents per bulk upsert.
	BulkSize int `yaml:"bulk_size" json:"bulk_size"`
}

// DaemonConfig configures the admin and event sockets.
type DaemonConfig struct {
	SocketPath       string        `yaml:"socket_path" json:"socket_path"`
	EventsSocketPath string        `yaml:"events_socket_path" json:"events_socket_path"`
	PIDPath          string        `yaml:"pid_path" json:"pid_path"`
	MetricsAddr      string        `yaml:"metrics_addr" json:"metrics_addr"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
}

// DeadLetterConfig configures the optional store of dropped jobs.
type DeadLetterConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	MaxRows int    `yaml:"max_rows" json:"max_rows"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	Format    string `yaml:"format" json:"format"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// validStates mirrors the worker state names.
var validStates = map[string]bool{
	"active":       true,
	"sleep":        true,
	"flush":        true,
	"flush_sleep":  true,
	"flush_active": true,
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	base := DataDir()
	return &Config{
		Version: 1,
		Worker: WorkerConfig{
			TickInterval:      100 * time.Millisecond,
			HeartbeatInterval: 60 * time.Second,
			RefreshInterval:   time.Hour,
			InitialState:      "active",
			IndexRetry: RetryConfig{
				MaxRetries:   0,
				InitialDelay: 200 * time.Millisecond,
				MaxDelay:     5 * time.Second,
			},
		},
		Credentials: CredentialsConfig{
			TokenFile:       filepath.Join(base, "service.token"),
			SafetyMargin:    60 * time.Second,
			SweepInterval:   5 * time.Minute,
			RequestTimeout:  10 * time.Second,
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
			WatchTokenFile:  true,
		},
		Catalog: CatalogConfig{
			RequestTimeout:          30 * time.Second,
			PathCacheSize:           100000,
			InvalidatePathsOnDelete: true,
		},
		Index: IndexConfig{
			IngestPath: filepath.Join(base, "index.bleve"),
			BulkSize:   500,
		},
		Daemon: DaemonConfig{
			SocketPath:       filepath.Join(base, "catindex.sock"),
			EventsSocketPath: filepath.Join(base, "events.sock"),
			PIDPath:          filepath.Join(base, "catindex.pid"),
			MetricsAddr:      "127.0.0.1:9464",
			Timeout:          30 * time.Second,
		},
		DeadLetter: DeadLetterConfig{
			Enabled: false,
			Path:    filepath.Join(base, "deadletter.db"),
			MaxRows: 10000,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			File:      filepath.Join(base, "logs", "engine.log"),
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// DataDir returns the engine state directory (~/.catindex).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".catindex")
	}
	return filepath.Join(home, ".catindex")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/catindex/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/catindex/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "catindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "catindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "catindex", "config.yaml")
}

// Load builds the effective configuration. explicit may be empty.
func Load(explicit string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if explicit != "" {
		if !fileExists(explicit) {
			return nil, fmt.Errorf("config file not found: %s", explicit)
		}
		if err := cfg.loadYAML(explicit); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML decodes path on top of c, so keys absent from the file keep
// their current values.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies CATINDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"CATINDEX_WORKER_STATE":      &c.Worker.InitialState,
		"CATINDEX_TOKEN_SERVICE_URL": &c.Credentials.ServiceURL,
		"CATINDEX_TOKEN_FILE":        &c.Credentials.TokenFile,
		"CATINDEX_INDEX_PATH":        &c.Index.IngestPath,
		"CATINDEX_QUERY_INDEX_PATH":  &c.Index.QueryPath,
		"CATINDEX_MAPPING_FILE":      &c.Index.MappingFile,
		"CATINDEX_SOCKET":            &c.Daemon.SocketPath,
		"CATINDEX_EVENTS_SOCKET":     &c.Daemon.EventsSocketPath,
		"CATINDEX_METRICS_ADDR":      &c.Daemon.MetricsAddr,
		"CATINDEX_LOG_LEVEL":         &c.Logging.Level,
		"CATINDEX_DEADLETTER_PATH":   &c.DeadLetter.Path,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"CATINDEX_TICK_INTERVAL":    &c.Worker.TickInterval,
		"CATINDEX_REFRESH_INTERVAL": &c.Worker.RefreshInterval,
		"CATINDEX_SAFETY_MARGIN":    &c.Credentials.SafetyMargin,
		"CATINDEX_SWEEP_INTERVAL":   &c.Credentials.SweepInterval,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("CATINDEX_BULK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CATINDEX_BULK_SIZE: %w", err)
		}
		c.Index.BulkSize = n
	}
	if v := os.Getenv("CATINDEX_DEADLETTER_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CATINDEX_DEADLETTER_ENABLED: %w", err)
		}
		c.DeadLetter.Enabled = b
	}

	return nil
}

// expandPaths replaces a leading "~/" in every path setting with the
// user's home directory.
func (c *Config) expandPaths() {
	for _, p := range []*string{
		&c.Credentials.TokenFile,
		&c.Index.IngestPath,
		&c.Index.QueryPath,
		&c.Index.MappingFile,
		&c.Daemon.SocketPath,
		&c.Daemon.EventsSocketPath,
		&c.Daemon.PIDPath,
		&c.DeadLetter.Path,
		&c.Logging.File,
	} {
		*p = ExpandHome(*p)
	}
}

// ExpandHome expands a leading "~" or "~/" to the home directory.
// Other paths are returned unchanged.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Worker.TickInterval <= 0 {
		return fmt.Errorf("worker.tick_interval must be positive, got %s", c.Worker.TickInterval)
	}
	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker.heartbeat_interval must be positive, got %s", c.Worker.HeartbeatInterval)
	}
	if c.Worker.RefreshInterval <= 0 {
		return fmt.Errorf("worker.refresh_interval must be positive, got %s", c.Worker.RefreshInterval)
	}
	if !validStates[strings.ToLower(c.Worker.InitialState)] {
		return fmt.Errorf("worker.initial_state must be one of active, sleep, flush, flush_sleep, flush_active, got %s", c.Worker.InitialState)
	}
	if c.Worker.IndexRetry.MaxRetries < 0 {
		return fmt.Errorf("worker.index_retry.max_retries must be non-negative, got %d", c.Worker.IndexRetry.MaxRetries)
	}

	if c.Credentials.SafetyMargin < 0 {
		return fmt.Errorf("credentials.safety_margin must be non-negative, got %s", c.Credentials.SafetyMargin)
	}
	if c.Credentials.SweepInterval <= 0 {
		return fmt.Errorf("credentials.sweep_interval must be positive, got %s", c.Credentials.SweepInterval)
	}
	if c.Credentials.BreakerFailures < 1 {
		return fmt.Errorf("credentials.breaker_failures must be at least 1, got %d", c.Credentials.BreakerFailures)
	}

	if c.Catalog.PathCacheSize < 1 {
		return fmt.Errorf("catalog.path_cache_size must be at least 1, got %d", c.Catalog.PathCacheSize)
	}
	if c.Index.BulkSize < 1 {
		return fmt.Errorf("index.bulk_size must be at least 1, got %d", c.Index.BulkSize)
	}
	if c.Index.QueryPath != "" && filepath.Clean(c.Index.QueryPath) != filepath.Clean(c.Index.IngestPath) &&
		!c.Index.QueryReplicated {
		return fmt.Errorf("index.query_path %s is never written by the engine; set index.query_replicated once it is filled from %s",
			c.Index.QueryPath, c.Index.IngestPath)
	}

	if c.DeadLetter.Enabled && c.DeadLetter.Path == "" {
		return fmt.Errorf("deadletter.path is required when deadletter.enabled is true")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// QueryIndexPath returns the index directory for the read path.
func (c *Config) QueryIndexPath() string {
	if c.Index.QueryPath != "" {
		return c.Index.QueryPath
	}
	return c.Index.IngestPath
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
