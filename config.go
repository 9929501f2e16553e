package taskchain

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// KVBucketConfig configures the NATS JetStream KV bucket used for snapshots.
type KVBucketConfig struct {
	// SnapshotBucket is the bucket name for published task snapshots.
	// Empty disables publishing even when a JetStream context is supplied.
	SnapshotBucket string `yaml:"snapshotBucket"`

	// SnapshotTTL is how long a snapshot remains in KV (0 = no expiration).
	// Snapshots should outlive restarts so the version sequence continues.
	SnapshotTTL time.Duration `yaml:"snapshotTtl"`
}

// Config is the configuration for the Manager.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// QuerySubject is the NATS subject of the remote task query service.
	// Only used by the CLI and by callers building a source.NATSQuerier from config.
	QuerySubject string `yaml:"querySubject"`

	// PageSize is the initial page size of the paginated reader, in owner rows.
	// The reader doubles it temporarily when a single task fills a whole page.
	// Recommended: 100-1000.
	PageSize int `yaml:"pageSize"`

	// InitStatuses restricts the initial full read to these statuses.
	// Default: all active statuses.
	InitStatuses []Status `yaml:"initStatuses"`

	// SyncInterval is how often modified tasks are read after the initial load.
	// Recommended: 1-5 seconds.
	SyncInterval time.Duration `yaml:"syncInterval"`

	// UsersSyncInterval is how often the user population is refreshed.
	// Must be >= SyncInterval. Recommended: 1-10 minutes.
	UsersSyncInterval time.Duration `yaml:"usersSyncInterval"`

	// QueryTimeout bounds one complete paginated read (all pages).
	QueryTimeout time.Duration `yaml:"queryTimeout"`

	// StartupTimeout is the maximum time for the initial full read and first publish.
	StartupTimeout time.Duration `yaml:"startupTimeout"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// RetryBackoffBase is the first delay after a failed synchronization cycle.
	RetryBackoffBase time.Duration `yaml:"retryBackoffBase"`

	// RetryBackoffMax caps the delay between failed synchronization cycles.
	RetryBackoffMax time.Duration `yaml:"retryBackoffMax"`

	// KVBuckets controls NATS JetStream KV bucket configuration.
	KVBuckets KVBucketConfig `yaml:"kvBuckets"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		QuerySubject: "taskchain.tasks",
		PageSize:     300,
		InitStatuses: []Status{
			StatusCreated,
			StatusReady,
			StatusReserved,
			StatusInProgress,
			StatusSuspended,
		},
		SyncInterval:      2 * time.Second,
		UsersSyncInterval: 2 * time.Hour,
		QueryTimeout:      30 * time.Second,
		StartupTimeout:    60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RetryBackoffBase:  500 * time.Millisecond,
		RetryBackoffMax:   30 * time.Second,
		KVBuckets: KVBucketConfig{
			SnapshotBucket: "taskchain-snapshot",
			SnapshotTTL:    0, // No TTL - snapshots persist for version continuity
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.QuerySubject == "" {
		cfg.QuerySubject = defaults.QuerySubject
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = defaults.PageSize
	}
	if len(cfg.InitStatuses) == 0 {
		cfg.InitStatuses = defaults.InitStatuses
	}
	if cfg.SyncInterval == 0 {
		cfg.SyncInterval = defaults.SyncInterval
	}
	if cfg.UsersSyncInterval == 0 {
		cfg.UsersSyncInterval = defaults.UsersSyncInterval
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = defaults.QueryTimeout
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = defaults.StartupTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if cfg.RetryBackoffBase == 0 {
		cfg.RetryBackoffBase = defaults.RetryBackoffBase
	}
	if cfg.RetryBackoffMax == 0 {
		cfg.RetryBackoffMax = defaults.RetryBackoffMax
	}
	// Note: an empty SnapshotBucket disables publishing and SnapshotTTL of 0 means
	// no expiration, so neither gets a default here.
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - PageSize > 0
//   - SyncInterval > 0
//   - UsersSyncInterval >= SyncInterval (users refresh on a sync tick)
//   - QueryTimeout > 0 and StartupTimeout >= QueryTimeout (startup includes a full read)
//   - 0 < RetryBackoffBase <= RetryBackoffMax
//   - every InitStatuses entry is a known status
//
// Returns:
//   - error: Validation error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	if cfg.PageSize <= 0 {
		return fmt.Errorf("%w: PageSize must be > 0, got %d", ErrInvalidConfig, cfg.PageSize)
	}

	if cfg.SyncInterval <= 0 {
		return fmt.Errorf("%w: SyncInterval must be > 0, got %v", ErrInvalidConfig, cfg.SyncInterval)
	}

	if cfg.UsersSyncInterval < cfg.SyncInterval {
		return fmt.Errorf(
			"%w: UsersSyncInterval (%v) must be >= SyncInterval (%v)",
			ErrInvalidConfig, cfg.UsersSyncInterval, cfg.SyncInterval,
		)
	}

	if cfg.QueryTimeout <= 0 {
		return fmt.Errorf("%w: QueryTimeout must be > 0, got %v", ErrInvalidConfig, cfg.QueryTimeout)
	}

	if cfg.StartupTimeout < cfg.QueryTimeout {
		return fmt.Errorf(
			"%w: StartupTimeout (%v) must be >= QueryTimeout (%v) to allow one full read",
			ErrInvalidConfig, cfg.StartupTimeout, cfg.QueryTimeout,
		)
	}

	if cfg.RetryBackoffBase <= 0 || cfg.RetryBackoffBase > cfg.RetryBackoffMax {
		return fmt.Errorf(
			"%w: RetryBackoffBase (%v) must be > 0 and <= RetryBackoffMax (%v)",
			ErrInvalidConfig, cfg.RetryBackoffBase, cfg.RetryBackoffMax,
		)
	}

	for _, s := range cfg.InitStatuses {
		if !s.IsActive() && !s.IsTerminal() {
			return fmt.Errorf("%w: unknown status %q in InitStatuses", ErrInvalidConfig, s)
		}
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in NewManager() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.SyncInterval < 500*time.Millisecond {
		logger.Warn(
			"SyncInterval is very short, the task service will be polled aggressively",
			"syncInterval", cfg.SyncInterval,
			"recommended", "1s or higher",
		)
	}

	if cfg.QueryTimeout > 30*cfg.SyncInterval {
		logger.Warn(
			"QueryTimeout is much larger than SyncInterval, a slow read will delay synchronization",
			"queryTimeout", cfg.QueryTimeout,
			"syncInterval", cfg.SyncInterval,
		)
	}

	for _, s := range cfg.InitStatuses {
		if s.IsTerminal() {
			logger.Warn(
				"InitStatuses contains a terminal status, those tasks never need planning",
				"status", s,
			)
		}
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := taskchain.TestConfig()
//	cfg.PageSize = 4
//	mgr, err := taskchain.NewManager(&cfg, querier)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.PageSize = 10
	cfg.SyncInterval = 50 * time.Millisecond
	cfg.UsersSyncInterval = 200 * time.Millisecond
	cfg.QueryTimeout = 2 * time.Second
	cfg.StartupTimeout = 5 * time.Second
	cfg.ShutdownTimeout = 2 * time.Second
	cfg.RetryBackoffBase = 10 * time.Millisecond
	cfg.RetryBackoffMax = 100 * time.Millisecond

	return cfg
}

// LoadConfig reads a YAML configuration file and applies defaults.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - Config: Parsed configuration with defaults applied
//   - error: Read, parse or validation error
//
// Example:
//
//	cfg, err := taskchain.LoadConfig("taskchain.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML configuration data, applies defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
