package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dshills/embedbridge/engine"
	"github.com/dshills/embedbridge/index"
	"github.com/dshills/embedbridge/persistence"
	"github.com/dshills/embedbridge/request"
	"gopkg.in/yaml.v3"
)

// DefaultStoragePath is used when Initialize is called without a path
const DefaultStoragePath = "./chroma_data"

// ConfigPathEnv names the environment variable FromEnv reads the config
// file path from
const ConfigPathEnv = "EMBEDBRIDGE_CONFIG"

// Config represents the complete embedbridge configuration
type Config struct {
	// Storage configuration
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Engine configuration
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Runtime configuration
	Runtime RuntimeConfig `yaml:"runtime" json:"runtime"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// StorageConfig describes where and how engine data is stored
type StorageConfig struct {
	Path        string        `yaml:"path" json:"path"`
	Backend     string        `yaml:"backend" json:"backend"`
	WAL         WALConfig     `yaml:"wal" json:"wal"`
	BoltTimeout time.Duration `yaml:"bolt_timeout" json:"bolt_timeout"`
	SyncWrites  bool          `yaml:"sync_writes" json:"sync_writes"`
}

// WALConfig contains write-ahead log configuration
type WALConfig struct {
	Enabled bool  `yaml:"enabled" json:"enabled"`
	Sync    bool  `yaml:"sync" json:"sync"`
	MaxSize int64 `yaml:"max_size" json:"max_size"`
}

// EngineConfig contains engine tuning
type EngineConfig struct {
	// Number of collection segments kept in memory
	CacheCapacity int `yaml:"cache_capacity" json:"cache_capacity"`

	// Largest record batch accepted by add, update and upsert
	MaxBatchSize int `yaml:"max_batch_size" json:"max_batch_size"`

	// Segment snapshot codec: zstd, lz4 or none
	SnapshotCompression string `yaml:"snapshot_compression" json:"snapshot_compression"`

	// Concurrent searches per query call
	QueryParallelism int `yaml:"query_parallelism" json:"query_parallelism"`
}

// RuntimeConfig sizes the per-handle executor
type RuntimeConfig struct {
	Workers int `yaml:"workers" json:"workers"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	Format  string `yaml:"format" json:"format"`
	Service string `yaml:"service" json:"service"`
	// Output is a file path or "stderr"
	Output string `yaml:"output" json:"output"`
}

// LoadConfig loads configuration with the following precedence:
// 1. Environment variables
// 2. Configuration file (if configPath is not empty)
// 3. Default values
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFromFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	}

	if err := loadConfigFromEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// FromEnv loads the file named by EMBEDBRIDGE_CONFIG, if any, and applies
// environment overrides
func FromEnv() (*Config, error) {
	return LoadConfig(os.Getenv(ConfigPathEnv))
}

// loadConfigFromFile loads configuration from a YAML file
func loadConfigFromFile(path string, config *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, config)
}

// loadConfigFromEnv applies EMBEDBRIDGE_* environment variables
func loadConfigFromEnv(config *Config) error {
	if path := os.Getenv("EMBEDBRIDGE_STORAGE_PATH"); path != "" {
		config.Storage.Path = path
	}
	if backend := os.Getenv("EMBEDBRIDGE_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}
	if err := envBool("EMBEDBRIDGE_WAL_ENABLED", &config.Storage.WAL.Enabled); err != nil {
		return err
	}
	if err := envBool("EMBEDBRIDGE_WAL_SYNC", &config.Storage.WAL.Sync); err != nil {
		return err
	}
	if v := os.Getenv("EMBEDBRIDGE_WAL_MAX_SIZE"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid EMBEDBRIDGE_WAL_MAX_SIZE %q: %w", v, err)
		}
		config.Storage.WAL.MaxSize = size
	}
	if err := envInt("EMBEDBRIDGE_CACHE_CAPACITY", &config.Engine.CacheCapacity); err != nil {
		return err
	}
	if err := envInt("EMBEDBRIDGE_MAX_BATCH_SIZE", &config.Engine.MaxBatchSize); err != nil {
		return err
	}
	if v := os.Getenv("EMBEDBRIDGE_SNAPSHOT_COMPRESSION"); v != "" {
		config.Engine.SnapshotCompression = v
	}
	if err := envInt("EMBEDBRIDGE_RUNTIME_WORKERS", &config.Runtime.Workers); err != nil {
		return err
	}
	if level := os.Getenv("EMBEDBRIDGE_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("EMBEDBRIDGE_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("EMBEDBRIDGE_LOG_OUTPUT"); output != "" {
		config.Logging.Output = output
	}
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	*dst = n
	return nil
}

func envBool(name string, dst *bool) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	*dst = b
	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:    DefaultStoragePath,
			Backend: string(persistence.PersistenceBolt),
			WAL: WALConfig{
				Enabled: true,
				MaxSize: persistence.DefaultWALMaxSize,
			},
			BoltTimeout: time.Second,
		},
		Engine: EngineConfig{
			CacheCapacity:       index.DefaultCacheCapacity,
			MaxBatchSize:        request.DefaultMaxBatchSize,
			SnapshotCompression: string(index.CompressionZstd),
			QueryParallelism:    4,
		},
		Runtime: RuntimeConfig{
			Workers: 4,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "json",
			Service: "embedbridge",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := persistence.ValidateConfig(c.PersistenceConfig()); err != nil {
		return fmt.Errorf("persistence config validation failed: %w", err)
	}

	if c.Engine.CacheCapacity < 1 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.Engine.CacheCapacity)
	}
	if c.Engine.MaxBatchSize < 1 {
		return fmt.Errorf("max batch size must be positive, got %d", c.Engine.MaxBatchSize)
	}
	if c.Engine.QueryParallelism < 1 {
		return fmt.Errorf("query parallelism must be positive, got %d", c.Engine.QueryParallelism)
	}
	if _, err := index.ParseCompression(c.Engine.SnapshotCompression); err != nil {
		return err
	}
	if c.Runtime.Workers < 1 {
		return fmt.Errorf("runtime workers must be positive, got %d", c.Runtime.Workers)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// PersistenceConfig converts the storage section to a persistence config
func (c *Config) PersistenceConfig() persistence.PersistenceConfig {
	config := persistence.PersistenceConfig{
		Type:        persistence.PersistenceType(c.Storage.Backend),
		Path:        c.Storage.Path,
		BoltTimeout: c.Storage.BoltTimeout,
		SyncWrites:  c.Storage.SyncWrites,
	}
	if c.Storage.WAL.Enabled {
		config.WAL = &persistence.WALConfig{
			MaxSize:  c.Storage.WAL.MaxSize,
			SyncMode: c.Storage.WAL.Sync,
		}
	}
	return config
}

// EngineConfig converts the engine section to an engine config
func (c *Config) EngineConfig(allowReset bool) engine.Config {
	compression, err := index.ParseCompression(c.Engine.SnapshotCompression)
	if err != nil {
		compression = index.CompressionZstd
	}
	return engine.Config{
		AllowReset:       allowReset,
		CacheCapacity:    c.Engine.CacheCapacity,
		Compression:      compression,
		QueryParallelism: c.Engine.QueryParallelism,
	}
}
