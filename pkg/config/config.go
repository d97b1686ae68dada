package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/byteserve/internal/bytesize"
)

// Config represents the ByteServe configuration.
//
// This structure captures static configuration for the object-storage
// service: logging, the HTTP server, the metadata catalog, the blob
// store, the KV cache, and the per-surface behavior of the S3, public,
// file-request and image-transform wire surfaces.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (BYTESERVE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Server configures the HTTP listener shared by all wire surfaces
	// (S3, public API, file-request, image transform).
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Storage configures the content-addressed blob store on local disk.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Database configures the relational metadata catalog (Postgres).
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Cache configures the embedded KV cache used for path resolution,
	// transform results, and session state.
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// S3 configures the S3-compatible wire surface.
	S3 S3Config `mapstructure:"s3" yaml:"s3"`

	// Stats configures the usage-counter aggregator.
	Stats StatsConfig `mapstructure:"stats" yaml:"stats"`

	// ImageTransform configures the on-the-fly image processing pipeline.
	ImageTransform ImageTransformConfig `mapstructure:"image_transform" yaml:"image_transform"`

	// FileRequest configures the out-of-band chunked upload protocol.
	FileRequest FileRequestConfig `mapstructure:"file_request" yaml:"file_request"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing and
// continuous profiling. Carried as an ambient concern even though
// the distilled spec's Non-goals exclude cross-node replication —
// profiling and tracing are orthogonal to that exclusion.
type TelemetryConfig struct {
	Enabled    bool            `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string          `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool            `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64         `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types,omitempty"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ServerConfig configures the shared HTTP listener.
type ServerConfig struct {
	Host         string        `mapstructure:"host" yaml:"host"`
	Port         int           `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// StorageConfig configures the content-addressed blob store.
type StorageConfig struct {
	// BlobRoot is the directory holding published blobs, stored at
	// <BlobRoot>/<bucketName>/<objectID>.
	BlobRoot string `mapstructure:"blob_root" validate:"required" yaml:"blob_root"`

	// TempDir is validated but not read by the blob store, which
	// stages scratch files under <BlobRoot>/.temp (purged on startup)
	// and publishes them by renaming into place.
	TempDir string `mapstructure:"temp_dir" validate:"required" yaml:"temp_dir"`
}

// DatabaseConfig configures the Postgres metadata catalog.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn" validate:"required" yaml:"dsn"`
	MaxOpenConns    int32         `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int32         `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate" yaml:"auto_migrate"`
}

// PoolConfig returns a pgxpool.Config seeded from this database config,
// applying the pool-sizing fields mapstructure decoded from YAML/env.
func (d DatabaseConfig) PoolConfig() (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(d.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if d.MaxOpenConns > 0 {
		poolCfg.MaxConns = d.MaxOpenConns
	}
	if d.MaxIdleConns > 0 {
		poolCfg.MinConns = d.MaxIdleConns
	}
	if d.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = d.ConnMaxLifetime
	}
	return poolCfg, nil
}

// CacheConfig configures the embedded badger KV cache.
type CacheConfig struct {
	// Path is the directory for the badger data files.
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// DefaultTTL is defaulted but not read by any component; the
	// path-resolution cache TTL comes from each bucket's path-caching
	// config.
	DefaultTTL time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`
}

// S3Config configures the S3-compatible wire surface.
type S3Config struct {
	Region            string             `mapstructure:"region" yaml:"region"`
	DefaultPartSize   bytesize.ByteSize  `mapstructure:"default_part_size" yaml:"default_part_size,omitempty"`
	MaxPartSize       bytesize.ByteSize  `mapstructure:"max_part_size" yaml:"max_part_size,omitempty"`
	SignatureMaxSkew  time.Duration      `mapstructure:"signature_max_skew" yaml:"signature_max_skew"`
}

// StatsConfig configures the usage-counter aggregator.
type StatsConfig struct {
	FlushInterval time.Duration `mapstructure:"flush_interval" yaml:"flush_interval"`
}

// ImageTransformConfig configures the on-the-fly image processing pipeline.
type ImageTransformConfig struct {
	// MaxDecodeSize is defaulted but not read by any component; the
	// transform pipeline does not check the source image size.
	MaxDecodeSize bytesize.ByteSize `mapstructure:"max_decode_size" yaml:"max_decode_size,omitempty"`

	// CacheSize is defaulted but not read by any component; the
	// transform cache is bounded per result by each bucket's
	// image-transform cache config.
	CacheSize bytesize.ByteSize `mapstructure:"cache_size" yaml:"cache_size,omitempty"`

	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// FileRequestConfig configures the out-of-band chunked upload protocol.
type FileRequestConfig struct {
	SessionTTL   time.Duration     `mapstructure:"session_ttl" yaml:"session_ttl"`
	MaxChunkSize bytesize.ByteSize `mapstructure:"max_chunk_size" yaml:"max_chunk_size,omitempty"`

	// BaseURL is the externally-reachable address the generated upload
	// scripts target (e.g. "https://store.example.com"). Falls back to
	// http://<Server.Host>:<Server.Port> when unset, which is only
	// correct for same-host testing.
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the
// config file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  byteserve init\n\n"+
				"Or specify a custom config file:\n"+
				"  byteserve start --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("BYTESERVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for ByteSize and
// time.Duration, matching the teacher's mapstructure wiring.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "byteserve")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "byteserve")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

// InitConfig writes a default configuration file to the default
// location, refusing to overwrite an existing file unless force is set.
func InitConfig(force bool) (string, error) {
	return GetDefaultConfigPath(), InitConfigToPath(GetDefaultConfigPath(), force)
}

// InitConfigToPath writes a default configuration file to path,
// refusing to overwrite an existing file unless force is set.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}
	return SaveConfig(GetDefaultConfig(), path)
}
