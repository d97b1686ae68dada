package config

import (
	"strings"
	"time"

	"github.com/marmos91/byteserve/internal/bytesize"
)

// GetDefaultConfig returns a Config populated entirely with defaults.
// Used when no config file is found on disk.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values (0, "", false) are replaced with defaults;
// explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applyDatabaseDefaults(&cfg.Database)
	applyCacheDefaults(&cfg.Cache)
	applyS3Defaults(&cfg.S3)
	applyStatsDefaults(&cfg.Stats)
	applyImageTransformDefaults(&cfg.ImageTransform)
	applyFileRequestDefaults(&cfg.FileRequest)
	applyMetricsDefaults(&cfg.Metrics)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.BlobRoot == "" {
		cfg.BlobRoot = "/var/lib/byteserve/blobs"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = "/var/lib/byteserve/blobs/.temp"
	}
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 20
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = time.Hour
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Path == "" {
		cfg.Path = "/var/lib/byteserve/cache"
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
}

func applyS3Defaults(cfg *S3Config) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.DefaultPartSize == 0 {
		cfg.DefaultPartSize = 8 * bytesize.MiB
	}
	if cfg.MaxPartSize == 0 {
		cfg.MaxPartSize = 5 * bytesize.GiB
	}
	if cfg.SignatureMaxSkew == 0 {
		cfg.SignatureMaxSkew = 15 * time.Minute
	}
}

func applyStatsDefaults(cfg *StatsConfig) {
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = time.Minute
	}
}

func applyImageTransformDefaults(cfg *ImageTransformConfig) {
	if cfg.MaxDecodeSize == 0 {
		cfg.MaxDecodeSize = 32 * bytesize.MiB
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 512 * bytesize.MiB
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
}

func applyFileRequestDefaults(cfg *FileRequestConfig) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.MaxChunkSize == 0 {
		cfg.MaxChunkSize = 16 * bytesize.MiB
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}
