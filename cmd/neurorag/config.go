package main

import (
	"errors"
	"time"
)

// Config is the full environment-driven configuration surface. Every field
// reads from a NEURORAG_-prefixed environment variable.
type Config struct {
	Host     string `envconfig:"HOST" default:"0.0.0.0"`
	Port     int    `envconfig:"PORT" default:"8080"`
	GRPCPort int    `envconfig:"GRPC_PORT" default:"8081"`

	IndexKind    string `envconfig:"INDEX_KIND" default:"flat"`
	Dimension    int    `envconfig:"DIMENSION" default:"384"`
	Metric       string `envconfig:"METRIC" default:"cosine"`
	IndexPath    string `envconfig:"INDEX_PATH" default:""`
	MetadataPath string `envconfig:"METADATA_PATH" default:""`
	MaxResults   int    `envconfig:"MAX_RESULTS" default:"100"`

	HNSWM        int `envconfig:"HNSW_M" default:"16"`
	HNSWEfSearch int `envconfig:"HNSW_EF_SEARCH" default:"50"`

	CacheEnabled       bool          `envconfig:"CACHE_ENABLED" default:"true"`
	CacheCapacity      int           `envconfig:"CACHE_CAPACITY" default:"4096"`
	CacheTTL           time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	CacheBucketWidth   float32       `envconfig:"CACHE_BUCKET_WIDTH" default:"0"`
	InvalidateOnInsert bool          `envconfig:"INVALIDATE_ON_INSERT" default:"true"`

	Workers       int           `envconfig:"WORKERS" default:"0"`
	QueueDepth    int           `envconfig:"QUEUE_DEPTH" default:"256"`
	SearchTimeout time.Duration `envconfig:"SEARCH_TIMEOUT" default:"2s"`

	AffinityEnabled  bool  `envconfig:"AFFINITY_ENABLED" default:"false"`
	PreferredDomains []int `envconfig:"PREFERRED_DOMAINS" default:""`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"0"`

	SnapshotInterval time.Duration `envconfig:"SNAPSHOT_INTERVAL" default:"0"`
	StatsInterval    time.Duration `envconfig:"STATS_INTERVAL" default:"1m"`
	WarmupQueries    int           `envconfig:"WARMUP_QUERIES" default:"0"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
}

// Config validation errors
var (
	ErrInvalidPort      = errors.New("port must be between 1 and 65535")
	ErrInvalidDimension = errors.New("dimension must be positive")
	ErrInvalidMetric    = errors.New("metric must be 'l2' or 'cosine'")
	ErrInvalidIndexKind = errors.New("index_kind must be 'flat' or 'hnsw'")
	ErrInvalidCacheTTL  = errors.New("cache_ttl must be positive when cache is enabled")
	ErrInvalidLogFormat = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel  = errors.New("log_level must be debug, info, warn, or error")
)

// ValidateConfig validates the configuration and returns an error if invalid.
func ValidateConfig(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return ErrInvalidPort
	}
	if cfg.Dimension <= 0 {
		return ErrInvalidDimension
	}
	if cfg.Metric != "l2" && cfg.Metric != "cosine" {
		return ErrInvalidMetric
	}
	if cfg.IndexKind != "flat" && cfg.IndexKind != "hnsw" {
		return ErrInvalidIndexKind
	}
	if cfg.CacheEnabled && cfg.CacheTTL <= 0 {
		return ErrInvalidCacheTTL
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		GRPCPort:           8081,
		IndexKind:          "flat",
		Dimension:          384,
		Metric:             "cosine",
		MaxResults:         100,
		HNSWM:              16,
		HNSWEfSearch:       50,
		CacheEnabled:       true,
		CacheCapacity:      4096,
		CacheTTL:           5 * time.Minute,
		InvalidateOnInsert: true,
		QueueDepth:         256,
		SearchTimeout:      2 * time.Second,
		LogFormat:          "json",
		LogLevel:           "info",
	}
}
