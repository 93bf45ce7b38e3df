// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Primary   PrimaryConfig   `mapstructure:"primary"`
	Secondary SecondaryConfig `mapstructure:"secondary"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Parser    ParserConfig    `mapstructure:"parser"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// DiscoveryConfig governs the scrolling feed session.
type DiscoveryConfig struct {
	FeedURL           string `mapstructure:"feed_url"`
	LinkPattern       string `mapstructure:"link_pattern"`
	TargetCount       int    `mapstructure:"target_count"`
	MaxRounds         int    `mapstructure:"max_rounds"`
	StaleThreshold    int    `mapstructure:"stale_threshold"`
	Headless          bool   `mapstructure:"headless"`
	UserAgent         string `mapstructure:"user_agent"`
	NavTimeoutSeconds int    `mapstructure:"nav_timeout_seconds"`
}

// PrimaryConfig configures the rate-limited remote text backend.
type PrimaryConfig struct {
	Endpoint       string  `mapstructure:"endpoint"`
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxParallel    int     `mapstructure:"max_parallel"`
	QPS            float64 `mapstructure:"qps"`
}

// SecondaryConfig configures the self-hosted rendering backend.
type SecondaryConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxParallel    int    `mapstructure:"max_parallel"`
	WaitSelector   string `mapstructure:"wait_selector"`
	NoCache        bool   `mapstructure:"no_cache"`
}

// SchedulerConfig governs the dual-backend rotation.
type SchedulerConfig struct {
	PrimaryBatchSize       int `mapstructure:"primary_batch_size"`
	SecondaryBatchSize     int `mapstructure:"secondary_batch_size"`
	Workers                int `mapstructure:"workers"`
	FallbackTimeoutSeconds int `mapstructure:"fallback_timeout_seconds"`
	InterBatchDelayMs      int `mapstructure:"inter_batch_delay_ms"`
}

// ParserConfig bounds engagement count validation.
type ParserConfig struct {
	MinCount int64 `mapstructure:"min_count"`
	MaxCount int64 `mapstructure:"max_count"`
}

// StorageConfig sets paths for report and snapshot persistence.
type StorageConfig struct {
	GCSBucket       string `mapstructure:"gcs_bucket"`
	Prefix          string `mapstructure:"prefix"`
	LocalDir        string `mapstructure:"local_dir"`
	RetainSnapshots bool   `mapstructure:"retain_snapshots"`
}

// DBConfig controls access to the relational report store.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for run-completed notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FEEDLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("discovery.target_count", 50)
	v.SetDefault("discovery.max_rounds", 60)
	v.SetDefault("discovery.stale_threshold", 3)
	v.SetDefault("discovery.headless", true)
	v.SetDefault("discovery.user_agent", "feedlens/1.0")
	v.SetDefault("discovery.nav_timeout_seconds", 45)
	v.SetDefault("primary.user_agent", "feedlens/1.0")
	v.SetDefault("primary.timeout_seconds", 30)
	v.SetDefault("primary.max_parallel", 2)
	v.SetDefault("primary.qps", 0.5)
	v.SetDefault("secondary.user_agent", "feedlens/1.0")
	v.SetDefault("secondary.timeout_seconds", 60)
	v.SetDefault("secondary.max_parallel", 4)
	v.SetDefault("secondary.wait_selector", "article")
	v.SetDefault("scheduler.primary_batch_size", 10)
	v.SetDefault("scheduler.secondary_batch_size", 20)
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.fallback_timeout_seconds", 10)
	v.SetDefault("scheduler.inter_batch_delay_ms", 500)
	v.SetDefault("parser.min_count", 1)
	v.SetDefault("parser.max_count", 100_000_000)
	v.SetDefault("storage.prefix", "feedlens")
	v.SetDefault("storage.local_dir", "data/feedlens")
	v.SetDefault("storage.retain_snapshots", false)
	v.SetDefault("db.table", "extraction_reports")
	v.SetDefault("db.max_conns", 4)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Discovery.TargetCount <= 0 {
		return fmt.Errorf("discovery.target_count must be > 0")
	}
	if c.Scheduler.PrimaryBatchSize <= 0 || c.Scheduler.SecondaryBatchSize <= 0 {
		return fmt.Errorf("scheduler batch sizes must be > 0")
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be > 0")
	}
	if c.Scheduler.FallbackTimeoutSeconds <= 0 {
		return fmt.Errorf("scheduler.fallback_timeout_seconds must be > 0")
	}
	if c.Scheduler.FallbackTimeoutSeconds >= c.Secondary.TimeoutSeconds {
		return fmt.Errorf("scheduler.fallback_timeout_seconds must be shorter than secondary.timeout_seconds")
	}
	if c.Parser.MinCount < 1 {
		return fmt.Errorf("parser.min_count must be >= 1")
	}
	if c.Parser.MaxCount <= c.Parser.MinCount {
		return fmt.Errorf("parser.max_count must be > parser.min_count")
	}
	return nil
}

// PrimaryTimeout returns the primary backend request deadline.
func (c Config) PrimaryTimeout() time.Duration {
	return time.Duration(c.Primary.TimeoutSeconds) * time.Second
}

// SecondaryTimeout returns the secondary backend request deadline.
func (c Config) SecondaryTimeout() time.Duration {
	return time.Duration(c.Secondary.TimeoutSeconds) * time.Second
}

// FallbackTimeout returns the shortened deadline for fallback retries.
func (c Config) FallbackTimeout() time.Duration {
	return time.Duration(c.Scheduler.FallbackTimeoutSeconds) * time.Second
}

// InterBatchDelay returns the pause between dispatched batches.
func (c Config) InterBatchDelay() time.Duration {
	return time.Duration(c.Scheduler.InterBatchDelayMs) * time.Millisecond
}

// NavTimeout returns the browser navigation deadline.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Discovery.NavTimeoutSeconds) * time.Second
}
