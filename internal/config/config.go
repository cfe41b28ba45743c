package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/Avimitin/bili-live-notify-bot/internal/batch"
	"github.com/Avimitin/bili-live-notify-bot/internal/client"
	"github.com/Avimitin/bili-live-notify-bot/internal/telemetry"
	pkgconfig "github.com/Avimitin/bili-live-notify-bot/pkg/config"
	"github.com/Avimitin/bili-live-notify-bot/pkg/pubsub"
	"github.com/Avimitin/bili-live-notify-bot/pkg/storage"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Platform  client.Config
	Sync      SyncConfig
	Notify    pubsub.Config
	Archive   ArchiveConfig
	Telemetry telemetry.Config
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type SyncConfig struct {
	Interval           time.Duration `mapstructure:"interval"`
	StalenessThreshold time.Duration `mapstructure:"staleness_threshold"`
	MaxBatchSize       int           `mapstructure:"max_batch_size"`
	Parallelism        int           `mapstructure:"parallelism"`
	RunOnStart         bool          `mapstructure:"run_on_start"`
	SeedRooms          []int64       `mapstructure:"seed_rooms"`
}

// ArchiveConfig selects where pass reports are kept. Driver "none"
// disables archiving.
type ArchiveConfig struct {
	Storage storage.Config `mapstructure:",squash"`
	Prefix  string         `mapstructure:"prefix"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads ./config/config.yaml (if present) and environment overrides.
func Load() (*Config, error) {
	return LoadFrom("./config", "config")
}

// LoadFrom is Load with an explicit config directory and file name.
func LoadFrom(configPath, configName string) (*Config, error) {
	v, err := pkgconfig.Load(configPath, configName)
	if err != nil {
		return nil, err
	}

	setDefaults(v)
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "live_status")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/live_status.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("platform.base_url", client.DefaultBaseURL)
	v.SetDefault("platform.timeout", client.DefaultTimeout)
	v.SetDefault("platform.user_agent", client.DefaultUserAgent)
	v.SetDefault("sync.interval", 30*time.Second)
	v.SetDefault("sync.staleness_threshold", 60*time.Second)
	v.SetDefault("sync.max_batch_size", 50)
	v.SetDefault("sync.parallelism", 4)
	v.SetDefault("sync.run_on_start", true)
	v.SetDefault("sync.seed_rooms", []int64{})

	pubsubDefaults := pubsub.DefaultConfig()
	v.SetDefault("notify.driver", "none")
	v.SetDefault("notify.redis.address", pubsubDefaults.Redis.Address)
	v.SetDefault("notify.redis.pool_size", pubsubDefaults.Redis.PoolSize)
	v.SetDefault("notify.redis.read_timeout", pubsubDefaults.Redis.ReadTimeout)
	v.SetDefault("notify.redis.write_timeout", pubsubDefaults.Redis.WriteTimeout)
	v.SetDefault("notify.kafka.brokers", pubsubDefaults.Kafka.Brokers)
	v.SetDefault("notify.kafka.partitions", pubsubDefaults.Kafka.Partitions)

	v.SetDefault("archive.driver", "none")
	v.SetDefault("archive.prefix", "reports")
	v.SetDefault("archive.local.base_path", "./data/archive")
	v.SetDefault("archive.s3.region", "us-east-1")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", telemetry.DefaultEndpoint)
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.interval", telemetry.DefaultMetricsInterval)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("database.driver", "DB_DRIVER")
	_ = v.BindEnv("database.host", "DB_HOST")
	_ = v.BindEnv("database.port", "DB_PORT")
	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("database.dbname", "DB_NAME")
	_ = v.BindEnv("database.sslmode", "DB_SSLMODE")
	_ = v.BindEnv("database.file_path", "DB_FILE_PATH")
	_ = v.BindEnv("database.max_idle_conns", "DB_MAX_IDLE_CONNS")
	_ = v.BindEnv("database.max_open_conns", "DB_MAX_OPEN_CONNS")
	_ = v.BindEnv("database.conn_max_lifetime", "DB_CONN_MAX_LIFETIME")
	_ = v.BindEnv("platform.base_url", "PLATFORM_BASE_URL")
	_ = v.BindEnv("platform.timeout", "PLATFORM_TIMEOUT")
	_ = v.BindEnv("sync.interval", "SYNC_INTERVAL")
	_ = v.BindEnv("sync.staleness_threshold", "SYNC_STALENESS_THRESHOLD")
	_ = v.BindEnv("sync.max_batch_size", "SYNC_MAX_BATCH_SIZE")
	_ = v.BindEnv("sync.parallelism", "SYNC_PARALLELISM")
	_ = v.BindEnv("sync.run_on_start", "SYNC_RUN_ON_START")
	_ = v.BindEnv("sync.seed_rooms", "SYNC_SEED_ROOMS")
	_ = v.BindEnv("notify.driver", "NOTIFY_DRIVER")
	_ = v.BindEnv("notify.redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("notify.redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("notify.kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("archive.driver", "ARCHIVE_DRIVER")
	_ = v.BindEnv("archive.local.base_path", "ARCHIVE_BASE_PATH")
	_ = v.BindEnv("archive.s3.endpoint", "S3_ENDPOINT")
	_ = v.BindEnv("archive.s3.bucket", "S3_BUCKET")
	_ = v.BindEnv("archive.s3.access_key_id", "S3_ACCESS_KEY_ID")
	_ = v.BindEnv("archive.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	_ = v.BindEnv("telemetry.enabled", "TELEMETRY_ENABLED")
	_ = v.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}

// Validate rejects settings the sync engine cannot run with.
func (c *Config) Validate() error {
	s := c.Sync
	switch {
	case s.MaxBatchSize < 1 || s.MaxBatchSize > batch.MaxPlatformBatchSize:
		return fmt.Errorf("%w: sync.max_batch_size must be in [1, %d], got %d", ErrInvalidConfig, batch.MaxPlatformBatchSize, s.MaxBatchSize)
	case s.StalenessThreshold <= 0:
		return fmt.Errorf("%w: sync.staleness_threshold must be positive, got %s", ErrInvalidConfig, s.StalenessThreshold)
	case s.Interval <= 0:
		return fmt.Errorf("%w: sync.interval must be positive, got %s", ErrInvalidConfig, s.Interval)
	case s.Parallelism < 1:
		return fmt.Errorf("%w: sync.parallelism must be at least 1, got %d", ErrInvalidConfig, s.Parallelism)
	}

	switch c.Notify.Driver {
	case "none", "redis", "kafka":
	default:
		return fmt.Errorf("%w: unsupported notify.driver %q", ErrInvalidConfig, c.Notify.Driver)
	}

	switch c.Archive.Storage.Driver {
	case "none", "local":
	case "s3":
		if c.Archive.Storage.S3.Bucket == "" {
			return fmt.Errorf("%w: archive.s3.bucket is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported archive.driver %q", ErrInvalidConfig, c.Archive.Storage.Driver)
	}
	return nil
}
