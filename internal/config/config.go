// Package config loads the mediakit configuration from defaults, an
// optional mediakit.yml and MEDIAKIT_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	envPrefix  = "MEDIAKIT"
	configName = "mediakit"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	State    StateConfig    `mapstructure:"state"`
	Export   ExportConfig   `mapstructure:"export"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Events   EventsConfig   `mapstructure:"events"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig is optional. Guest sessions stay in memory when Addr is empty.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StateConfig struct {
	GuestTTL     time.Duration `mapstructure:"guest_ttl"`
	HistoryDepth int           `mapstructure:"history_depth"`
	CacheSize    int           `mapstructure:"cache_size"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Compression  string        `mapstructure:"compression"`
}

type ExportConfig struct {
	ArtifactRetention time.Duration `mapstructure:"artifact_retention"`
	JobRetention      time.Duration `mapstructure:"job_retention"`
	RenderTimeout     time.Duration `mapstructure:"render_timeout"`
	ConverterURL      string        `mapstructure:"converter_url"`
	ArtifactDir       string        `mapstructure:"artifact_dir"`
	BaseURL           string        `mapstructure:"base_url"`
}

type WorkerConfig struct {
	Interval        string `mapstructure:"interval"`
	Batch           int    `mapstructure:"batch"`
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
	SweepSchedule   string `mapstructure:"sweep_schedule"`
	MonitorSchedule string `mapstructure:"monitor_schedule"`
}

// EventsConfig enables the optional notifiers. Events are always logged.
type EventsConfig struct {
	KafkaBrokers string `mapstructure:"kafka_brokers"`
	KafkaTopic   string `mapstructure:"kafka_topic"`
	RedisChannel string `mapstructure:"redis_channel"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "mediakit.db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("state.guest_ttl", 24*time.Hour)
	v.SetDefault("state.history_depth", 50)
	v.SetDefault("state.cache_size", 1024)
	v.SetDefault("state.timeout", 5*time.Second)
	v.SetDefault("state.compression", "nop")

	v.SetDefault("export.artifact_retention", 7*24*time.Hour)
	v.SetDefault("export.job_retention", 30*24*time.Hour)
	v.SetDefault("export.render_timeout", 2*time.Minute)
	v.SetDefault("export.converter_url", "")
	v.SetDefault("export.artifact_dir", "./exports")
	v.SetDefault("export.base_url", "/exports")

	v.SetDefault("worker.interval", "@every 1s")
	v.SetDefault("worker.batch", 10)
	v.SetDefault("worker.cleanup_schedule", "@every 1h")
	v.SetDefault("worker.sweep_schedule", "@every 10m")
	v.SetDefault("worker.monitor_schedule", "@every 1m")

	v.SetDefault("events.kafka_brokers", "")
	v.SetDefault("events.kafka_topic", "mediakit-events")
	v.SetDefault("events.redis_channel", "")

	v.SetDefault("metrics.addr", ":9090")
}

// Load reads the configuration. paths are searched for mediakit.yml in
// order; a missing file is not an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName(configName)
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if len(paths) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			logrus.Infof("using config file %s", v.ConfigFileUsed())
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfig loads the configuration from the working directory and
// /etc/mediakit, exiting the process when it is invalid.
func LoadConfig() *Config {
	cfg, err := Load(".", "/etc/mediakit")
	if err != nil {
		logrus.Fatalf("error loading config: %v", err)
	}

	return cfg
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}
	if c.State.HistoryDepth < 1 {
		return fmt.Errorf("history depth must be positive, got %d", c.State.HistoryDepth)
	}
	if c.State.CacheSize < 1 {
		return fmt.Errorf("cache size must be positive, got %d", c.State.CacheSize)
	}
	if c.Worker.Batch < 1 {
		return fmt.Errorf("worker batch must be positive, got %d", c.Worker.Batch)
	}

	return nil
}

// GetDb opens the configured database.
func GetDb(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	default:
		dialector = sqlite.Open(cfg.Database.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Database.Driver, err)
	}

	return db, nil
}
