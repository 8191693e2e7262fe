package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "firmup/internal/shared/config"
)

type Config struct {
	Server     sharedConfig.ServerConfig     `mapstructure:"server"`
	Database   sharedConfig.DatabaseConfig   `mapstructure:"database"`
	Logger     sharedConfig.LoggerConfig     `mapstructure:"logger"`
	Redis      sharedConfig.RedisConfig      `mapstructure:"redis"`
	Upgrader   sharedConfig.UpgraderConfig   `mapstructure:"upgrader"`
	Tasks      sharedConfig.TasksConfig      `mapstructure:"tasks"`
	Connection sharedConfig.ConnectionConfig `mapstructure:"connection"`
	Storage    sharedConfig.StorageConfig    `mapstructure:"storage"`
	Sweep      sharedConfig.SweepConfig      `mapstructure:"sweep"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables
func Load(env string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("FIRMUP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Allow env parameter to override server mode if provided
	if env != "" && env != "default" {
		viper.Set("server.mode", env)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.driver", "mysql")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.username", "root")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "firmup_dev")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	// Redis defaults (disabled: in-process device locks)
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Upgrader defaults, tuned for slow embedded devices
	viper.SetDefault("upgrader.reconnect_delay", "180s")
	viper.SetDefault("upgrader.reconnect_retry_delay", "20s")
	viper.SetDefault("upgrader.reconnect_max_retries", 35)
	viper.SetDefault("upgrader.upgrade_timeout", "90s")

	// Dispatcher defaults
	viper.SetDefault("tasks.workers", 4)
	viper.SetDefault("tasks.queue_size", 256)
	viper.SetDefault("tasks.max_retries", 4)
	viper.SetDefault("tasks.base_delay", "30s")
	viper.SetDefault("tasks.max_delay", "10m")

	// SSH client defaults
	viper.SetDefault("connection.dial_timeout", "10s")
	viper.SetDefault("connection.command_timeout", "30s")

	// Storage defaults
	viper.SetDefault("storage.path", "./data/images")

	// Stalled operation sweep defaults
	viper.SetDefault("sweep.enabled", true)
	viper.SetDefault("sweep.interval", "10m")
	viper.SetDefault("sweep.stale_age", "1h")
}
