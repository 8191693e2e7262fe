package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// UpgraderConfig holds the tunables of the reflash protocol. The defaults
// match what embedded devices need in practice: a long pause before the
// first reconnection attempt (the device is rebooting) followed by a
// bounded polling window.
type UpgraderConfig struct {
	ReconnectDelay      time.Duration `mapstructure:"reconnect_delay"`
	ReconnectRetryDelay time.Duration `mapstructure:"reconnect_retry_delay"`
	ReconnectMaxRetries int           `mapstructure:"reconnect_max_retries"`
	UpgradeTimeout      time.Duration `mapstructure:"upgrade_timeout"`
}

// TasksConfig parameterizes the upgrade dispatcher retry contract.
type TasksConfig struct {
	Workers    int           `mapstructure:"workers"`
	QueueSize  int           `mapstructure:"queue_size"`
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// ConnectionConfig holds SSH client settings. Credentials maps the label
// stored on a device connection record to its auth material.
type ConnectionConfig struct {
	DialTimeout    time.Duration               `mapstructure:"dial_timeout"`
	CommandTimeout time.Duration               `mapstructure:"command_timeout"`
	Credentials    map[string]CredentialConfig `mapstructure:"credentials"`
}

// CredentialConfig is one named set of SSH auth material. Either a
// password or a private key path (or both) may be set.
type CredentialConfig struct {
	Password       string `mapstructure:"password"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
}

// StorageConfig points at the directory holding uploaded firmware images.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// SweepConfig controls the periodic re-submission of operations that
// could not start because the device had no connection configured.
type SweepConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	StaleAge time.Duration `mapstructure:"stale_age"`
}
