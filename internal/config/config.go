package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Databases    DatabasesConfig `mapstructure:"databases"`
	StateStorage StateStorage    `mapstructure:"state_storage"`
	Sync         SyncConfig      `mapstructure:"sync"`
	Confirm      ConfirmConfig   `mapstructure:"confirm"`
	Notify       NotifyConfig    `mapstructure:"notify"`
	Server       ServerConfig    `mapstructure:"server"`
	Logging      LoggingConfig   `mapstructure:"logging"`
}

type DatabasesConfig struct {
	Local  DatabaseConnection `mapstructure:"local"`
	Remote DatabaseConnection `mapstructure:"remote"`
}

type DatabaseConnection struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	// Replication credentials are only needed when sync.realtime is on.
	ReplicationUser     string `mapstructure:"replication_user"`
	ReplicationPassword string `mapstructure:"replication_password"`
}

type StateStorage struct {
	Type     string `mapstructure:"type"` // mysql | sqlite | none
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	FilePath string `mapstructure:"file_path"` // For SQLite
}

type SyncConfig struct {
	IntervalMinutes float64 `mapstructure:"interval_minutes"`
	StrictMode      bool    `mapstructure:"strict_mode"`
	BackupSuffix    string  `mapstructure:"backup_suffix"`
	BatchInsertSize int     `mapstructure:"batch_insert_size"`
	Realtime        bool    `mapstructure:"realtime"`
	ServerID        uint32  `mapstructure:"server_id"`
}

// PollInterval converts the configured minutes into a duration.
func (s SyncConfig) PollInterval() time.Duration {
	return time.Duration(s.IntervalMinutes * float64(time.Minute))
}

type ConfirmConfig struct {
	Mode    string `mapstructure:"mode"` // terminal | api | auto
	Timeout string `mapstructure:"timeout"`
}

func (c ConfirmConfig) GetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

type NotifyConfig struct {
	Terminal bool `mapstructure:"terminal"`
}

type ServerConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Port         int      `mapstructure:"port"`
	Host         string   `mapstructure:"host"`
	AuthToken    string   `mapstructure:"auth_token"`
	ReadTimeout  string   `mapstructure:"read_timeout"`
	WriteTimeout string   `mapstructure:"write_timeout"`
	CorsOrigins  []string `mapstructure:"cors_origins"`
}

func (s ServerConfig) GetReadTimeout() time.Duration {
	d, _ := time.ParseDuration(s.ReadTimeout)
	return d
}

func (s ServerConfig) GetWriteTimeout() time.Duration {
	d, _ := time.ParseDuration(s.WriteTimeout)
	return d
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// LoadConfig reads the YAML file at path, applies defaults and DBSYNC_*
// environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("DBSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("databases.local.host", "127.0.0.1")
	v.SetDefault("databases.local.port", 3306)
	v.SetDefault("databases.remote.port", 3306)

	v.SetDefault("state_storage.type", "none")
	v.SetDefault("state_storage.file_path", "dbsync-state.db")

	v.SetDefault("sync.interval_minutes", 5)
	v.SetDefault("sync.strict_mode", true)
	v.SetDefault("sync.backup_suffix", "_backup")
	v.SetDefault("sync.batch_insert_size", 500)
	v.SetDefault("sync.server_id", 1001)

	v.SetDefault("confirm.mode", "terminal")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
}

// Validate reports the first configuration problem that would make the
// service unable to run.
func (c *Config) Validate() error {
	for name, db := range map[string]DatabaseConnection{
		"local":  c.Databases.Local,
		"remote": c.Databases.Remote,
	} {
		if db.Host == "" {
			return fmt.Errorf("databases.%s.host is required", name)
		}
		if db.Database == "" {
			return fmt.Errorf("databases.%s.database is required", name)
		}
		if db.User == "" {
			return fmt.Errorf("databases.%s.user is required", name)
		}
	}

	if c.Sync.IntervalMinutes < 0 {
		return fmt.Errorf("sync.interval_minutes must not be negative, got %v", c.Sync.IntervalMinutes)
	}
	if c.Sync.BackupSuffix == "" {
		return fmt.Errorf("sync.backup_suffix must not be empty")
	}
	if c.Sync.BatchInsertSize <= 0 {
		return fmt.Errorf("sync.batch_insert_size must be positive, got %d", c.Sync.BatchInsertSize)
	}

	switch c.Confirm.Mode {
	case "terminal", "api", "auto":
	default:
		return fmt.Errorf("confirm.mode must be one of terminal, api, auto; got %q", c.Confirm.Mode)
	}
	if c.Confirm.Timeout != "" {
		if _, err := time.ParseDuration(c.Confirm.Timeout); err != nil {
			return fmt.Errorf("confirm.timeout: %w", err)
		}
	}
	if c.Confirm.Mode == "api" && !c.Server.Enabled {
		return fmt.Errorf("confirm.mode api requires server.enabled")
	}

	switch c.StateStorage.Type {
	case "mysql", "sqlite", "none", "":
	default:
		return fmt.Errorf("state_storage.type must be one of mysql, sqlite, none; got %q", c.StateStorage.Type)
	}

	return nil
}
