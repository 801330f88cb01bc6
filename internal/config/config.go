// Package config loads application configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Auth     AuthConfig     `yaml:"auth"`
	HTTP     HTTPConfig     `yaml:"http"`
	Audit    AuditConfig    `yaml:"audit"`
	Redis    RedisConfig    `yaml:"redis"`
	Demo     DemoConfig     `yaml:"demo"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string `yaml:"host" env:"MYRC_SERVER_HOST"`
	Port            int    `yaml:"port" env:"MYRC_SERVER_PORT"`
	ReadTimeout     int    `yaml:"read_timeout" env:"MYRC_SERVER_READ_TIMEOUT"`
	WriteTimeout    int    `yaml:"write_timeout" env:"MYRC_SERVER_WRITE_TIMEOUT"`
	IdleTimeout     int    `yaml:"idle_timeout" env:"MYRC_SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" env:"MYRC_SERVER_SHUTDOWN_TIMEOUT"`
}

// DatabaseConfig controls the PostgreSQL connection.
type DatabaseConfig struct {
	Driver          string `yaml:"driver" env:"MYRC_DB_DRIVER"`
	DSN             string `yaml:"dsn" env:"MYRC_DB_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"MYRC_DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"MYRC_DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" env:"MYRC_DB_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `yaml:"migrate_on_start" env:"MYRC_DB_MIGRATE_ON_START"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"MYRC_LOG_LEVEL"`
	Format     string `yaml:"format" env:"MYRC_LOG_FORMAT"`
	Output     string `yaml:"output" env:"MYRC_LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"MYRC_LOG_FILE_PREFIX"`
}

// AuthConfig controls token issuing and bootstrap users.
type AuthConfig struct {
	JWTSecret       string     `yaml:"jwt_secret" env:"MYRC_JWT_SECRET"`
	TokenTTLMinutes int        `yaml:"token_ttl_minutes" env:"MYRC_TOKEN_TTL_MINUTES"`
	SeedUsers       []SeedUser `yaml:"seed_users"`
}

// SeedUser describes a user created on first start when the store is empty.
type SeedUser struct {
	Username    string   `yaml:"username"`
	Password    string   `yaml:"password"`
	DisplayName string   `yaml:"display_name"`
	Email       string   `yaml:"email"`
	Groups      []string `yaml:"groups"`
}

// HTTPConfig controls cross-cutting HTTP behaviour.
type HTTPConfig struct {
	AllowedOrigins     []string `yaml:"allowed_origins"`
	RateLimitPerSecond int      `yaml:"rate_limit_per_second" env:"MYRC_RATE_LIMIT_PER_SECOND"`
	RateLimitBurst     int      `yaml:"rate_limit_burst" env:"MYRC_RATE_LIMIT_BURST"`
	MaxUploadBytes     int64    `yaml:"max_upload_bytes" env:"MYRC_MAX_UPLOAD_BYTES"`
}

// AuditConfig controls the audit trail.
type AuditConfig struct {
	RecentBufferSize      int    `yaml:"recent_buffer_size" env:"MYRC_AUDIT_RECENT_BUFFER"`
	FilePath              string `yaml:"file_path" env:"MYRC_AUDIT_FILE"`
	RetentionDays         int    `yaml:"retention_days" env:"MYRC_AUDIT_RETENTION_DAYS"`
	PendingTimeoutMinutes int    `yaml:"pending_timeout_minutes" env:"MYRC_AUDIT_PENDING_TIMEOUT_MINUTES"`
	SweepSchedule         string `yaml:"sweep_schedule" env:"MYRC_AUDIT_SWEEP_SCHEDULE"`
	AMQPURL               string `yaml:"amqp_url" env:"MYRC_AUDIT_AMQP_URL"`
	AMQPExchange          string `yaml:"amqp_exchange" env:"MYRC_AUDIT_AMQP_EXCHANGE"`
}

// RedisConfig controls the optional permission cache.
type RedisConfig struct {
	Addr                 string `yaml:"addr" env:"MYRC_REDIS_ADDR"`
	Password             string `yaml:"password" env:"MYRC_REDIS_PASSWORD"`
	DB                   int    `yaml:"db" env:"MYRC_REDIS_DB"`
	PermissionTTLSeconds int    `yaml:"permission_ttl_seconds" env:"MYRC_REDIS_PERMISSION_TTL"`
}

// DemoConfig controls provisioning of the shared demonstration RC.
type DemoConfig struct {
	Enabled bool   `yaml:"enabled" env:"MYRC_DEMO_ENABLED"`
	Name    string `yaml:"name" env:"MYRC_DEMO_NAME"`
	Owner   string `yaml:"owner" env:"MYRC_DEMO_OWNER"`
}

// Load reads configuration from the path in MYRC_CONFIG (default
// config/config.yaml when present), then applies environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	path := strings.TrimSpace(os.Getenv("MYRC_CONFIG"))
	if path == "" {
		path = "config/config.yaml"
	}

	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadFromPath(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads configuration from a specific YAML file.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 300
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Auth.TokenTTLMinutes == 0 {
		c.Auth.TokenTTLMinutes = 480
	}

	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}
	if c.HTTP.RateLimitPerSecond == 0 {
		c.HTTP.RateLimitPerSecond = 50
	}
	if c.HTTP.RateLimitBurst == 0 {
		c.HTTP.RateLimitBurst = 100
	}
	if c.HTTP.MaxUploadBytes == 0 {
		c.HTTP.MaxUploadBytes = 10 << 20
	}

	if c.Audit.RecentBufferSize == 0 {
		c.Audit.RecentBufferSize = 500
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 365
	}
	if c.Audit.PendingTimeoutMinutes == 0 {
		c.Audit.PendingTimeoutMinutes = 15
	}
	if c.Audit.SweepSchedule == "" {
		c.Audit.SweepSchedule = "0 3 * * *"
	}

	if c.Redis.PermissionTTLSeconds == 0 {
		c.Redis.PermissionTTLSeconds = 30
	}

	if c.Demo.Name == "" {
		c.Demo.Name = "Demo RC"
	}
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	for _, u := range c.Auth.SeedUsers {
		if strings.TrimSpace(u.Username) == "" {
			return fmt.Errorf("seed user with empty username")
		}
	}
	return nil
}

// TokenTTL returns the configured token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// PendingTimeout returns how long an audit record may stay pending before
// the sweeper marks it interrupted.
func (c *Config) PendingTimeout() time.Duration {
	return time.Duration(c.Audit.PendingTimeoutMinutes) * time.Minute
}
