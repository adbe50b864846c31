package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Roles       RolesConfig       `mapstructure:"roles"`
	Transport   TransportConfig   `mapstructure:"transport"`
	Lark        LarkConfig        `mapstructure:"lark"`
	Spreadsheet SpreadsheetConfig `mapstructure:"spreadsheet"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Session     SessionConfig     `mapstructure:"session"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Poller      PollerConfig      `mapstructure:"poller"`
	Ticket      TicketConfig      `mapstructure:"ticket"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// AdminConfig guards the out-of-band /notif endpoint.
type AdminConfig struct {
	AuthToken string `mapstructure:"auth_token"`
}

// RolesConfig names the two privileged actors.
type RolesConfig struct {
	Secretary string `mapstructure:"secretary"`
	Treasurer string `mapstructure:"treasurer"`
}

// TransportConfig tunes outbound chat delivery.
type TransportConfig struct {
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
}

// SpreadsheetConfig locates the workbook holding the ticket table.
type SpreadsheetConfig struct {
	Path  string `mapstructure:"path"`
	Sheet string `mapstructure:"sheet"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SessionConfig selects where conversation sessions live.
type SessionConfig struct {
	Backend string        `mapstructure:"backend"` // memory or redis
	TTL     time.Duration `mapstructure:"ttl"`
}

// RedisConfig holds the redis connection used by the session store.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// PollerConfig holds change-detection settings.
type PollerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CASRetries int           `mapstructure:"cas_retries"`
	// SettleGrace bounds how far behind now the checkpoint stays.
	SettleGrace time.Duration `mapstructure:"settle_grace"`
}

// TicketConfig controls ticket number issuance.
type TicketConfig struct {
	Prefix        string `mapstructure:"prefix"`
	SequenceStart int64  `mapstructure:"sequence_start"`
}

// KafkaConfig configures the optional lifecycle event stream.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Enabled reports whether an event stream is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.Topic != ""
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file, .env and environment variables.
// A missing config file is not an error; defaults and environment apply.
func Load(configPath string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv reads .env from the working directory when present. Variables
// already set in the environment win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = gotenv.Load(".env")
	}
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.request_timeout", 20*time.Second)

	v.SetDefault("transport.send_timeout", 15*time.Second)

	v.SetDefault("spreadsheet.path", "data/requests.xlsx")
	v.SetDefault("spreadsheet.sheet", "Requests")

	v.SetDefault("database.path", "data/procurement.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", 24*time.Hour)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key_prefix", "procurement:session:")

	v.SetDefault("poller.enabled", true)
	v.SetDefault("poller.interval", 60*time.Second)
	v.SetDefault("poller.timeout", 30*time.Second)
	v.SetDefault("poller.cas_retries", 3)
	v.SetDefault("poller.settle_grace", time.Minute)

	v.SetDefault("ticket.sequence_start", 1)

	v.SetDefault("kafka.topic", "procurement.tickets")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the deployment's environment variable names
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("admin.auth_token", "AUTH_TOKEN")
	_ = v.BindEnv("roles.secretary", "SEKDEP_NUMBER")
	_ = v.BindEnv("roles.treasurer", "BENDAHARA_NUMBER")
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("redis.addr", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("poller.interval", "POLL_INTERVAL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Roles.Secretary == "" {
		return fmt.Errorf("roles.secretary is required")
	}
	if c.Roles.Treasurer == "" {
		return fmt.Errorf("roles.treasurer is required")
	}
	if c.Roles.Secretary == c.Roles.Treasurer {
		return fmt.Errorf("roles.secretary and roles.treasurer must be different actors")
	}

	if c.Lark.AppID == "" || c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_id and lark.app_secret are required")
	}

	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis session backend")
		}
	default:
		return fmt.Errorf("session.backend must be memory or redis, got %q", c.Session.Backend)
	}

	if c.Spreadsheet.Path == "" {
		return fmt.Errorf("spreadsheet.path is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be positive")
	}
	if c.Poller.CASRetries < 1 {
		return fmt.Errorf("poller.cas_retries must be at least 1")
	}
	if c.Poller.SettleGrace < 0 {
		return fmt.Errorf("poller.settle_grace must not be negative")
	}

	return nil
}
