// Package config provides configuration management for the MediaHost server.
// Configuration can be loaded from YAML files and environment variables.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Signup   SignupConfig   `mapstructure:"signup"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
}

// DatabaseConfig holds database connection settings.
// Supports both PostgreSQL and SQLite backends.
type DatabaseConfig struct {
	// Driver specifies the database driver: "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`

	// PostgreSQL settings (used when Driver is "postgres")
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	// SQLite settings (used when Driver is "sqlite")
	Path            string `mapstructure:"path"`             // Path to SQLite database file
	JournalMode     string `mapstructure:"journal_mode"`     // WAL, DELETE, TRUNCATE, etc.
	BusyTimeout     int    `mapstructure:"busy_timeout"`     // Milliseconds to wait for locks
	CacheSize       int    `mapstructure:"cache_size"`       // Page cache size (negative = KB)
	SynchronousMode string `mapstructure:"synchronous_mode"` // NORMAL, FULL, OFF
}

// DSN returns the PostgreSQL connection string.
// Only valid when Driver is "postgres".
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// IsEmbedded returns true if using an embedded database (SQLite).
func (c DatabaseConfig) IsEmbedded() bool {
	return c.Driver == "sqlite"
}

// RedisConfig holds Redis connection settings. Redis is optional; when
// disabled, refresh tokens live in process memory.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Enabled     bool          `mapstructure:"enabled"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// TokenSecret is the HMAC key session tokens are signed with.
	TokenSecret string `mapstructure:"token_secret"`

	// TokenNamespace prefixes the custom claims embedded in session tokens.
	TokenNamespace string `mapstructure:"token_namespace"`

	// TokenExpiration is the lifetime of an access token.
	TokenExpiration time.Duration `mapstructure:"token_expiration"`

	// RefreshExpiration is the lifetime of a refresh token.
	RefreshExpiration time.Duration `mapstructure:"refresh_expiration"`

	// AdminKeys is the break-glass allow-list of administrative API keys.
	// Empty disables the override entirely.
	AdminKeys []string `mapstructure:"admin_keys"`

	// EncryptionKey is the 32-byte key used for AES-256-GCM encryption of
	// OTP secrets at rest.
	EncryptionKey string `mapstructure:"encryption_key"`

	// APITokenLength is the length of generated API key tokens.
	APITokenLength int `mapstructure:"api_token_length"`

	// SaltLength is the length of generated password salts.
	SaltLength int `mapstructure:"salt_length"`
}

// GetEncryptionKey returns the encryption key as a byte slice.
// Returns an error if the key is not exactly 32 bytes.
func (c AuthConfig) GetEncryptionKey() ([]byte, error) {
	key := []byte(c.EncryptionKey)
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(key))
	}
	return key, nil
}

// SignupConfig holds account creation policy.
type SignupConfig struct {
	// RequirePassword gates signup behind a shared secret.
	RequirePassword bool `mapstructure:"require_password"`

	// Password is the shared signup secret, checked when RequirePassword.
	Password string `mapstructure:"password"`

	// UsernameRegex constrains new usernames.
	UsernameRegex string `mapstructure:"username_regex"`

	// UsernameDescription is the human-readable form of UsernameRegex,
	// surfaced in rejection messages.
	UsernameDescription string `mapstructure:"username_description"`

	// PasswordRegex constrains new passwords.
	PasswordRegex string `mapstructure:"password_regex"`

	// PasswordDescription is the human-readable form of PasswordRegex.
	PasswordDescription string `mapstructure:"password_description"`
}

// UploadConfig holds upload pipeline settings.
type UploadConfig struct {
	// DefaultFileLimit is the per-file quota for new users, in bytes.
	DefaultFileLimit int64 `mapstructure:"default_file_limit"`

	// DefaultTotalLimit is the total quota for new users, in bytes.
	DefaultTotalLimit int64 `mapstructure:"default_total_limit"`

	// MaxUnchunked is the largest body accepted by the single-request
	// upload endpoint.
	MaxUnchunked int64 `mapstructure:"max_unchunked"`

	// AllowNoOwner accepts anonymous uploads, attributed to DefaultUser.
	AllowNoOwner bool `mapstructure:"allow_no_owner"`

	// DefaultUser is the account anonymous uploads belong to.
	DefaultUser string `mapstructure:"default_user"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Port is the port for the metrics HTTP server.
	Port int `mapstructure:"port"`

	// Path is the URL path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with MEDIAHOST_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix("MEDIAHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file configuration
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/mediahost")
	}

	// Read config file (optional - environment variables can be used instead)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is acceptable - use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.max_body_size", 16*1024*1024)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "mediahost")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "mediahost")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	// SQLite defaults
	v.SetDefault("database.path", "./data/mediahost.db")
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5000)
	v.SetDefault("database.cache_size", -2000)
	v.SetDefault("database.synchronous_mode", "NORMAL")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.enabled", false)

	// Auth defaults
	v.SetDefault("auth.token_secret", "") // Must be provided
	v.SetDefault("auth.token_namespace", "http://localhost")
	v.SetDefault("auth.token_expiration", 900*time.Second)
	v.SetDefault("auth.refresh_expiration", 86400*time.Second)
	v.SetDefault("auth.admin_keys", []string{})
	v.SetDefault("auth.encryption_key", "") // Must be provided
	v.SetDefault("auth.api_token_length", 32)
	v.SetDefault("auth.salt_length", 32)

	// Signup defaults
	v.SetDefault("signup.require_password", false)
	v.SetDefault("signup.password", "")
	v.SetDefault("signup.username_regex", `^[A-Za-z0-9]{6,16}$`)
	v.SetDefault("signup.username_description", "between 6 and 16 alphanumerical characters")
	// Character-class requirements (uppercase, digit, special) are checked
	// programmatically; the regex only constrains length and charset.
	v.SetDefault("signup.password_regex", `^.{8,128}$`)
	v.SetDefault("signup.password_description", "between 8 and 128 characters with at least 1 uppercase, 1 special (!@#$&*) character, and 1 digit")

	// Upload defaults
	v.SetDefault("upload.default_file_limit", 5242880)
	v.SetDefault("upload.default_total_limit", 2147482548)
	v.SetDefault("upload.max_unchunked", 15728640)
	v.SetDefault("upload.allow_no_owner", false)
	v.SetDefault("upload.default_user", "default")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9091)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	// Validate server configuration
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	// Validate database configuration
	validDrivers := map[string]bool{"postgres": true, "sqlite": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be 'postgres' or 'sqlite'")
	}

	if c.Database.Driver == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for postgres driver")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for postgres driver")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for postgres driver")
		}
	} else if c.Database.Driver == "sqlite" {
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite driver")
		}
	}

	// Validate auth configuration
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("auth.token_secret is required")
	}
	if c.Auth.EncryptionKey != "" && len(c.Auth.EncryptionKey) != 32 {
		return fmt.Errorf("auth.encryption_key must be exactly 32 characters")
	}
	if c.Auth.TokenExpiration <= 0 || c.Auth.RefreshExpiration <= 0 {
		return fmt.Errorf("auth token expirations must be positive")
	}

	// Validate signup configuration
	if _, err := regexp.Compile(c.Signup.UsernameRegex); err != nil {
		return fmt.Errorf("signup.username_regex is invalid: %w", err)
	}
	if _, err := regexp.Compile(c.Signup.PasswordRegex); err != nil {
		return fmt.Errorf("signup.password_regex is invalid: %w", err)
	}
	if c.Signup.RequirePassword && c.Signup.Password == "" {
		return fmt.Errorf("signup.password is required when signup.require_password is set")
	}

	// Validate upload configuration
	if c.Upload.DefaultFileLimit <= 0 || c.Upload.DefaultTotalLimit <= 0 {
		return fmt.Errorf("upload limits must be positive")
	}

	// Validate logging configuration
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
