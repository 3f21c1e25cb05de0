// Package config provides configuration management for the Brokle platform.
//
// Configuration is loaded from multiple sources in this order:
// 1. An optional .env file, loaded into the process environment
// 2. Configuration files (YAML)
// 3. Environment variables, which override file values
// Command line flags are not read.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Environment   string              `mapstructure:"environment"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Environment        string        `mapstructure:"environment"`
	Host               string        `mapstructure:"host"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
	TrustedProxies     []string      `mapstructure:"trusted_proxies"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestSize     int64         `mapstructure:"max_request_size"`
	Port               int           `mapstructure:"port"`
	EnableCORS         bool          `mapstructure:"enable_cors"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// ObservabilityConfig contains OTLP ingestion and telemetry configuration.
type ObservabilityConfig struct {
	PreserveRawOTLP bool      `mapstructure:"preserve_raw_otlp"`
	PII             PIIConfig `mapstructure:"pii"`
}

// PIIConfig controls PII redaction of raw telemetry before normalization.
// RedactionLevel is one of DISABLED, ESSENTIAL, STRICT. Enforcement follows
// the server environment: production fails hard on a missing backend,
// development degrades to a no-op.
type PIIConfig struct {
	RedactionLevel       string   `mapstructure:"redaction_level"`
	LangevalsEndpoint    string   `mapstructure:"langevals_endpoint"`
	BearingAttributeKeys []string `mapstructure:"bearing_attribute_keys"`
	MaxAttributeLength   int      `mapstructure:"max_attribute_length"`
}

// Load reads configuration from defaults, config.yaml, and environment.
func Load() (*Config, error) {
	// Load .env file if it exists (optional, for local development)
	_ = godotenv.Load(".env")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/brokle")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with defaults and env vars
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	//nolint:errcheck // BindEnv only errors with invalid args, safe with string literals
	viper.BindEnv("server.port", "PORT")
	//nolint:errcheck
	viper.BindEnv("server.environment", "ENV")
	//nolint:errcheck
	viper.BindEnv("logging.level", "LOG_LEVEL")
	//nolint:errcheck
	viper.BindEnv("logging.format", "LOG_FORMAT")
	//nolint:errcheck
	viper.BindEnv("server.cors_allowed_origins", "CORS_ALLOWED_ORIGINS")
	//nolint:errcheck
	viper.BindEnv("observability.preserve_raw_otlp", "OTLP_PRESERVE_RAW")
	//nolint:errcheck
	viper.BindEnv("observability.pii.redaction_level", "PII_REDACTION_LEVEL")
	//nolint:errcheck
	viper.BindEnv("observability.pii.langevals_endpoint", "LANGEVALS_ENDPOINT")
	//nolint:errcheck
	viper.BindEnv("observability.pii.max_attribute_length", "PII_REDACTION_MAX_ATTRIBUTE_LENGTH")

	setDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("app.name", "brokle")
	viper.SetDefault("app.version", "dev")
	viper.SetDefault("environment", "development")

	viper.SetDefault("server.environment", "development")
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.idle_timeout", 120*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.max_request_size", int64(16*1024*1024))
	viper.SetDefault("server.enable_cors", true)
	viper.SetDefault("server.cors_allowed_origins", []string{"*"})

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("observability.preserve_raw_otlp", true)
	viper.SetDefault("observability.pii.redaction_level", "ESSENTIAL")
	viper.SetDefault("observability.pii.max_attribute_length", 250_000)
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if err := c.Observability.PII.Validate(); err != nil {
		return fmt.Errorf("pii config: %w", err)
	}
	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port < 1 || sc.Port > 65535 {
		return fmt.Errorf("invalid port: %d", sc.Port)
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	switch lc.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}
	switch lc.Format {
	case "json", "text", "":
	default:
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}
	return nil
}

func (pc *PIIConfig) Validate() error {
	switch pc.RedactionLevel {
	case "DISABLED", "ESSENTIAL", "STRICT":
	default:
		return fmt.Errorf("invalid pii redaction level: %s", pc.RedactionLevel)
	}
	if pc.MaxAttributeLength < 0 {
		return fmt.Errorf("invalid pii max attribute length: %d", pc.MaxAttributeLength)
	}
	return nil
}

// IsLangevalsConfigured reports whether the external PII backend is reachable.
func (pc *PIIConfig) IsLangevalsConfigured() bool {
	return pc.LangevalsEndpoint != ""
}

// GetServerAddress returns the host:port address the HTTP server binds to.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsDevelopment returns true when running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true when running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
