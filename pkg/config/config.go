// Package config provides configuration loading and validation for itree.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/itree/pkg/observability"
)

// Sentinel validation errors.
var (
	ErrInvalidPort        = errors.New("invalid server port")
	ErrInvalidMaxFileSize = errors.New("invalid input max file size")
	ErrInvalidLogLevel    = errors.New("invalid log level")
	ErrInvalidLogFormat   = errors.New("invalid log format")
	ErrInvalidSampleRatio = errors.New("sample ratio must be within [0, 1]")
	ErrInvalidCacheSize   = errors.New("cache size must not be negative")
	ErrInvalidRateLimit   = errors.New("rate limit and burst must not be negative")
)

// Default configuration values.
const (
	defaultPort        = 8080
	defaultHost        = "127.0.0.1"
	defaultIndexName   = "default"
	defaultMaxFileSize = "64MB"
	defaultCacheSize   = 1024
	defaultRateBurst   = 100
	maxPort            = 65535

	envPrefix = "ITREE"

	logFormatText = "text"
	logFormatJSON = "json"
)

// Config holds all configuration for itree.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Index     IndexConfig     `mapstructure:"index"`
	Input     InputConfig     `mapstructure:"input"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Port            int           `mapstructure:"port"`
	Metrics         bool          `mapstructure:"metrics"`
	// CacheSize is the number of search results cached; 0 disables the cache.
	CacheSize int `mapstructure:"cache_size"`
	// RateLimit is the /v1 request rate per second; 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	TraceVerbose bool    `mapstructure:"trace_verbose"`
}

// IndexConfig holds index settings.
type IndexConfig struct {
	Name string `mapstructure:"name"`
	// VerifyOnLoad runs the tree invariant checks after loading input files.
	VerifyOnLoad bool `mapstructure:"verify_on_load"`
}

// InputConfig holds range file settings.
type InputConfig struct {
	// MaxFileSize is a humanized byte size such as "64MB". "0" disables the limit.
	MaxFileSize string `mapstructure:"max_file_size"`
}

// MaxFileSizeBytes parses MaxFileSize.
func (c InputConfig) MaxFileSizeBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxFileSize, c.MaxFileSize, err)
	}

	return int64(n), nil
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("itree")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/itree")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Observability converts the logging and telemetry sections into an
// observability configuration for the given mode.
func (c *Config) Observability(mode observability.AppMode, version string) observability.Config {
	obs := observability.DefaultConfig()
	obs.Mode = mode
	obs.ServiceVersion = version
	obs.Environment = c.Telemetry.Environment
	obs.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	obs.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	obs.OTLPInsecure = c.Telemetry.OTLPInsecure
	obs.SampleRatio = c.Telemetry.SampleRatio
	obs.TraceVerbose = c.Telemetry.TraceVerbose
	obs.LogJSON = c.Logging.Format == logFormatJSON
	obs.Prometheus = mode == observability.ModeServe && c.Server.Metrics

	// Level was checked by validateConfig.
	obs.LogLevel, _ = observability.ParseLogLevel(c.Logging.Level)

	return obs
}

func setDefaults(viperCfg *viper.Viper) {
	// Server defaults.
	viperCfg.SetDefault("server.port", defaultPort)
	viperCfg.SetDefault("server.host", defaultHost)
	viperCfg.SetDefault("server.read_timeout", "10s")
	viperCfg.SetDefault("server.write_timeout", "30s")
	viperCfg.SetDefault("server.idle_timeout", "60s")
	viperCfg.SetDefault("server.shutdown_timeout", "10s")
	viperCfg.SetDefault("server.metrics", true)
	viperCfg.SetDefault("server.cache_size", defaultCacheSize)
	viperCfg.SetDefault("server.rate_limit", 0.0)
	viperCfg.SetDefault("server.rate_burst", defaultRateBurst)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", logFormatText)

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.trace_verbose", false)

	// Index defaults.
	viperCfg.SetDefault("index.name", defaultIndexName)
	viperCfg.SetDefault("index.verify_on_load", false)

	// Input defaults.
	viperCfg.SetDefault("input.max_file_size", defaultMaxFileSize)
}

func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > maxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, config.Server.Port)
	}

	if config.Server.CacheSize < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, config.Server.CacheSize)
	}

	if config.Server.RateLimit < 0 || config.Server.RateBurst < 0 {
		return fmt.Errorf("%w: %v/%d", ErrInvalidRateLimit, config.Server.RateLimit, config.Server.RateBurst)
	}

	_, err := config.Input.MaxFileSizeBytes()
	if err != nil {
		return err
	}

	_, err = observability.ParseLogLevel(config.Logging.Level)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLogLevel, err)
	}

	switch config.Logging.Format {
	case logFormatText, logFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRatio, config.Telemetry.SampleRatio)
	}

	return nil
}
