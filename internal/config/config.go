package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"chainstack-provider/internal/adapter/chainstack"
	"chainstack-provider/internal/pkg/apperrors"
)

// Config holds all configuration for the application.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Chainstack ChainstackConfig `mapstructure:"chainstack"`
	Checker    CheckerConfig    `mapstructure:"checker"`
	Cache      CacheConfig      `mapstructure:"cache"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// ChainstackConfig holds the upstream endpoint settings.
// An empty APIKey selects the shared community key.
type ChainstackConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	DefaultNetwork    string        `mapstructure:"default_network"`
	Networks          []string      `mapstructure:"networks"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	ThrottleSlot      time.Duration `mapstructure:"throttle_slot"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// CheckerConfig holds settings related to the background endpoint probing.
type CheckerConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
	CheckTimeout  time.Duration `mapstructure:"check_timeout"`
	MaxWorkers    int           `mapstructure:"max_workers"`
	RunOnStartup  bool          `mapstructure:"run_on_startup"`
}

// CacheConfig holds settings for the caching layer.
type CacheConfig struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	HeadTTL           time.Duration `mapstructure:"head_ttl"`
	ProbeTTL          time.Duration `mapstructure:"probe_ttl"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("app.name", "chainstack-gateway")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("chainstack.api_key", chainstack.DefaultAPIKey)
	v.SetDefault("chainstack.default_network", chainstack.DefaultNetwork)
	v.SetDefault("chainstack.networks", chainstack.SupportedNetworks())
	v.SetDefault("chainstack.max_attempts", 12)
	v.SetDefault("chainstack.throttle_slot", "100ms")
	v.SetDefault("chainstack.request_timeout", "2m")
	v.SetDefault("chainstack.requests_per_second", 0)
	v.SetDefault("chainstack.burst", 1)
	v.SetDefault("checker.check_interval", "5m")
	v.SetDefault("checker.check_timeout", "5s")
	v.SetDefault("checker.max_workers", 4)
	v.SetDefault("checker.run_on_startup", true)
	v.SetDefault("cache.default_expiration", "30m")
	v.SetDefault("cache.cleanup_interval", "1h")
	v.SetDefault("cache.head_ttl", "5s")
	v.SetDefault("cache.probe_ttl", "10m")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		fmt.Printf("Warning: Config file not found in %s or '.', using defaults/env vars\n", configPath)
	}

	v.SetEnvPrefix("CHAINSTACK_GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports settings the gateway cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if _, err := chainstack.Host(c.Chainstack.DefaultNetwork); err != nil {
		errs = append(errs, fmt.Errorf("chainstack.default_network: %w", err))
	}
	if len(c.Chainstack.Networks) == 0 {
		errs = append(errs, fmt.Errorf("%w: chainstack.networks must not be empty", apperrors.ErrInvalidInput))
	}
	for _, name := range c.Chainstack.Networks {
		if _, err := chainstack.Host(name); err != nil {
			errs = append(errs, fmt.Errorf("chainstack.networks: %w", err))
		}
	}
	if c.Chainstack.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("%w: chainstack.max_attempts must be positive", apperrors.ErrInvalidInput))
	}
	if c.Chainstack.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("%w: chainstack.requests_per_second must not be negative", apperrors.ErrInvalidInput))
	}
	if c.Checker.MaxWorkers <= 0 {
		errs = append(errs, fmt.Errorf("%w: checker.max_workers must be positive", apperrors.ErrInvalidInput))
	}

	return errors.Join(errs...)
}

// IsCommunityResource reports whether the configured key is the shared community key.
func (c ChainstackConfig) IsCommunityResource() bool {
	return c.APIKey == chainstack.DefaultAPIKey
}
