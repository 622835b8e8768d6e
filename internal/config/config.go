package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/projectdiscovery/gologger"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the scan client
type Config struct {
	Client ClientConfig `yaml:"client"`
	Azure  AzureConfig  `yaml:"azure"`
	App    AppConfig    `yaml:"app"`
}

// AppConfig holds settings shared by the client and the gateway
type AppConfig struct {
	LogLevel string `yaml:"log_level"`
	// Discord webhook settings
	EnableDiscordNotifications bool   `yaml:"enable_discord_notifications"`
	DiscordWebhookURL          string `yaml:"discord_webhook_url"`
	DiscordWebhookTimeout      int    `yaml:"discord_webhook_timeout"` // seconds
	// Service Bus scan events
	EnableScanEvents bool `yaml:"enable_scan_events"`
}

// DefaultAppConfig returns the built-in application defaults
func DefaultAppConfig() AppConfig {
	return AppConfig{
		LogLevel:                   "info",
		EnableDiscordNotifications: false,
		DiscordWebhookTimeout:      30,
		EnableScanEvents:           false,
	}
}

// Load builds the client configuration: defaults, then the optional YAML
// file at path, then environment variables.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Client: DefaultClientConfig(),
		Azure:  DefaultAzureConfig(),
		App:    DefaultAppConfig(),
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Client = LoadClientConfig(cfg.Client)
	cfg.Azure = LoadAzureConfig(cfg.Azure)
	cfg.App = LoadAppConfig(cfg.App)

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			gologger.Debug().Msgf("Config file %s not found, using defaults and environment", path)
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return &ConfigError{Field: "config", Message: fmt.Sprintf("invalid config file %s: %v", path, err)}
	}

	gologger.Debug().Msgf("Loaded config file %s", path)
	return nil
}

// LoadAppConfig applies environment overrides to base
func LoadAppConfig(base AppConfig) AppConfig {
	return AppConfig{
		LogLevel:                   getEnv("LOG_LEVEL", base.LogLevel),
		EnableDiscordNotifications: getEnvAsBool("ENABLE_DISCORD_NOTIFICATIONS", base.EnableDiscordNotifications),
		DiscordWebhookURL:          getEnv("DISCORD_WEBHOOK_URL", base.DiscordWebhookURL),
		DiscordWebhookTimeout:      getEnvAsInt("DISCORD_WEBHOOK_TIMEOUT", base.DiscordWebhookTimeout),
		EnableScanEvents:           getEnvAsBool("ENABLE_SCAN_EVENTS", base.EnableScanEvents),
	}
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if err := c.App.ValidateAppConfig(); err != nil {
		return err
	}

	if err := c.Client.ValidateClientConfig(); err != nil {
		return err
	}

	if err := c.Azure.ValidateAzureConfig(c.App.EnableScanEvents, c.Client.StoreBackend == StoreBackendBlob); err != nil {
		return err
	}

	return nil
}

// ValidateAppConfig validates application-specific configuration
func (c *AppConfig) ValidateAppConfig() error {
	if err := validateRange("DISCORD_WEBHOOK_TIMEOUT", c.DiscordWebhookTimeout, 1, 120, "Discord webhook timeout", "seconds"); err != nil {
		return err
	}

	if err := validateLogLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// validateRange validates that a value is within the specified range
func validateRange(field string, value, min, max int, fieldName, unit string) error {
	if value < min || value > max {
		message := fmt.Sprintf("%s must be between %d and %d", fieldName, min, max)
		if unit != "" {
			message += " " + unit
		}

		return &ConfigError{
			Field:   field,
			Message: message,
		}
	}
	return nil
}

// validateLogLevel validates that the log level is valid
func validateLogLevel(logLevel string) error {
	validLevels := []string{"debug", "info", "warning", "warn", "error", "fatal", "silent"}
	logLevelLower := strings.ToLower(logLevel)

	for _, valid := range validLevels {
		if logLevelLower == valid {
			return nil
		}
	}

	return &ConfigError{
		Field:   "LOG_LEVEL",
		Message: fmt.Sprintf("Invalid log level '%s'. Valid levels are: %s", logLevel, strings.Join(validLevels, ", ")),
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		gologger.Warning().Msgf("Ignoring non-integer value for %s", key)
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		gologger.Warning().Msgf("Ignoring non-boolean value for %s", key)
	}
	return defaultValue
}
