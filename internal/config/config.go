package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/dataguardian/")
	viper.AddConfigPath("$HOME/.dataguardian/")

	viper.SetEnvPrefix("DATAGUARDIAN")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateConfig validates the loaded configuration.
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Scan.MaxRows <= 0 {
		return fmt.Errorf("scan.max_rows must be positive, got %d", config.Scan.MaxRows)
	}
	if config.Scan.MaxUniquePerColumn <= 0 {
		return fmt.Errorf("scan.max_unique_per_column must be positive, got %d", config.Scan.MaxUniquePerColumn)
	}
	if config.Scan.MaxCharsPerCell <= 0 {
		return fmt.Errorf("scan.max_chars_per_cell must be positive, got %d", config.Scan.MaxCharsPerCell)
	}
	if config.Scan.MaskKeepLast < 0 {
		return fmt.Errorf("scan.mask_keep_last must not be negative, got %d", config.Scan.MaskKeepLast)
	}

	if config.NER.Enabled && config.NER.ModelPath == "" {
		return fmt.Errorf("ner.model_path is required when ner.enabled is set")
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// reload re-reads the watched settings on top of the current configuration,
// so keys absent from the file keep their running values.
func reload(base *Config) (*Config, error) {
	newConfig := *base
	if err := viper.Unmarshal(&newConfig); err != nil {
		return nil, err
	}
	if err := validateConfig(&newConfig); err != nil {
		return nil, err
	}
	return &newConfig, nil
}

// Watch starts watching the configuration file for changes. Reload failures
// keep the previous configuration.
func Watch(config *Config, callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig, err := reload(config)
		if err != nil {
			return
		}
		callback(newConfig)
	})

	return nil
}
