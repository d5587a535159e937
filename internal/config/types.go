package config

import (
	"time"

	"github.com/dataguardian/dataguardian/internal/alert"
	"github.com/dataguardian/dataguardian/internal/breach"
	"github.com/dataguardian/dataguardian/internal/patterns"
	"github.com/dataguardian/dataguardian/internal/store"
)

// Config represents the main configuration structure.
type Config struct {
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Scan     ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Patterns patterns.Config `yaml:"patterns" mapstructure:"patterns"`
	NER      NERConfig       `yaml:"ner" mapstructure:"ner"`
	Storage  store.Config    `yaml:"storage" mapstructure:"storage"`
	Breach   breach.Config   `yaml:"breach" mapstructure:"breach"`
	Alerts   alert.Config    `yaml:"alerts" mapstructure:"alerts"`
	Events   EventsConfig    `yaml:"events" mapstructure:"events"`
	Logging  LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RateLimit    struct {
		Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
		RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
		Burst             int     `yaml:"burst" mapstructure:"burst"`
	} `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ScanConfig bounds the work a single scan may perform.
type ScanConfig struct {
	MaxRows            int `yaml:"max_rows" mapstructure:"max_rows"`
	MaxUniquePerColumn int `yaml:"max_unique_per_column" mapstructure:"max_unique_per_column"`
	MaxCharsPerCell    int `yaml:"max_chars_per_cell" mapstructure:"max_chars_per_cell"`
	MaskKeepLast       int `yaml:"mask_keep_last" mapstructure:"mask_keep_last"`
}

// NERConfig configures the optional named-entity detector.
type NERConfig struct {
	Enabled    bool     `yaml:"enabled" mapstructure:"enabled"`
	ModelPath  string   `yaml:"model_path" mapstructure:"model_path"`
	VocabPath  string   `yaml:"vocab_path" mapstructure:"vocab_path"`
	LabelsPath string   `yaml:"labels_path" mapstructure:"labels_path"`
	MaxLength  int      `yaml:"max_length" mapstructure:"max_length"`
	Labels     []string `yaml:"labels" mapstructure:"labels"`
}

// EventsConfig contains the dashboard event stream configuration.
type EventsConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	Path           string   `yaml:"path" mapstructure:"path"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// GetDefaults returns a configuration with sensible defaults.
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Scan: ScanConfig{
			MaxRows:            200,
			MaxUniquePerColumn: 200,
			MaxCharsPerCell:    20000,
			MaskKeepLast:       4,
		},
		Patterns: patterns.Config{
			CacheTTL: time.Hour,
		},
		NER: NERConfig{
			Enabled:   false,
			MaxLength: 256,
		},
		Storage: store.Config{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		Breach: breach.Config{
			UserAgent: "DataGuardian",
			Timeout:   10 * time.Second,
		},
		Events: EventsConfig{
			Enabled:        true,
			Path:           "/ws",
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
	cfg.Server.RateLimit.Enabled = true
	cfg.Server.RateLimit.RequestsPerSecond = 10
	cfg.Server.RateLimit.Burst = 20
	return cfg
}
