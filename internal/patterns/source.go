package patterns

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

// Source supplies a type-name -> pattern-text mapping. The mapping may be
// empty or partially invalid; the detector tolerates both.
type Source interface {
	Load(ctx context.Context) (map[string]string, error)
}

// Config selects and parameterizes the pattern source.
type Config struct {
	File      string        `yaml:"file" mapstructure:"file"`
	RedisURL  string        `yaml:"redis_url" mapstructure:"redis_url"`
	RedisKey  string        `yaml:"redis_key" mapstructure:"redis_key"`
	CacheTTL  time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// FileSource loads patterns from a JSON object file.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(_ context.Context) (map[string]string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("malformed pattern file %s: %w", s.Path, err)
	}
	return out, nil
}

// StaticSource serves a fixed mapping, used for the built-in defaults.
type StaticSource map[string]string

// Load implements Source.
func (s StaticSource) Load(_ context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// Resolve picks the configured source chain and loads it once, degrading on
// every failure until the built-in defaults: a missing or broken pattern
// store reduces coverage, it never stops a scan.
func Resolve(ctx context.Context, cfg Config, logger *zap.Logger) map[string]string {
	var base Source = StaticSource(Defaults())
	if cfg.File != "" {
		base = FileSource{Path: cfg.File}
	}

	src := base
	if cfg.RedisURL != "" {
		redisSrc, err := NewRedisSource(cfg, base, logger)
		if err != nil {
			logger.Warn("Pattern cache unavailable, loading directly", zap.Error(err))
		} else {
			src = redisSrc
		}
	}

	loaded, err := src.Load(ctx)
	if err != nil || len(loaded) == 0 {
		if err != nil {
			logger.Warn("Pattern source failed, using built-in defaults", zap.Error(err))
		}
		return Defaults()
	}

	logger.Info("Detection patterns loaded", zap.Int("count", len(loaded)))
	return loaded
}
