package patterns

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const defaultRedisKey = "dataguardian:patterns"

// RedisSource caches the pattern mapping in a Redis hash with a TTL, falling
// back to (and repopulating from) an underlying source on miss or error.
type RedisSource struct {
	client   *redis.Client
	key      string
	ttl      time.Duration
	fallback Source
	logger   *zap.Logger
}

// NewRedisSource connects to Redis and verifies the connection.
func NewRedisSource(cfg Config, fallback Source, logger *zap.Logger) (*RedisSource, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	key := cfg.RedisKey
	if key == "" {
		key = defaultRedisKey
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	logger.Info("Pattern cache connected",
		zap.String("redis_url", maskRedisURL(cfg.RedisURL)),
		zap.String("key", key),
		zap.Duration("ttl", ttl),
	)
	return &RedisSource{client: client, key: key, ttl: ttl, fallback: fallback, logger: logger}, nil
}

// Load implements Source. Cache errors are logged and treated as misses.
func (s *RedisSource) Load(ctx context.Context) (map[string]string, error) {
	cached, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		s.logger.Warn("Pattern cache lookup failed", zap.Error(err))
	} else if len(cached) > 0 {
		s.logger.Debug("Pattern cache hit", zap.Int("count", len(cached)))
		return cached, nil
	}

	loaded, err := s.fallback.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(loaded) == 0 {
		return loaded, nil
	}

	// Repopulate best effort; a failed write only costs the next reader a
	// fallback load.
	fields := make(map[string]interface{}, len(loaded))
	for k, v := range loaded {
		fields[k] = v
	}
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key)
	pipe.HSet(ctx, s.key, fields)
	pipe.Expire(ctx, s.key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("Failed to repopulate pattern cache", zap.Error(err))
	}
	return loaded, nil
}

// Close releases the Redis connection.
func (s *RedisSource) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// maskRedisURL hides credentials in a Redis URL before logging it.
func maskRedisURL(url string) string {
	if at := strings.LastIndex(url, "@"); at >= 0 {
		if colon := strings.LastIndex(url[:at], ":"); colon >= 0 {
			return url[:colon+1] + "***" + url[at:]
		}
	}
	return url
}
