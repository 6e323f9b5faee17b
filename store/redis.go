package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/araea/oaibot/persona"
)

const defaultRedisPrefix = "oaibot"

// RedisStore keeps the snapshot under a single namespaced key, so several
// bot instances can share one Redis without clashing.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig configures the Redis store. A zero TTL keeps snapshots
// forever.
type RedisConfig struct {
	Prefix string
	TTL    time.Duration
}

// NewRedisStore returns a store writing through client.
func NewRedisStore(client *redis.Client, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (s *RedisStore) key() string { return s.prefix + ":config" }

func (s *RedisStore) Load(ctx context.Context) (persona.Config, bool, error) {
	raw, err := s.client.Get(ctx, s.key()).Result()
	if errors.Is(err, redis.Nil) {
		return persona.Config{}, false, nil
	}
	if err != nil {
		return persona.Config{}, false, fmt.Errorf("redis load %s: %w", s.key(), err)
	}
	var cfg persona.Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return persona.Config{}, false, fmt.Errorf("redis load %s: %w", s.key(), err)
	}
	return cfg, true, nil
}

func (s *RedisStore) Save(ctx context.Context, cfg persona.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("redis save %s: %w", s.key(), err)
	}
	if err := s.client.Set(ctx, s.key(), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis save %s: %w", s.key(), err)
	}
	return nil
}

// Close releases the underlying client connection.
func (s *RedisStore) Close() error { return s.client.Close() }

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*RedisStore)(nil)
)
