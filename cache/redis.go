package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis client methods the backend uses.
// Keeping it as an interface enables backing tests with miniredis clients.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisConfig holds connection settings for the Redis cache backend.
type RedisConfig struct {
	Address    string
	Password   string
	DB         int
	Prefix     string
	DefaultTTL time.Duration
}

// Redis implements Cache on a shared Redis instance, so cached views survive
// process restarts and are coherent across replicas.
type Redis struct {
	cfg    RedisConfig
	client RedisClient
	logger *slog.Logger
}

// NewRedis creates a Redis cache backend. Start must be called before use.
func NewRedis(cfg RedisConfig, logger *slog.Logger) *Redis {
	return &Redis{cfg: cfg, logger: logger}
}

// NewRedisWithClient creates a Redis backend over a pre-built client.
// This is intended for testing.
func NewRedisWithClient(cfg RedisConfig, client RedisClient, logger *slog.Logger) *Redis {
	return &Redis{cfg: cfg, client: client, logger: logger}
}

// Start connects to Redis and verifies the connection with PING.
func (r *Redis) Start(ctx context.Context) error {
	if r.client != nil {
		return nil
	}

	opts := &redis.Options{
		Addr: r.cfg.Address,
		DB:   r.cfg.DB,
	}
	if r.cfg.Password != "" {
		opts.Password = r.cfg.Password
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("cache: redis ping failed: %w", err)
	}
	r.client = client

	r.logger.Info("redis cache started", slog.String("address", r.cfg.Address))
	return nil
}

// Stop closes the Redis connection.
func (r *Redis) Stop(_ context.Context) error {
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	r.logger.Info("redis cache stopped")
	return err
}

// Get retrieves a value by key (prefix applied). A missing key is a miss,
// not an error.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if r.client == nil {
		return nil, false, errors.New("cache: redis not started")
	}
	val, err := r.client.Get(ctx, r.prefixed(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get: %w", err)
	}
	return val, true, nil
}

// Set stores a value with the given TTL. A non-positive TTL uses the
// configured default; if that is also zero the key never expires.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.client == nil {
		return errors.New("cache: redis not started")
	}
	if ttl <= 0 {
		ttl = r.cfg.DefaultTTL
	}
	if err := r.client.Set(ctx, r.prefixed(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	return nil
}

// Delete removes a key (prefix applied).
func (r *Redis) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		return errors.New("cache: redis not started")
	}
	if err := r.client.Del(ctx, r.prefixed(key)).Err(); err != nil {
		return fmt.Errorf("cache: redis del: %w", err)
	}
	return nil
}

func (r *Redis) prefixed(key string) string {
	return r.cfg.Prefix + key
}
