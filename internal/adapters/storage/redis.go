package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jsamuelsen/gallery-quiz/internal/domain"
)

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// TTL expires abandoned snapshots. Zero keeps them forever.
	TTL time.Duration

	// OpTimeout bounds each command. Set by Open from Config.OpTimeout.
	OpTimeout time.Duration
}

// redisClient is the subset of *redis.Client the store uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisStore keeps each snapshot as a redis string value.
type RedisStore struct {
	client  redisClient
	ttl     time.Duration
	timeout time.Duration
}

// NewRedisStore connects to redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	s := newRedisStore(client, cfg)

	if err := s.Check(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return s, nil
}

func newRedisStore(client redisClient, cfg RedisConfig) *RedisStore {
	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}

	return &RedisStore{client: client, ttl: cfg.TTL, timeout: timeout}
}

// Name implements ports.HealthChecker.
func (s *RedisStore) Name() string { return BackendRedis }

// Check pings the server.
func (s *RedisStore) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable(BackendRedis, "ping", err)
	}

	return nil
}

// Load returns the value stored under key.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.NewNotFoundError("snapshot", key)
	}

	if err != nil {
		return nil, unavailable(BackendRedis, "get", err)
	}

	return data, nil
}

// Save replaces the value stored under key and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return unavailable(BackendRedis, "set", err)
	}

	return nil
}

// Delete removes key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return unavailable(BackendRedis, "del", err)
	}

	return nil
}

// Close closes the client connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
