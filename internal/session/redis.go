package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultRedisPrefix = "jobswipe:session:"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces the keys, e.g. per device or per user profile.
	Prefix string
}

// RedisStorage keeps the session in Redis so several terminals can share it.
type RedisStorage struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

func NewRedisStorage(ctx context.Context, opts RedisOptions, logger *zap.Logger) (*RedisStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	logger.Debug("connected to redis session storage", zap.String("addr", opts.Addr), zap.String("prefix", prefix))

	return &RedisStorage{client: client, prefix: prefix, logger: logger}, nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		r.logger.Error("failed to get session key", zap.String("key", key), zap.Error(err))
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}

	return value, true, nil
}

func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		r.logger.Error("failed to set session key", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("set %s: %w", key, err)
	}

	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, r.prefix+key)
	}

	if err := r.client.Del(ctx, full...).Err(); err != nil {
		r.logger.Error("failed to delete session keys", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("delete: %w", err)
	}

	return nil
}
