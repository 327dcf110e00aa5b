package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CodeTTL is how long a verification code stays valid after being issued.
const CodeTTL = 5 * time.Minute

// CodeStore keeps short-lived verification codes keyed by purpose and
// address. Codes are overwritten on re-request and expire naturally; they
// are never deleted on successful use.
type CodeStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// CodeKey builds the cache key for a verification code, e.g.
// "captcha_user@example.com".
func CodeKey(purpose, address string) string {
	return fmt.Sprintf("%s_%s", purpose, address)
}

type redisCodeStore struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisCodeStore connects to Redis and verifies the connection.
func NewRedisCodeStore(addr, password string, db int, log *zap.Logger) (CodeStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Successfully connected to redis", zap.String("addr", addr))
	return &redisCodeStore{client: client, log: log}, nil
}

func (s *redisCodeStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read code from redis: %w", err)
	}
	return value, true, nil
}

func (s *redisCodeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write code to redis: %w", err)
	}
	return nil
}
