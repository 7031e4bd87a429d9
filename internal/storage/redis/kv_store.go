// Package redis хранит корзины покупателей в Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	opTimeout = 2 * time.Second
	// DefaultTTL — сколько хранится брошенная корзина без изменений.
	DefaultTTL = 30 * 24 * time.Hour
)

// KeyValueStore — реализация domain.KeyValueStore поверх Redis.
type KeyValueStore struct {
	client *goredis.Client
	ttl    time.Duration
	logger *log.Entry
}

// Open подключается к Redis по URL вида redis://host:port/db и проверяет соединение.
func Open(ctx context.Context, url string, ttl time.Duration, logger *log.Entry) (*KeyValueStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, ttl, logger), nil
}

// New оборачивает готовый клиент.
func New(client *goredis.Client, ttl time.Duration, logger *log.Entry) *KeyValueStore {
	if logger == nil {
		logger = log.New().WithField("component", "redis-kv")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &KeyValueStore{client: client, ttl: ttl, logger: logger}
}

// Get возвращает значение или domain.ErrKeyNotFound.
func (s *KeyValueStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", domain.ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, nil
}

// Set записывает значение и продлевает TTL корзины.
func (s *KeyValueStore) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("redis set failed")
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping проверяет доступность Redis; используется readiness-проверкой.
func (s *KeyValueStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close закрывает клиент.
func (s *KeyValueStore) Close() error {
	return s.client.Close()
}

var _ domain.KeyValueStore = (*KeyValueStore)(nil)
