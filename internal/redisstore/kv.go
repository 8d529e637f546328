// Package redisstore is a Redis-backed key-value store for sharing local
// catalogs and the author identity between server instances.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rpggio/prodreport/internal/repository"
)

const defaultPrefix = "prodreport:"

// KV implements repository.KVStore using Redis
type KV struct {
	client *redis.Client
	prefix string
}

// New creates a Redis-backed store from a redis:// URL and checks the
// connection.
func New(redisURL, prefix string) (*KV, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client, prefix), nil
}

// NewWithClient creates a store from an existing Redis client
func NewWithClient(client *redis.Client, prefix string) *KV {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &KV{client: client, prefix: prefix}
}

func (s *KV) key(k string) string {
	return s.prefix + k
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return repository.ErrInvalidInput
	}
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *KV) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Close closes the Redis connection
func (s *KV) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *KV) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
