// Package redikv provides a Redis-backed cold tier, for runs that want
// transaction history offloaded to an external store instead of a
// local file.
package redikv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/iho/payengine/internal/store/coldstore"
)

// Store implements coldstore.Backend on a Redis client.
type Store struct {
	client *redis.Client
	prefix string
}

// Dial connects to Redis at redisURL and verifies the connection.
func Dial(ctx context.Context, redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return New(client), nil
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client, prefix: "payengine:tx:"}
}

func (s *Store) key(id uint32) string {
	return s.prefix + strconv.FormatUint(uint64(id), 10)
}

func (s *Store) Put(ctx context.Context, id uint32, value []byte) error {
	return s.client.Set(ctx, s.key(id), value, 0).Err()
}

func (s *Store) Get(ctx context.Context, id uint32) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, coldstore.ErrNotFound
	}
	return value, err
}

func (s *Store) Delete(ctx context.Context, id uint32) error {
	return s.client.Del(ctx, s.key(id)).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

// IsTransient reports whether err looks like a network blip worth
// retrying.
func IsTransient(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
