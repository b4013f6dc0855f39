package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	mtxerrors "github.com/matzehuels/mtxlayout/pkg/errors"
)

// redisPrefix namespaces checkpoint keys.
const redisPrefix = "mtxlayout:checkpoint:"

// RedisStore keeps snappy-compressed checkpoints under one key per layout.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the redis:// or rediss:// URL and pings it.
func NewRedisStore(ctx context.Context, rawURL string) (*RedisStore, error) {
	if err := mtxerrors.ValidateURL(rawURL, "redis", "rediss"); err != nil {
		return nil, err
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, mtxerrors.Wrap(mtxerrors.ErrCodeInvalidConfig, err, "redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, mtxerrors.Wrap(mtxerrors.ErrCodeStoreUnavailable, err, "failed to reach redis at %s", opts.Addr)
	}
	return NewRedisStoreFromClient(client), nil
}

// NewRedisStoreFromClient wraps an existing client. The store owns it and
// closes it on Close.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(name string) string {
	return redisPrefix + name
}

// Save writes the checkpoint with SETNX.
func (s *RedisStore) Save(ctx context.Context, name string, data []byte) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	payload := compress(data)
	var written bool
	err := RetryWithBackoff(ctx, func() error {
		ok, err := s.client.SetNX(ctx, s.key(name), payload, 0).Result()
		if err != nil {
			return s.transient(ctx, err)
		}
		written = ok
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("save %s: %w", name, err)
	}
	return written, nil
}

// Load reads and decompresses the checkpoint.
func (s *RedisStore) Load(ctx context.Context, name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	var payload []byte
	err := RetryWithBackoff(ctx, func() error {
		b, err := s.client.Get(ctx, s.key(name)).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return s.transient(ctx, err)
		}
		payload = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return decompress(payload)
}

// List scans for checkpoint keys.
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	var names []string
	iter := s.client.Scan(ctx, 0, redisPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), redisPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan checkpoints: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the checkpoint key.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// transient marks connection failures as retryable unless ctx is done.
func (s *RedisStore) transient(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err
	}
	return Retryable(err)
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
