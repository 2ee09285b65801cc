// Package idempotency remembers the response to a request made with an
// Idempotency-Key so a retried request is answered without being applied
// twice.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrInProgress = errors.New("request_in_progress")

const pendingMarker = "pending"

type Record struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Store reserves a key before the request runs and stores its outcome
// afterwards. Reserve returns the stored record when the key already
// completed, ErrInProgress when another request holds it, and (nil, nil)
// when the caller now owns the key.
type Store interface {
	Reserve(ctx context.Context, key string) (*Record, error)
	Complete(ctx context.Context, key string, rec Record) error
	Release(ctx context.Context, key string) error
}

func Key(scope string, parts ...any) string {
	k := "idem:" + scope
	for _, p := range parts {
		k += fmt.Sprintf(":%v", p)
	}
	return k
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Connect parses a redis:// URL and checks the server is reachable.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Reserve(ctx context.Context, key string) (*Record, error) {
	ok, err := s.client.SetNX(ctx, key, pendingMarker, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		return s.reserveAgain(ctx, key)
	}
	if err != nil {
		return nil, err
	}
	if string(raw) == pendingMarker {
		return nil, ErrInProgress
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) reserveAgain(ctx context.Context, key string) (*Record, error) {
	ok, err := s.client.SetNX(ctx, key, pendingMarker, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInProgress
	}
	return nil, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, raw, s.ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Noop never remembers anything; every request runs.
type Noop struct{}

func (Noop) Reserve(context.Context, string) (*Record, error) { return nil, nil }
func (Noop) Complete(context.Context, string, Record) error   { return nil }
func (Noop) Release(context.Context, string) error            { return nil }
