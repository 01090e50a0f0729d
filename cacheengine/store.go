package cacheengine

import (
	"context"
	"fmt"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"

	"github.com/reelhaven/reelhaven/infrastructure/valkey"
)

// Store is the narrow KV surface the engines need. The Valkey implementation
// is the production backend; tests use an in-memory fake.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes a value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX writes a value only if the key does not exist yet.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Incr atomically increments an integer key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)
	// ScanPattern returns all keys matching a glob pattern.
	ScanPattern(ctx context.Context, pattern string) ([]string, error)
	// StrLen returns the byte length of a string value (0 if absent).
	StrLen(ctx context.Context, key string) (int64, error)
	// CompareAndDelete deletes the key only if its current value equals
	// expected, as a single server-side operation.
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// compareAndDeleteScript runs GET+DEL server-side so a lock holder can never
// delete a lock that has since been taken over by someone else.
var compareAndDeleteScript = valkeylib.NewLuaScript(`if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`)

// NewValkeyStore wraps the shared Valkey client as an engine Store. All keys
// are namespaced under the client's configured prefix.
func NewValkeyStore(client *valkey.Client) Store {
	return &valkeyStore{client: client}
}

type valkeyStore struct {
	client *valkey.Client
}

func (s *valkeyStore) key(k string) string {
	return s.client.Key(k)
}

func (s *valkeyStore) inner() valkeylib.Client {
	return s.client.Inner()
}

func (s *valkeyStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.inner().Do(ctx, s.inner().B().Get().Key(s.key(key)).Build()).ToString()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("valkey get: %w", err)
	}
	return val, true, nil
}

func (s *valkeyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var cmd valkeylib.Completed
	if ttl > 0 {
		cmd = s.inner().B().Set().Key(s.key(key)).Value(value).Px(ttl).Build()
	} else {
		cmd = s.inner().B().Set().Key(s.key(key)).Value(value).Build()
	}
	if err := s.inner().Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey set: %w", err)
	}
	return nil
}

func (s *valkeyStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	var cmd valkeylib.Completed
	if ttl > 0 {
		cmd = s.inner().B().Set().Key(s.key(key)).Value(value).Nx().Px(ttl).Build()
	} else {
		cmd = s.inner().B().Set().Key(s.key(key)).Value(value).Nx().Build()
	}
	err := s.inner().Do(ctx, cmd).Error()
	if err != nil {
		// SET NX answers nil when the key already exists.
		if valkeylib.IsValkeyNil(err) {
			return false, nil
		}
		return false, fmt.Errorf("valkey setnx: %w", err)
	}
	return true, nil
}

func (s *valkeyStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := s.inner().Do(ctx, s.inner().B().Incr().Key(s.key(key)).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("valkey incr: %w", err)
	}
	return n, nil
}

func (s *valkeyStore) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	n, err := s.inner().Do(ctx, s.inner().B().Del().Key(full...).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("valkey del: %w", err)
	}
	return n, nil
}

func (s *valkeyStore) ScanPattern(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	prefix := s.client.KeyPrefix()
	for {
		cmd := s.inner().B().Scan().Cursor(cursor).Match(s.key(pattern)).Count(100).Build()
		result, err := s.inner().Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("valkey scan: %w", err)
		}

		for _, k := range result.Elements {
			// Engines deal in unprefixed keys.
			keys = append(keys, trimPrefix(k, prefix))
		}
		cursor = result.Cursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *valkeyStore) StrLen(ctx context.Context, key string) (int64, error) {
	n, err := s.inner().Do(ctx, s.inner().B().Strlen().Key(s.key(key)).Build()).AsInt64()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("valkey strlen: %w", err)
	}
	return n, nil
}

func (s *valkeyStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	res := compareAndDeleteScript.Exec(ctx, s.inner(), []string{s.key(key)}, []string{expected})
	n, err := res.AsInt64()
	if err != nil {
		return false, fmt.Errorf("valkey compare-and-delete: %w", err)
	}
	return n > 0, nil
}

func trimPrefix(key, prefix string) string {
	if prefix != "" && len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}
