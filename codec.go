package sqlitekv

import (
	"context"
	"encoding/json"
	"fmt"
)

// JSON adapters: a thin typed layer over the byte-oriented store. The
// store itself stays content-agnostic; these helpers only translate at
// the boundary.

// SetJSON marshals value as JSON and stores it under key.
func SetJSON[T any](ctx context.Context, s *Store, ns, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("set json: %w", err)
	}
	return s.Set(ctx, ns, key, raw)
}

// GetJSON reads key and unmarshals it into T. An absent key returns the
// zero value with found=false.
func GetJSON[T any](ctx context.Context, s *Store, ns, key string) (value T, found bool, err error) {
	raw, found, err := s.Get(ctx, ns, key)
	if err != nil || !found {
		return value, false, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		var zero T
		return zero, false, fmt.Errorf("get json: %w", err)
	}
	return value, true, nil
}

// GetManyJSON reads a set of keys and unmarshals each value into T.
// Absent keys are omitted. Unlike the byte-oriented read path, a payload
// that fails to decode fails the whole call: at this layer the caller
// has declared the type the data must satisfy.
func GetManyJSON[T any](ctx context.Context, s *Store, ns string, keys ...string) (map[string]T, error) {
	raw, err := s.GetMany(ctx, ns, keys...)
	if err != nil {
		return nil, err
	}
	result := make(map[string]T, len(raw))
	for key, payload := range raw {
		var value T
		if err := json.Unmarshal(payload, &value); err != nil {
			return nil, fmt.Errorf("get many json: key %q: %w", key, err)
		}
		result[key] = value
	}
	return result, nil
}

// CacheSetJSON marshals value as JSON and stores it in the cache under
// the default TTL.
func CacheSetJSON[T any](ctx context.Context, c *Cache, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache set json: %w", err)
	}
	return c.Set(ctx, key, raw)
}

// CacheGetJSON reads key from the cache and unmarshals it into T.
func CacheGetJSON[T any](ctx context.Context, c *Cache, key string) (value T, found bool, err error) {
	raw, found, err := c.Get(ctx, key)
	if err != nil || !found {
		return value, false, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		var zero T
		return zero, false, fmt.Errorf("cache get json: %w", err)
	}
	return value, true, nil
}
