package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Provider is a byte-oriented key/value cache with per-entry expiration.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// NormalizeKey lowercases and trims a free-text key.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
