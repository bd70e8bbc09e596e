package reports

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const versionKeyPrefix = "reports:version:"

// Cache stores report payloads in Redis under per-company versioned keys.
// Bumping a company's version orphans every key built before it; the old
// entries simply expire.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func versionKey(companyID int64) string {
	return versionKeyPrefix + strconv.FormatInt(companyID, 10)
}

// Version returns the company's cache version, initialising it when missing.
func (c *Cache) Version(ctx context.Context, companyID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(companyID)).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX: concurrent first readers must agree on the starting version.
		if err := c.client.SetNX(ctx, versionKey(companyID), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(companyID)).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes a report key carrying the company's current version.
func (c *Cache) BuildKey(ctx context.Context, companyID int64, parts ...string) (string, error) {
	base := strings.Join(append([]string{"reports", strconv.FormatInt(companyID, 10)}, parts...), ":")
	if c == nil || c.client == nil {
		return base, nil
	}
	ver, err := c.Version(ctx, companyID)
	if err != nil {
		return "", err
	}
	return base + ":v" + strconv.FormatInt(ver, 10), nil
}

// FetchJSON loads a cached value into dest or populates it using loader.
// hit reports whether the value came from Redis.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) (hit bool, err error) {
	if loader == nil {
		return false, errors.New("reports: cache loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return true, json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return false, err
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return false, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return false, err
		}
	}
	return false, json.Unmarshal(raw, dest)
}

// Bump invalidates every cached report of the company.
func (c *Cache) Bump(ctx context.Context, companyID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(companyID)).Err()
}
