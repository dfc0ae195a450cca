package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/config"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/forecast"
)

const forecastKeyPrefix = "reorder:forecast"

// ForecastKey identifies a forecast. The fingerprint ties the entry to the
// exact history it was computed from, so appended weeks miss the cache.
type ForecastKey struct {
	SKU         string
	Strategy    string
	Config      forecast.Config
	Horizon     int
	Fingerprint string
}

type ForecastCache interface {
	Get(ctx context.Context, key ForecastKey) (domain.ForecastResult, bool, error)
	Set(ctx context.Context, key ForecastKey, result domain.ForecastResult) error
	InvalidateSKU(ctx context.Context, sku string) error
	InvalidateAll(ctx context.Context) error
}

type redisForecastCache struct {
	keys keyspace
}

type noopForecastCache struct{}

// NewForecastCache connects to redis when caching is enabled and falls back
// to a no-op cache otherwise.
func NewForecastCache(cfg config.CacheConfig) (ForecastCache, error) {
	if !cfg.Enabled {
		return &noopForecastCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return NewRedisForecastCache(client, ttl), nil
}

func NewRedisForecastCache(client *redis.Client, ttl time.Duration) ForecastCache {
	return &redisForecastCache{keys: newKeyspace(client, forecastKeyPrefix, ttl)}
}

func NewNoopForecastCache() ForecastCache {
	return &noopForecastCache{}
}

func (c *redisForecastCache) Get(ctx context.Context, key ForecastKey) (domain.ForecastResult, bool, error) {
	var result domain.ForecastResult
	ok, err := c.keys.load(ctx, c.keyFor(key), &result)
	if err != nil || !ok {
		return domain.ForecastResult{}, false, err
	}
	return result, true, nil
}

func (c *redisForecastCache) Set(ctx context.Context, key ForecastKey, result domain.ForecastResult) error {
	return c.keys.save(ctx, c.keyFor(key), result)
}

func (c *redisForecastCache) InvalidateSKU(ctx context.Context, sku string) error {
	return c.keys.purgeSKU(ctx, sku)
}

func (c *redisForecastCache) InvalidateAll(ctx context.Context) error {
	return c.keys.purgeAll(ctx)
}

func (c *redisForecastCache) keyFor(key ForecastKey) string {
	return c.keys.key(key.SKU,
		"strategy="+key.Strategy,
		fmt.Sprintf("window=%d", key.Config.SmoothingWindow),
		fmt.Sprintf("season=%d", key.Config.SeasonLength),
		fmt.Sprintf("min_history=%d", key.Config.MinimumHistoryWeeks),
		fmt.Sprintf("min_residuals=%d", key.Config.MinResidualSamples),
		fmt.Sprintf("horizon=%d", key.Horizon),
		"fingerprint="+key.Fingerprint,
	)
}

func (n *noopForecastCache) Get(ctx context.Context, key ForecastKey) (domain.ForecastResult, bool, error) {
	return domain.ForecastResult{}, false, nil
}

func (n *noopForecastCache) Set(ctx context.Context, key ForecastKey, result domain.ForecastResult) error {
	return nil
}

func (n *noopForecastCache) InvalidateSKU(ctx context.Context, sku string) error {
	return nil
}

func (n *noopForecastCache) InvalidateAll(ctx context.Context) error {
	return nil
}
