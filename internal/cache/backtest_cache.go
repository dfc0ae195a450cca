package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/autopo-reorder/backend-go/internal/config"
	"github.com/andresuchdata/autopo-reorder/backend-go/internal/domain"
)

const backtestKeyPrefix = "reorder:backtest"

type BacktestKey struct {
	SKU         string
	Strategy    string
	Horizon     int
	Fingerprint string
}

// BacktestCache keeps evaluated backtest reports. Unevaluable reports are
// cheap to recompute and are not stored.
type BacktestCache interface {
	GetReport(ctx context.Context, key BacktestKey) (*domain.BacktestReport, bool, error)
	SetReport(ctx context.Context, key BacktestKey, report *domain.BacktestReport) error
	InvalidateAll(ctx context.Context) error
}

type redisBacktestCache struct {
	keys keyspace
}

type noopBacktestCache struct{}

func NewBacktestCache(cfg config.CacheConfig) (BacktestCache, error) {
	if !cfg.Enabled {
		return &noopBacktestCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return NewRedisBacktestCache(client, ttl), nil
}

func NewRedisBacktestCache(client *redis.Client, ttl time.Duration) BacktestCache {
	return &redisBacktestCache{keys: newKeyspace(client, backtestKeyPrefix, ttl)}
}

func NewNoopBacktestCache() BacktestCache {
	return &noopBacktestCache{}
}

func (c *redisBacktestCache) GetReport(ctx context.Context, key BacktestKey) (*domain.BacktestReport, bool, error) {
	var report domain.BacktestReport
	ok, err := c.keys.load(ctx, c.keyFor(key), &report)
	if err != nil || !ok {
		return nil, false, err
	}
	return &report, true, nil
}

func (c *redisBacktestCache) SetReport(ctx context.Context, key BacktestKey, report *domain.BacktestReport) error {
	if report == nil || !report.Evaluable() {
		return nil
	}
	return c.keys.save(ctx, c.keyFor(key), report)
}

func (c *redisBacktestCache) InvalidateAll(ctx context.Context) error {
	return c.keys.purgeAll(ctx)
}

func (c *redisBacktestCache) keyFor(key BacktestKey) string {
	return c.keys.key(key.SKU,
		"strategy="+key.Strategy,
		fmt.Sprintf("horizon=%d", key.Horizon),
		"fingerprint="+key.Fingerprint,
	)
}

func (n *noopBacktestCache) GetReport(ctx context.Context, key BacktestKey) (*domain.BacktestReport, bool, error) {
	return nil, false, nil
}

func (n *noopBacktestCache) SetReport(ctx context.Context, key BacktestKey, report *domain.BacktestReport) error {
	return nil
}

func (n *noopBacktestCache) InvalidateAll(ctx context.Context) error {
	return nil
}
